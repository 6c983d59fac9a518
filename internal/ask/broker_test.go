package ask

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBroker_ResolveDeliversJoinedAnswer(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	p := b.Create("s1", Question{Prompt: "Pick colors", MultiSelect: true})

	go func() {
		if ok := b.Resolve(p.ID, []string{"red", "blue"}); !ok {
			t.Error("Resolve should win")
		}
	}()

	answer, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if answer != "red, blue" {
		t.Errorf("Expected joined answer 'red, blue', got %q", answer)
	}
}

func TestBroker_AtMostOnceResolution(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	p := b.Create("s1", Question{Prompt: "Continue?"})

	if ok := b.Resolve(p.ID, []string{"yes"}); !ok {
		t.Fatal("First resolve should win")
	}
	if ok := b.Resolve(p.ID, []string{"no"}); ok {
		t.Error("Second resolve should be a no-op")
	}
	if ok := b.Reject(p.ID, errors.New("late")); ok {
		t.Error("Reject after resolve should be a no-op")
	}

	answer, err := p.Wait(context.Background())
	if err != nil || answer != "yes" {
		t.Errorf("Expected first answer to stick, got %q (%v)", answer, err)
	}
}

func TestBroker_TimeoutRejects(t *testing.T) {
	b := NewBrokerWithTimeout(20 * time.Millisecond)
	defer b.Close()

	p := b.Create("s1", Question{Prompt: "Anyone there?"})

	_, err := p.Wait(context.Background())
	if err == nil {
		t.Fatal("Expected timeout error")
	}

	// The entry is gone; resolving afterward returns false.
	if ok := b.Resolve(p.ID, []string{"too late"}); ok {
		t.Error("Resolve after timeout should return false")
	}
}

func TestBroker_PendingForSession(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	p1 := b.Create("s1", Question{Prompt: "q1"})
	b.Create("s2", Question{Prompt: "q2"})

	ids := b.PendingForSession("s1")
	if len(ids) != 1 || ids[0] != p1.ID {
		t.Errorf("Expected [%s], got %v", p1.ID, ids)
	}

	b.Resolve(p1.ID, []string{"done"})
	if ids := b.PendingForSession("s1"); len(ids) != 0 {
		t.Errorf("Expected no pending entries after resolve, got %v", ids)
	}
}

func TestBroker_RejectDeliversError(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	p := b.Create("s1", Question{Prompt: "q"})
	wantErr := errors.New("user dismissed")

	if ok := b.Reject(p.ID, wantErr); !ok {
		t.Fatal("Reject should win")
	}

	_, err := p.Wait(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected rejection error, got %v", err)
	}
}

func TestBroker_WaitRespectsContext(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	p := b.Create("s1", Question{Prompt: "q"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBroker_TimerExpiryRacingImmediateSettle(t *testing.T) {
	b := NewBrokerWithTimeout(time.Nanosecond)
	defer b.Close()

	// The expiry fires while Create is still returning; every entry must
	// settle exactly once, whichever side wins.
	for i := 0; i < 200; i++ {
		p := b.Create("s1", Question{Prompt: "Continue?"})
		b.Resolve(p.ID, []string{"yes"})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		answer, err := p.Wait(ctx)
		cancel()
		if err == nil && answer != "yes" {
			t.Fatalf("Expected answer 'yes', got %q", answer)
		}
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			t.Fatal("Entry never settled")
		}
	}
}

func TestNewBrokerHandler_BridgesToPendingEntry(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	handler := NewBrokerHandler(b)

	done := make(chan string, 1)
	go func() {
		answers, err := handler(context.Background(), "s1", Question{Prompt: "Continue?"})
		if err != nil {
			t.Errorf("Handler failed: %v", err)
		}
		done <- joinAnswers(answers)
	}()

	var ids []string
	deadline := time.After(3 * time.Second)
	for len(ids) == 0 {
		select {
		case <-deadline:
			t.Fatal("Handler never registered a pending entry")
		case <-time.After(5 * time.Millisecond):
			ids = b.PendingForSession("s1")
		}
	}

	if ok := b.Resolve(ids[0], []string{"yes"}); !ok {
		t.Fatal("Resolve failed for the bridged entry")
	}
	select {
	case answer := <-done:
		if answer != "yes" {
			t.Errorf("Expected answer 'yes', got %q", answer)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Handler did not return after resolution")
	}
}
