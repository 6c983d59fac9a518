package session

import (
	"context"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/logging"
	"github.com/parley-ai/parley/internal/provider"
)

const titleSystemPrompt = `You are a title generator. You output ONLY a thread title. Nothing else.

Generate a brief title that would help the user find this conversation later.

Rules:
- A single line, no more than 50 characters
- No explanations
- Use -ing verbs for actions (Debugging, Implementing, Analyzing)
- Keep exact: technical terms, numbers, filenames
- Remove: the, this, my, a, an
- Always output something meaningful`

const defaultTitle = "New Session"

// isDefaultTitle reports whether a session still carries the placeholder
// title.
func isDefaultTitle(title string) bool {
	return title == "" || strings.HasPrefix(title, defaultTitle)
}

// generateTitle derives a short session title from the first user message
// with a secondary completion, streaming deltas to emit. Every failure is
// swallowed; a missing title never fails the turn.
func (s *Service) generateTitle(
	ctx context.Context,
	sessionID string,
	prov provider.Provider,
	modelID string,
	userContent string,
	emit func(Event) bool,
) {
	stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
		Model: modelID,
		Messages: []*schema.Message{
			{Role: schema.System, Content: titleSystemPrompt},
			{Role: schema.User, Content: "Generate a title for this conversation:\n\n" + userContent},
		},
		MaxTokens: 50,
	})
	if err != nil {
		logging.Debug().Err(err).Str("sessionID", sessionID).Msg("title generation skipped")
		return
	}
	defer stream.Close()

	if !emit(Event{Type: EventTitleStart, SessionID: sessionID}) {
		return
	}

	var title strings.Builder
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			logging.Debug().Err(err).Str("sessionID", sessionID).Msg("title stream failed")
			return
		}
		if msg.Content == "" {
			continue
		}
		title.WriteString(msg.Content)
		if !emit(Event{Type: EventTitleDelta, SessionID: sessionID, Delta: msg.Content}) {
			return
		}
	}

	titleText := cleanTitle(title.String())
	if titleText == "" {
		return
	}

	if err := s.store.UpdateSessionTitle(ctx, sessionID, titleText); err != nil {
		logging.Debug().Err(err).Str("sessionID", sessionID).Msg("title save failed")
		return
	}

	emit(Event{Type: EventTitleComplete, SessionID: sessionID, Title: titleText})

	if sess, err := s.store.GetSessionByID(ctx, sessionID); err == nil {
		s.bus.Publish(event.Event{
			Type: event.SessionUpdated,
			Data: event.SessionUpdatedData{Info: sess},
		})
	}
}

// cleanTitle trims the raw completion down to its first non-empty line.
func cleanTitle(raw string) string {
	titleText := strings.TrimSpace(raw)
	for _, line := range strings.Split(titleText, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			titleText = line
			break
		}
	}
	if len(titleText) > 100 {
		titleText = titleText[:97] + "..."
	}
	return titleText
}
