package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/parley-ai/parley/internal/event"
	"github.com/parley-ai/parley/internal/logging"
)

// sseHeartbeatInterval keeps idle connections alive through proxies.
const sseHeartbeatInterval = 30 * time.Second

// sseWriter wraps an http.ResponseWriter for Server-Sent Events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData); err != nil {
		return err
	}

	if flushErr := s.rc.Flush(); flushErr != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// busEvent is the wire shape of one bus event on the global feed.
type busEvent struct {
	Type       event.EventType `json:"type"`
	Properties any             `json:"properties"`
}

// globalEvents streams every bus event to the client until it disconnects.
// Late subscribers do not receive history.
func (s *Server) globalEvents(w http.ResponseWriter, r *http.Request) {
	sseHeaders(w)

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	if err := sse.writeEvent("message", busEvent{Type: "server.connected", Properties: map[string]any{}}); err != nil {
		return
	}

	events := make(chan event.Event, 16)
	unsub := s.bus.SubscribeAll(func(e event.Event) {
		select {
		case events <- e:
		default:
			logging.Warn().Str("eventType", string(e.Type)).Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent("message", busEvent{Type: e.Type, Properties: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
