// Package ask brokers questions raised mid-stream by tools to an answerer,
// suspending the asking tool call until an answer, rejection or timeout.
//
// Two operating modes share one contract: the remote Broker registers pending
// questions that a separate caller resolves across a process boundary, while
// the embedded Service drains questions through an in-process handler one at
// a time.
package ask

import (
	"strings"
	"time"
)

const (
	// DefaultTimeout is how long a pending question waits for an answer.
	DefaultTimeout = 5 * time.Minute
	// sweepInterval is how often the stale-entry sweep runs; entries older
	// than DefaultTimeout+sweepInterval are force-rejected as a safety net
	// against lost resolutions.
	sweepInterval = 60 * time.Second
)

// Option is one labeled choice presented with a question.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Question is the payload presented to the answerer.
type Question struct {
	Prompt      string   `json:"prompt"`
	Header      string   `json:"header,omitempty"`
	MultiSelect bool     `json:"multiSelect,omitempty"`
	Options     []Option `json:"options,omitempty"`
}

// joinAnswers normalizes a selection list to the single answer string both
// modes hand back to the asking tool. Multi-select answers are joined with a
// comma separator; a single selection passes through unchanged.
func joinAnswers(answers []string) string {
	return strings.Join(answers, ", ")
}
