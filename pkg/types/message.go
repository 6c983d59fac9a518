package types

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message lifecycle statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusAbort     = "abort"
)

// Message represents either a user or assistant message in a conversation.
// Ordering is zero-based and unique within the session; messages are
// append-only and never renumbered.
type Message struct {
	ID           string      `json:"id"`
	SessionID    string      `json:"sessionID"`
	Role         string      `json:"role"` // "user" | "assistant"
	Ordering     int         `json:"ordering"`
	Status       string      `json:"status"` // "active" | "completed" | "error" | "abort"
	FinishReason *string     `json:"finishReason,omitempty"`
	Metadata     *Telemetry  `json:"metadata,omitempty"` // captured on user messages only
	Time         MessageTime `json:"time"`

	Parts        []Part       `json:"parts,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`
	TodoSnapshot []Todo       `json:"todoSnapshot,omitempty"`
}

// MessageTime contains timestamps for a message.
type MessageTime struct {
	Created int64 `json:"created"`
}

// Attachment is a file referenced by a user message.
type Attachment struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	RelativePath string `json:"relativePath"`
	Size         int64  `json:"size"`
}

// Usage contains token accounting for an assistant message.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Telemetry is a point-in-time snapshot of the environment the user message
// was sent from.
type Telemetry struct {
	Hostname   string `json:"hostname,omitempty"`
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	WorkingDir string `json:"workingDir,omitempty"`
	CapturedAt int64  `json:"capturedAt"`
}

// IsTerminal reports whether a message status is final.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusError, StatusAbort:
		return true
	}
	return false
}
