// Package types provides the core data types for the Parley server.
package types

// Session represents a conversation between a user and an assistant model.
type Session struct {
	ID         string      `json:"id"`
	ProviderID string      `json:"providerID"`
	ModelID    string      `json:"modelID"`
	Title      string      `json:"title,omitempty"`
	NextTodoID int64       `json:"nextTodoID"`
	Time       SessionTime `json:"time"`

	// Messages is populated only when the full graph is loaded.
	Messages []*Message `json:"messages,omitempty"`
}

// SessionTime contains timestamps for a session in epoch milliseconds.
type SessionTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// ModelRef references a specific model from a provider.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}
