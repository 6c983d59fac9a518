// Package store provides durable, transactional persistence for sessions,
// messages, message parts, attachments, usage and todo lists on SQLite.
package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/parley-ai/parley/pkg/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// IsBusy reports whether an error is SQLite's transient write-contention
// failure (a concurrent writer holds the lock). Only this class is retried.
func IsBusy(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// AddMessageParams carries everything persisted atomically with a new message.
type AddMessageParams struct {
	SessionID    string
	Role         string
	Status       string // defaults to "completed"
	FinishReason *string
	Metadata     *types.Telemetry
	Parts        []types.Part
	Attachments  []types.Attachment
	Usage        *types.Usage
	TodoSnapshot []types.Todo
}
