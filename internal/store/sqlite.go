package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/parley-ai/parley/internal/logging"
	"github.com/parley-ai/parley/internal/retry"
	"github.com/parley-ai/parley/pkg/types"
)

// Store persists the session graph in a single-writer embedded SQLite
// database. Every write is wrapped in a busy-retry policy; all other failures
// propagate unretried.
type Store struct {
	db    *sql.DB
	retry *retry.Policy
}

// New creates a Store at the given path. The schema is created if absent and
// parent directories are created as needed.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL improves concurrent read performance under a single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:    db,
		retry: retry.NewPolicy(IsBusy),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logging.Info().Str("path", path).Msg("session store initialized")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL DEFAULT '',
			provider     TEXT NOT NULL,
			model        TEXT NOT NULL,
			next_todo_id INTEGER NOT NULL DEFAULT 1,
			created      INTEGER NOT NULL,
			updated      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated DESC);
		CREATE INDEX IF NOT EXISTS idx_sessions_title ON sessions(title);

		CREATE TABLE IF NOT EXISTS messages (
			id            TEXT PRIMARY KEY,
			session_id    TEXT NOT NULL,
			role          TEXT NOT NULL,
			ordering      INTEGER NOT NULL,
			status        TEXT NOT NULL DEFAULT 'completed',
			finish_reason TEXT,
			metadata_json TEXT,
			timestamp     INTEGER NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
			UNIQUE (session_id, ordering),
			CHECK (role IN ('user', 'assistant')),
			CHECK (status IN ('active', 'completed', 'error', 'abort'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, ordering);

		CREATE TABLE IF NOT EXISTS message_parts (
			id           TEXT PRIMARY KEY,
			message_id   TEXT NOT NULL,
			ordering     INTEGER NOT NULL,
			type         TEXT NOT NULL,
			content_json TEXT NOT NULL,
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_parts_message ON message_parts(message_id, ordering);

		CREATE TABLE IF NOT EXISTS message_attachments (
			id            TEXT PRIMARY KEY,
			message_id    TEXT NOT NULL,
			path          TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			size          INTEGER NOT NULL,
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_attachments_message ON message_attachments(message_id);

		CREATE TABLE IF NOT EXISTS message_usage (
			message_id        TEXT PRIMARY KEY,
			prompt_tokens     INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			total_tokens      INTEGER NOT NULL,
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS todos (
			id          INTEGER NOT NULL,
			session_id  TEXT NOT NULL,
			content     TEXT NOT NULL,
			active_form TEXT NOT NULL,
			status      TEXT NOT NULL,
			ordering    INTEGER NOT NULL,
			PRIMARY KEY (session_id, id),
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
			CHECK (status IN ('pending', 'in_progress', 'completed'))
		);

		CREATE TABLE IF NOT EXISTS message_todo_snapshots (
			id          TEXT PRIMARY KEY,
			message_id  TEXT NOT NULL,
			todo_id     INTEGER NOT NULL,
			content     TEXT NOT NULL,
			active_form TEXT NOT NULL,
			status      TEXT NOT NULL,
			ordering    INTEGER NOT NULL,
			FOREIGN KEY (message_id) REFERENCES messages(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_message ON message_todo_snapshots(message_id, ordering);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateSession mints a new session with zero messages and todos.
func (s *Store) CreateSession(ctx context.Context, providerID, modelID string) (*types.Session, error) {
	now := time.Now().UnixMilli()
	session := &types.Session{
		ID:         ulid.Make().String(),
		ProviderID: providerID,
		ModelID:    modelID,
		Title:      "New Session",
		NextTodoID: 1,
		Time:       types.SessionTime{Created: now, Updated: now},
	}

	err := s.retry.Do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, title, provider, model, next_todo_id, created, updated)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.Title, session.ProviderID, session.ModelID,
			session.NextTodoID, session.Time.Created, session.Time.Updated)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return session, nil
}

// GetSessionByID loads a session and its full message graph. Child rows are
// fetched in batches keyed by the message-id set rather than per message.
func (s *Store) GetSessionByID(ctx context.Context, id string) (*types.Session, error) {
	session, err := s.getSessionRow(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, ordering, status, finish_reason, metadata_json, timestamp
		 FROM messages WHERE session_id = ? ORDER BY ordering`, id)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messageIDs []string
	byID := make(map[string]*types.Message)
	for rows.Next() {
		msg := &types.Message{SessionID: id}
		var finishReason, metadataJSON sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Ordering, &msg.Status,
			&finishReason, &metadataJSON, &msg.Time.Created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if finishReason.Valid {
			msg.FinishReason = &finishReason.String
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			var meta types.Telemetry
			if err := json.Unmarshal([]byte(metadataJSON.String), &meta); err == nil {
				msg.Metadata = &meta
			}
		}
		session.Messages = append(session.Messages, msg)
		messageIDs = append(messageIDs, msg.ID)
		byID[msg.ID] = msg
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(messageIDs) == 0 {
		return session, nil
	}

	if err := s.attachParts(ctx, messageIDs, byID); err != nil {
		return nil, err
	}
	if err := s.attachAttachments(ctx, messageIDs, byID); err != nil {
		return nil, err
	}
	if err := s.attachUsage(ctx, messageIDs, byID); err != nil {
		return nil, err
	}
	if err := s.attachTodoSnapshots(ctx, messageIDs, byID); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *Store) getSessionRow(ctx context.Context, id string) (*types.Session, error) {
	session := &types.Session{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, provider, model, next_todo_id, created, updated
		 FROM sessions WHERE id = ?`, id).
		Scan(&session.ID, &session.Title, &session.ProviderID, &session.ModelID,
			&session.NextTodoID, &session.Time.Created, &session.Time.Updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return session, nil
}

// placeholders returns "?, ?, ..., ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func (s *Store) attachParts(ctx context.Context, ids []string, byID map[string]*types.Message) error {
	query := fmt.Sprintf(
		`SELECT message_id, content_json FROM message_parts
		 WHERE message_id IN (%s) ORDER BY message_id, ordering`, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("querying parts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, contentJSON string
		if err := rows.Scan(&messageID, &contentJSON); err != nil {
			return fmt.Errorf("scanning part: %w", err)
		}
		part, err := types.UnmarshalPart([]byte(contentJSON))
		if err != nil {
			return fmt.Errorf("decoding part for message %s: %w", messageID, err)
		}
		if msg, ok := byID[messageID]; ok {
			msg.Parts = append(msg.Parts, part)
		}
	}
	return rows.Err()
}

func (s *Store) attachAttachments(ctx context.Context, ids []string, byID map[string]*types.Message) error {
	query := fmt.Sprintf(
		`SELECT message_id, id, path, relative_path, size FROM message_attachments
		 WHERE message_id IN (%s)`, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var att types.Attachment
		if err := rows.Scan(&messageID, &att.ID, &att.Path, &att.RelativePath, &att.Size); err != nil {
			return fmt.Errorf("scanning attachment: %w", err)
		}
		if msg, ok := byID[messageID]; ok {
			msg.Attachments = append(msg.Attachments, att)
		}
	}
	return rows.Err()
}

func (s *Store) attachUsage(ctx context.Context, ids []string, byID map[string]*types.Message) error {
	query := fmt.Sprintf(
		`SELECT message_id, prompt_tokens, completion_tokens, total_tokens
		 FROM message_usage WHERE message_id IN (%s)`, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("querying usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var usage types.Usage
		if err := rows.Scan(&messageID, &usage.PromptTokens, &usage.CompletionTokens, &usage.TotalTokens); err != nil {
			return fmt.Errorf("scanning usage: %w", err)
		}
		if msg, ok := byID[messageID]; ok {
			msg.Usage = &usage
		}
	}
	return rows.Err()
}

func (s *Store) attachTodoSnapshots(ctx context.Context, ids []string, byID map[string]*types.Message) error {
	query := fmt.Sprintf(
		`SELECT message_id, todo_id, content, active_form, status, ordering
		 FROM message_todo_snapshots WHERE message_id IN (%s)
		 ORDER BY message_id, ordering`, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return fmt.Errorf("querying todo snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var todo types.Todo
		if err := rows.Scan(&messageID, &todo.ID, &todo.Content, &todo.ActiveForm, &todo.Status, &todo.Ordering); err != nil {
			return fmt.Errorf("scanning todo snapshot: %w", err)
		}
		if msg, ok := byID[messageID]; ok {
			msg.TodoSnapshot = append(msg.TodoSnapshot, todo)
		}
	}
	return rows.Err()
}

// AddMessage appends a message with its parts, attachments, usage and todo
// snapshot as one transaction. Ordering is computed from the current message
// count; the session's updated timestamp is bumped in the same transaction.
func (s *Store) AddMessage(ctx context.Context, params AddMessageParams) (string, error) {
	status := params.Status
	if status == "" {
		status = types.StatusCompleted
	}

	messageID := ulid.Make().String()
	now := time.Now().UnixMilli()

	err := s.retry.Do(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var ordering int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE session_id = ?`, params.SessionID).
			Scan(&ordering); err != nil {
			return fmt.Errorf("counting messages: %w", err)
		}

		var metadataJSON sql.NullString
		if params.Metadata != nil {
			data, err := json.Marshal(params.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata: %w", err)
			}
			metadataJSON = sql.NullString{String: string(data), Valid: true}
		}

		var finishReason sql.NullString
		if params.FinishReason != nil {
			finishReason = sql.NullString{String: *params.FinishReason, Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, session_id, role, ordering, status, finish_reason, metadata_json, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			messageID, params.SessionID, params.Role, ordering, status,
			finishReason, metadataJSON, now); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}

		if err := insertParts(ctx, tx, messageID, params.Parts); err != nil {
			return err
		}

		for _, att := range params.Attachments {
			attID := att.ID
			if attID == "" {
				attID = ulid.Make().String()
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO message_attachments (id, message_id, path, relative_path, size)
				 VALUES (?, ?, ?, ?, ?)`,
				attID, messageID, att.Path, att.RelativePath, att.Size); err != nil {
				return fmt.Errorf("inserting attachment: %w", err)
			}
		}

		if params.Usage != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO message_usage (message_id, prompt_tokens, completion_tokens, total_tokens)
				 VALUES (?, ?, ?, ?)`,
				messageID, params.Usage.PromptTokens, params.Usage.CompletionTokens,
				params.Usage.TotalTokens); err != nil {
				return fmt.Errorf("inserting usage: %w", err)
			}
		}

		for _, todo := range params.TodoSnapshot {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO message_todo_snapshots (id, message_id, todo_id, content, active_form, status, ordering)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				ulid.Make().String(), messageID, todo.ID, todo.Content,
				todo.ActiveForm, todo.Status, todo.Ordering); err != nil {
				return fmt.Errorf("inserting todo snapshot: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET updated = ? WHERE id = ?`, now, params.SessionID); err != nil {
			return fmt.Errorf("bumping session: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

func insertParts(ctx context.Context, tx *sql.Tx, messageID string, parts []types.Part) error {
	for i, part := range parts {
		contentJSON, err := json.Marshal(part)
		if err != nil {
			return fmt.Errorf("encoding part: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_parts (id, message_id, ordering, type, content_json)
			 VALUES (?, ?, ?, ?, ?)`,
			ulid.Make().String(), messageID, i, part.PartType(), string(contentJSON)); err != nil {
			return fmt.Errorf("inserting part: %w", err)
		}
	}
	return nil
}

// UpdateMessageParts replaces a message's parts wholesale: delete-all then
// reinsert in one transaction. Incremental patching is deliberately avoided.
func (s *Store) UpdateMessageParts(ctx context.Context, messageID string, parts []types.Part) error {
	return s.retry.Do(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM message_parts WHERE message_id = ?`, messageID); err != nil {
			return fmt.Errorf("deleting parts: %w", err)
		}
		if err := insertParts(ctx, tx, messageID, parts); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// UpdateMessageStatus sets a message's lifecycle status and optional finish
// reason.
func (s *Store) UpdateMessageStatus(ctx context.Context, messageID, status string, finishReason *string) error {
	return s.retry.Do(ctx, func() error {
		var fr sql.NullString
		if finishReason != nil {
			fr = sql.NullString{String: *finishReason, Valid: true}
		}
		res, err := s.db.ExecContext(ctx,
			`UPDATE messages SET status = ?, finish_reason = COALESCE(?, finish_reason) WHERE id = ?`,
			status, fr, messageID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateMessageUsage upserts the usage record for a message.
func (s *Store) UpdateMessageUsage(ctx context.Context, messageID string, usage types.Usage) error {
	return s.retry.Do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO message_usage (message_id, prompt_tokens, completion_tokens, total_tokens)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(message_id) DO UPDATE SET
				prompt_tokens = excluded.prompt_tokens,
				completion_tokens = excluded.completion_tokens,
				total_tokens = excluded.total_tokens`,
			messageID, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
		return err
	})
}

// UpdateTodos replaces a session's live todo set wholesale and bumps the
// next-todo-id counter in the same transaction.
func (s *Store) UpdateTodos(ctx context.Context, sessionID string, todos []types.Todo, nextTodoID int64) error {
	return s.retry.Do(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM todos WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("deleting todos: %w", err)
		}
		for _, todo := range todos {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO todos (id, session_id, content, active_form, status, ordering)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				todo.ID, sessionID, todo.Content, todo.ActiveForm, todo.Status, todo.Ordering); err != nil {
				return fmt.Errorf("inserting todo: %w", err)
			}
		}

		now := time.Now().UnixMilli()
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET next_todo_id = ?, updated = ? WHERE id = ?`,
			nextTodoID, now, sessionID)
		if err != nil {
			return fmt.Errorf("bumping todo counter: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return tx.Commit()
	})
}

// GetTodos returns a session's live todo set in order.
func (s *Store) GetTodos(ctx context.Context, sessionID string) ([]types.Todo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, active_form, status, ordering
		 FROM todos WHERE session_id = ? ORDER BY ordering`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying todos: %w", err)
	}
	defer rows.Close()

	todos := []types.Todo{}
	for rows.Next() {
		var todo types.Todo
		if err := rows.Scan(&todo.ID, &todo.Content, &todo.ActiveForm, &todo.Status, &todo.Ordering); err != nil {
			return nil, fmt.Errorf("scanning todo: %w", err)
		}
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}

// UpdateSessionTitle sets the session title and bumps the updated timestamp.
func (s *Store) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	return s.retry.Do(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET title = ?, updated = ? WHERE id = ?`,
			title, time.Now().UnixMilli(), sessionID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteSession removes a session; child rows cascade.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.retry.Do(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetRecentSessions returns session rows ordered by most recently updated.
// Message graphs are not loaded.
func (s *Store) GetRecentSessions(ctx context.Context, limit, offset int) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, provider, model, next_todo_id, created, updated
		 FROM sessions ORDER BY updated DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// SearchSessionsByTitle returns sessions whose title contains query,
// case-insensitively, most recent first.
func (s *Store) SearchSessionsByTitle(ctx context.Context, query string, limit int) ([]*types.Session, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, provider, model, next_todo_id, created, updated
		 FROM sessions WHERE title LIKE ? ESCAPE '\'
		 ORDER BY updated DESC LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// GetLastSession returns the most recently updated session, or ErrNotFound.
func (s *Store) GetLastSession(ctx context.Context) (*types.Session, error) {
	sessions, err := s.GetRecentSessions(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNotFound
	}
	return sessions[0], nil
}

// GetSessionCount returns the total number of sessions.
func (s *Store) GetSessionCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

// GetMessageCount returns the number of messages in a session.
func (s *Store) GetMessageCount(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&count)
	return count, err
}

func scanSessions(rows *sql.Rows) ([]*types.Session, error) {
	var sessions []*types.Session
	for rows.Next() {
		session := &types.Session{}
		if err := rows.Scan(&session.ID, &session.Title, &session.ProviderID, &session.ModelID,
			&session.NextTodoID, &session.Time.Created, &session.Time.Updated); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
