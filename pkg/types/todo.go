package types

// Todo statuses.
const (
	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// Todo is a single entry of a session's task list. IDs are allocated from the
// session's NextTodoID counter and are unique within the session.
type Todo struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	ActiveForm string `json:"activeForm"`
	Status     string `json:"status"` // "pending" | "in_progress" | "completed"
	Ordering   int    `json:"ordering"`
}
