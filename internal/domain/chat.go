package domain

import "time"

// ChatTurn is a single persisted exchange: what the user typed and what the
// assistant answered.
type ChatTurn struct {
	UserID      string
	UserMessage string
	AIResponse  string
	CreatedAt   time.Time
}

// ChatEntry is the role-tagged shape of one side of a ChatTurn.
type ChatEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
