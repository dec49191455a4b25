package domain

import "time"

// ResourceKind names the entity created by a command.
type ResourceKind string

const (
	KindTransaction ResourceKind = "transaction"
	KindTodo        ResourceKind = "todo"
	KindPost        ResourceKind = "post"
)

const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"

	TodoPending    = "pending"
	TodoInProgress = "in_progress"
	TodoCompleted  = "completed"
)

// ResourceRef is enough for a caller to render a link to a created entity.
type ResourceRef struct {
	ID    string       `json:"id"`
	Kind  ResourceKind `json:"type"`
	Title string       `json:"title"`
	URL   string       `json:"url"`
}

type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Amount    float64   `json:"amount"`
	Kind      string    `json:"kind"`
	Date      string    `json:"date"` // YYYY-MM-DD
	CreatedAt time.Time `json:"created_at"`
}

type Todo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary aggregates the transactions in a date range.
type Summary struct {
	View         string        `json:"view"`
	From         string        `json:"from"`
	To           string        `json:"to"`
	Transactions []Transaction `json:"transactions"`
	TotalIncome  float64       `json:"total_income"`
	TotalExpense float64       `json:"total_expense"`
	Net          float64       `json:"net"`
}

// Dashboard is the home-page overview for a user.
type Dashboard struct {
	Income       float64 `json:"income"`
	Expense      float64 `json:"expense"`
	Balance      float64 `json:"balance"`
	PendingTodos int     `json:"pending_todos"`
	RecentPosts  []Post  `json:"recent_posts"`
}
