package storage

import (
	"context"
	"strings"

	"ai-commands/internal/domain"
)

// InsertTransaction inserts a new transaction.
func (db *DB) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO transactions (id, user_id, title, amount, kind, date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		tx.ID, tx.UserID, tx.Title, tx.Amount, tx.Kind, tx.Date, formatTime(tx.CreatedAt),
	)
	return err
}

// InsertTodo inserts a new todo.
func (db *DB) InsertTodo(ctx context.Context, todo domain.Todo) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO todos (id, user_id, title, status, created_at) VALUES (?, ?, ?, ?, ?)",
		todo.ID, todo.UserID, todo.Title, todo.Status, formatTime(todo.CreatedAt),
	)
	return err
}

// InsertPost inserts a new post.
func (db *DB) InsertPost(ctx context.Context, post domain.Post) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO posts (id, user_id, title, content, created_at) VALUES (?, ?, ?, ?, ?)",
		post.ID, post.UserID, post.Title, post.Content, formatTime(post.CreatedAt),
	)
	return err
}

// ListTransactions returns a user's transactions dated within [from, to],
// ordered by date then creation time, newest first. Empty bounds are open.
func (db *DB) ListTransactions(ctx context.Context, userID, from, to string) ([]domain.Transaction, error) {
	var sb strings.Builder
	sb.WriteString("SELECT id, title, amount, kind, date, created_at FROM transactions WHERE user_id = ?")
	args := []any{userID}
	if from != "" {
		sb.WriteString(" AND date >= ?")
		args = append(args, from)
	}
	if to != "" {
		sb.WriteString(" AND date <= ?")
		args = append(args, to)
	}
	sb.WriteString(" ORDER BY date DESC, created_at DESC")

	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx := domain.Transaction{UserID: userID}
		var created string
		if err := rows.Scan(&tx.ID, &tx.Title, &tx.Amount, &tx.Kind, &tx.Date, &created); err != nil {
			return nil, err
		}
		if tx.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// CountOpenTodos counts a user's todos that are not completed.
func (db *DB) CountOpenTodos(ctx context.Context, userID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM todos WHERE user_id = ? AND status <> ?",
		userID, domain.TodoCompleted,
	).Scan(&n)
	return n, err
}

// RecentPosts returns a user's newest posts, newest first.
func (db *DB) RecentPosts(ctx context.Context, userID string, limit int) ([]domain.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, title, content, created_at FROM posts WHERE user_id = ? ORDER BY created_at DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p := domain.Post{UserID: userID}
		var created string
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &created); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
