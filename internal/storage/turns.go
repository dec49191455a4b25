package storage

import (
	"context"

	"ai-commands/internal/domain"
)

// AppendTurn inserts a chat turn.
func (db *DB) AppendTurn(ctx context.Context, turn domain.ChatTurn) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO chat_turns (user_id, user_message, ai_response, created_at) VALUES (?, ?, ?, ?)",
		turn.UserID, turn.UserMessage, turn.AIResponse, formatTime(turn.CreatedAt),
	)
	return err
}

// RecentTurns returns the newest limit turns for a user, oldest first.
func (db *DB) RecentTurns(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_message, ai_response, created_at FROM (
			SELECT id, user_message, ai_response, created_at FROM chat_turns
			WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.ChatTurn
	for rows.Next() {
		t := domain.ChatTurn{UserID: userID}
		var created string
		if err := rows.Scan(&t.UserMessage, &t.AIResponse, &created); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ClearTurns deletes every turn of a user and returns how many were removed.
func (db *DB) ClearTurns(ctx context.Context, userID string) (int, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM chat_turns WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
