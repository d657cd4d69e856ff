package store

import (
	"context"
	"fmt"
	"time"
)

// Action is one entry of the action log.
type Action struct {
	ID        int64
	UserID    int64
	Action    string
	Detail    string
	CreatedAt time.Time
}

// LogAction appends to the action log. Callers must not pass raw URLs.
func (s *Store) LogAction(ctx context.Context, userID int64, action, detail string) error {
	_, err := s.exec(ctx,
		`INSERT INTO logs (user_id, action, detail, created_at) VALUES (?, ?, ?, ?)`,
		userID, action, nullableString(detail), timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

// RecentActions returns up to limit log entries, newest first.
func (s *Store) RecentActions(ctx context.Context, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, COALESCE(user_id, 0), action, COALESCE(detail, ''), created_at
         FROM logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var (
			a       Action
			created string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Detail, &created); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.CreatedAt = parseTimestamp(created)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// PruneLogs deletes action log entries created before cutoff.
func (s *Store) PruneLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM logs WHERE created_at < ?`, timestamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune logs: %w", err)
	}
	return res.RowsAffected()
}
