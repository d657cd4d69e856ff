package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a whitelist entry.
type User struct {
	ID          int64
	Whitelisted bool
	CreatedAt   time.Time
}

// AddUser whitelists a user. Adding an existing user re-enables it.
func (s *Store) AddUser(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx,
		`INSERT INTO users (user_id, is_whitelisted, created_at) VALUES (?, 1, ?)
         ON CONFLICT(user_id) DO UPDATE SET is_whitelisted = 1`,
		userID, timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

// RemoveUser deletes a user and their settings. It reports whether the user existed.
func (s *Store) RemoveUser(ctx context.Context, userID int64) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("remove user: %w", err)
	}
	if _, err := s.exec(ctx, `DELETE FROM settings WHERE user_id = ?`, userID); err != nil {
		return false, fmt.Errorf("remove user settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUsers returns every user ordered by creation.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT user_id, is_whitelisted, created_at FROM users ORDER BY created_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u       User
			allowed int
			created string
		)
		if err := rows.Scan(&u.ID, &allowed, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Whitelisted = allowed != 0
		u.CreatedAt = parseTimestamp(created)
		users = append(users, u)
	}
	return users, rows.Err()
}

// IsAuthorized reports whether a user is whitelisted.
func (s *Store) IsAuthorized(ctx context.Context, userID int64) (bool, error) {
	var allowed int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT is_whitelisted FROM users WHERE user_id = ?`, userID,
	).Scan(&allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return allowed != 0, nil
}
