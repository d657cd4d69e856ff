package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PresetKey is the settings key holding a user's encoding preset.
const PresetKey = "encoding_preset"

// Setting returns a stored value, or "" when unset.
func (s *Store) Setting(ctx context.Context, userID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT value FROM settings WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a value.
func (s *Store) SetSetting(ctx context.Context, userID int64, key, value string) error {
	_, err := s.exec(ctx,
		`INSERT INTO settings (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// PresetName returns the user's preset name, or "" when unset.
func (s *Store) PresetName(ctx context.Context, userID int64) (string, error) {
	return s.Setting(ctx, userID, PresetKey)
}

// SetPresetName stores the user's preset name.
func (s *Store) SetPresetName(ctx context.Context, userID int64, name string) error {
	return s.SetSetting(ctx, userID, PresetKey, name)
}
