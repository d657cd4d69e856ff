// Package redisstore keeps the whitelist and user settings in Redis so several
// bot instances can share them. Job history and the action log stay in SQLite.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"clipper/internal/config"
	"clipper/internal/store"
)

const (
	whitelistKey   = "clipper:whitelist"
	addedAtKey     = "clipper:whitelist:added"
	settingsPrefix = "clipper:settings:"
)

// Store is a Redis-backed whitelist and settings directory.
type Store struct {
	rdb *redis.Client
}

// Open connects using the [store] section and verifies the connection.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Store.RedisAddr,
		Password: cfg.Store.RedisPassword,
		DB:       cfg.Store.RedisDB,
	})
	s := New(rdb)
	if err := s.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Store.RedisAddr, err)
	}
	return s, nil
}

// New wraps an existing client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Close releases the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// IsAuthorized reports whether a user is whitelisted.
func (s *Store) IsAuthorized(ctx context.Context, userID int64) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, whitelistKey, userID).Result()
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return ok, nil
}

// AddUser whitelists a user.
func (s *Store) AddUser(ctx context.Context, userID int64) error {
	member := strconv.FormatInt(userID, 10)
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, whitelistKey, member)
	pipe.HSetNX(ctx, addedAtKey, member, time.Now().UTC().Format(time.RFC3339))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

// RemoveUser removes a user and their settings.
func (s *Store) RemoveUser(ctx context.Context, userID int64) (bool, error) {
	member := strconv.FormatInt(userID, 10)
	pipe := s.rdb.TxPipeline()
	removed := pipe.SRem(ctx, whitelistKey, member)
	pipe.HDel(ctx, addedAtKey, member)
	pipe.Del(ctx, settingsKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("remove user: %w", err)
	}
	return removed.Val() > 0, nil
}

// ListUsers returns whitelisted users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]store.User, error) {
	members, err := s.rdb.SMembers(ctx, whitelistKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	added, err := s.rdb.HGetAll(ctx, addedAtKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]store.User, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		created, _ := time.Parse(time.RFC3339, added[member])
		users = append(users, store.User{ID: id, Whitelisted: true, CreatedAt: created})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// PresetName returns the user's preset name, or "" when unset.
func (s *Store) PresetName(ctx context.Context, userID int64) (string, error) {
	name, err := s.rdb.HGet(ctx, settingsKey(userID), store.PresetKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get preset: %w", err)
	}
	return name, nil
}

// SetPresetName stores the user's preset name.
func (s *Store) SetPresetName(ctx context.Context, userID int64, name string) error {
	if err := s.rdb.HSet(ctx, settingsKey(userID), store.PresetKey, name).Err(); err != nil {
		return fmt.Errorf("set preset: %w", err)
	}
	return nil
}

func settingsKey(userID int64) string {
	return settingsPrefix + strconv.FormatInt(userID, 10)
}
