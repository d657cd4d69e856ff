package testsupport

import (
	"context"
	"testing"

	"clipper/internal/config"
	"clipper/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// MustAddUser whitelists a user in the test store.
func MustAddUser(t testing.TB, st *store.Store, userID int64) {
	t.Helper()

	if err := st.AddUser(context.Background(), userID); err != nil {
		t.Fatalf("store.AddUser: %v", err)
	}
}
