// Package store persists the whitelist, per-user settings, job history and
// the action log in SQLite.
//
// The database lives at <state_dir>/clipper.db and is opened in WAL mode.
// Schema changes are ordered migrations tracked in PRAGMA user_version; a
// database from a newer build is refused.
package store
