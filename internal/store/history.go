package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"clipper/internal/job"
	"clipper/internal/logging"
)

// JobRecord is a finished job as kept in history. SourceURL is redacted.
type JobRecord struct {
	ID              string
	UserID          int64
	SourceURL       string
	Preset          string
	State           job.State
	Reason          job.Reason
	SourceBytes     *int64
	DurationSeconds *float64
	EstimateBytes   *int64
	FetchedBytes    *int64
	OutputBytes     *int64
	CreatedAt       time.Time
	FinishedAt      time.Time
}

// RecordJob stores a terminal job snapshot.
func (s *Store) RecordJob(ctx context.Context, snap job.Snapshot) error {
	_, err := s.exec(ctx,
		`INSERT INTO jobs (
            id, user_id, source_url, preset, state, reason,
            source_bytes, duration_seconds, estimate_bytes, fetched_bytes,
            output_bytes, created_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            state = excluded.state, reason = excluded.reason,
            fetched_bytes = excluded.fetched_bytes, output_bytes = excluded.output_bytes,
            finished_at = excluded.finished_at`,
		snap.ID,
		snap.RequesterID,
		logging.RedactURL(snap.SourceURL),
		snap.Preset.Name,
		string(snap.State),
		nullableString(string(snap.Reason)),
		nullableInt(snap.SourceBytes),
		nullableFloat(snap.DurationSeconds),
		nullableInt(snap.EstimateBytes),
		nullableInt(snap.FetchedBytes),
		nullableInt(snap.OutputBytes),
		timestamp(snap.CreatedAt),
		timestamp(snap.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// RecentJobs returns up to limit jobs, newest first. userID 0 returns all users.
func (s *Store) RecentJobs(ctx context.Context, userID int64, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, user_id, source_url, preset, state, reason,
                     source_bytes, duration_seconds, estimate_bytes, fetched_bytes,
                     output_bytes, created_at, finished_at
              FROM jobs`
	args := []any{}
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var (
			r                 JobRecord
			state             string
			reason            sql.NullString
			source, est       sql.NullInt64
			fetched, output   sql.NullInt64
			duration          sql.NullFloat64
			created, finished string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.SourceURL, &r.Preset, &state, &reason,
			&source, &duration, &est, &fetched, &output, &created, &finished); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		r.State = job.State(state)
		r.Reason = job.Reason(reason.String)
		r.SourceBytes = intPtr(source)
		r.DurationSeconds = floatPtr(duration)
		r.EstimateBytes = intPtr(est)
		r.FetchedBytes = intPtr(fetched)
		r.OutputBytes = intPtr(output)
		r.CreatedAt = parseTimestamp(created)
		r.FinishedAt = parseTimestamp(finished)
		records = append(records, r)
	}
	return records, rows.Err()
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	out := v.Float64
	return &out
}
