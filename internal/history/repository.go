// Package history persists the terminal outcome of every inference job.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/forexbot/internal/portfolio"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 20

// MaxLimit caps Recent.
const MaxLimit = 500

// Record is one finished job.
type Record struct {
	ID         string           `json:"id"`
	Trigger    string           `json:"trigger"`
	ChannelID  string           `json:"channel_id,omitempty"`
	UserID     string           `json:"user_id,omitempty"`
	OutputDir  string           `json:"output_dir"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Result     string           `json:"result"`
	Category   string           `json:"category,omitempty"`
	ExitCode   int              `json:"exit_code"`
	Detail     string           `json:"detail,omitempty"`
	Delivered  bool             `json:"delivered"`
	Assets     portfolio.Assets `json:"assets,omitempty"`
}

// Duration returns how long the job ran.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Repository stores job records in the history database.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new job history repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record saves a job outcome. Records are keyed by job ID; saving the same ID
// twice replaces the earlier row.
func (r *Repository) Record(ctx context.Context, rec Record) error {
	var assets []byte
	if rec.Assets != nil {
		var err error
		assets, err = msgpack.Marshal(map[string]float64(rec.Assets))
		if err != nil {
			return fmt.Errorf("failed to encode assets: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO inference_jobs
			(id, trigger, channel_id, user_id, output_dir, started_at, finished_at,
			 result, category, exit_code, detail, delivered, assets)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Trigger, rec.ChannelID, rec.UserID, rec.OutputDir,
		rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		rec.Result, rec.Category, rec.ExitCode, rec.Detail, boolToInt(rec.Delivered), assets,
	)
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the newest records first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, trigger, channel_id, user_id, output_dir, started_at, finished_at,
		       result, category, exit_code, detail, delivered, assets
		FROM inference_jobs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query job history: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job history: %w", err)
	}
	return records, nil
}

// Get returns one record, or nil if it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, trigger, channel_id, user_id, output_dir, started_at, finished_at,
		       result, category, exit_code, detail, delivered, assets
		FROM inference_jobs WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteOlderThan removes records that started before cutoff.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM inference_jobs WHERE started_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old job history: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec        Record
		startedAt  int64
		finishedAt int64
		delivered  int
		assets     []byte
	)
	err := s.Scan(&rec.ID, &rec.Trigger, &rec.ChannelID, &rec.UserID, &rec.OutputDir,
		&startedAt, &finishedAt, &rec.Result, &rec.Category, &rec.ExitCode, &rec.Detail,
		&delivered, &assets)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan job record: %w", err)
	}

	rec.StartedAt = time.UnixMilli(startedAt)
	rec.FinishedAt = time.UnixMilli(finishedAt)
	rec.Delivered = delivered != 0

	if len(assets) > 0 {
		var decoded map[string]float64
		if err := msgpack.Unmarshal(assets, &decoded); err != nil {
			return rec, fmt.Errorf("failed to decode assets for job %s: %w", rec.ID, err)
		}
		rec.Assets = portfolio.Assets(decoded)
	}
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
