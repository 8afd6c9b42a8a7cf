package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/readwise2anki/internal/apperr"
	"github.com/starford/readwise2anki/internal/reconcile"
)

// Mode is where a run read its export from.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
	ModeCache       Mode = "cache"
)

// Status is the end state of a run. A partial run completed but some notes
// failed to sync.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Run is one row of the runs table.
type Run struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Deck             string
	Mode             Mode
	UpdatedAfter     string
	Status           Status
	Error            string
	SnapshotChecksum string
	Report           reconcile.Report
}

// Record stores r and returns its id, generating one when r.ID is empty.
func (db *DB) Record(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	report, err := json.Marshal(r.Report)
	if err != nil {
		return "", fmt.Errorf("ledger: encode report: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, deck, mode, updated_after, status, error, snapshot_checksum, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, formatTime(r.StartedAt), formatTime(r.FinishedAt), r.Deck, string(r.Mode),
		r.UpdatedAfter, string(r.Status), r.Error, r.SnapshotChecksum, string(report))
	if err != nil {
		return "", fmt.Errorf("ledger: insert run: %w", err)
	}
	return r.ID, nil
}

// LastSuccessful returns the most recent successful run for deck that read
// the live export. Cached and partial runs are never a valid cursor. It
// returns an error wrapping apperr.ErrNotFound when there is none.
func (db *DB) LastSuccessful(ctx context.Context, deck string) (*Run, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE deck = ? AND status = ? AND mode IN (?, ?)
		ORDER BY started_at DESC
		LIMIT 1
	`, deck, string(StatusOK), string(ModeFull), string(ModeIncremental))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger: no successful run for deck %q: %w", deck, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Recent returns up to limit runs, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

const runColumns = `id, started_at, finished_at, deck, mode, updated_after, status, error, snapshot_checksum, report`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r                 Run
		started, finished string
		mode, status, rep string
	)
	if err := s.Scan(&r.ID, &started, &finished, &r.Deck, &mode, &r.UpdatedAfter, &status, &r.Error, &r.SnapshotChecksum, &rep); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: scan run: %w", err)
	}
	var err error
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("ledger: parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("ledger: parse finished_at: %w", err)
	}
	r.Mode = Mode(mode)
	r.Status = Status(status)
	if err := json.Unmarshal([]byte(rep), &r.Report); err != nil {
		return nil, fmt.Errorf("ledger: decode report: %w", err)
	}
	return &r, nil
}

// formatTime renders t so that lexical order matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
