// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/starford/readwise2anki/internal/ankiconnect"
	"github.com/starford/readwise2anki/internal/apperr"
	"github.com/starford/readwise2anki/internal/cache"
	"github.com/starford/readwise2anki/internal/ledger"
	"github.com/starford/readwise2anki/internal/markup"
	"github.com/starford/readwise2anki/internal/normalize"
	"github.com/starford/readwise2anki/internal/readwise"
	"github.com/starford/readwise2anki/internal/reconcile"
	"github.com/starford/readwise2anki/internal/stream"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Run performs one sync pass and records it in the ledger.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog := newLogger(cfg.App, app.stdout)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("deck", cfg.Anki.Deck),
		slog.String("anki_url", cfg.Anki.URL),
		slog.Bool("use_cache", cfg.Cache.Enabled),
		slog.String("orphans", string(cfg.Sync.Orphans)),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if cfg.Readwise.Token == "" && !cfg.Cache.Enabled {
		return errors.New("readwise token is required (--api-token or READWISE_API_TOKEN)")
	}

	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer db.Close()

	run := ledger.Run{
		StartedAt: time.Now(),
		Deck:      cfg.Anki.Deck,
		Mode:      ledger.ModeFull,
	}
	syncErr := app.sync(ctx, logger, db, &run)
	run.FinishedAt = time.Now()
	switch {
	case syncErr != nil:
		run.Status = ledger.StatusFailed
		run.Error = syncErr.Error()
	case run.Report.NotesFailed > 0:
		// Failed highlights keep their updated_at, so this run must not
		// become the next incremental cursor.
		run.Status = ledger.StatusPartial
	default:
		run.Status = ledger.StatusOK
	}

	// The run is recorded even when ctx was cancelled.
	if _, err := db.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("ledger: record failed", slog.String("error", err.Error()))
	}
	if syncErr != nil {
		return syncErr
	}

	rep := run.Report
	logger.Info(fmt.Sprintf("Processed %d books with %d highlights", rep.BooksProcessed, rep.HighlightsProcessed),
		slog.Any("report", rep),
		slog.String("mode", string(run.Mode)),
		slog.Duration("duration", run.FinishedAt.Sub(run.StartedAt)))
	logger.Info(fmt.Sprintf("Added: %d, Updated: %d, Suspended: %d, Skipped: %d",
		rep.NotesAdded, rep.NotesUpdated, rep.NotesSuspended, rep.NotesSkipped))
	if rep.NotesFailed > 0 || rep.HighlightsRejected > 0 {
		logger.Warn("sync: some highlights were not synced",
			slog.Int("failed", rep.NotesFailed),
			slog.Int("rejected", rep.HighlightsRejected))
	}
	return nil
}

// sync does the work of Run and fills run as it goes.
func (app *application) sync(ctx context.Context, logger *slog.Logger, db ledger.RunLog, run *ledger.Run) error {
	cfg := app.config

	updatedAfter, err := resolveUpdatedAfter(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	run.UpdatedAfter = updatedAfter
	if updatedAfter != "" {
		run.Mode = ledger.ModeIncremental
	}

	anki := ankiconnect.NewClient(cfg.Anki.URL, &http.Client{Timeout: cfg.Anki.Timeout})
	noteType, err := ankiconnect.Provision(ctx, anki, cfg.Anki.Deck, ankiconnect.HighlightNoteType(cfg.Anki.NoteType), logger)
	if err != nil {
		return err
	}

	rw := readwise.NewClient(cfg.Readwise.BaseURL, cfg.Readwise.Token,
		readwise.WithHTTPClient(&http.Client{Timeout: cfg.Readwise.Timeout}),
		readwise.WithRequestsPerMinute(cfg.Readwise.RequestsPerMinute),
	)

	var src stream.Source = rw
	var snapshot *cache.Source
	if cfg.Cache.Enabled {
		snapshot = cache.New(cfg.Cache.Path, rw, logger)
		src = snapshot
		run.Mode = ledger.ModeCache
		if updatedAfter != "" {
			logger.Info("sync: cached snapshot is a full export, ignoring updated_after",
				slog.String("updated_after", updatedAfter))
			updatedAfter = ""
			run.UpdatedAfter = ""
		}
	}

	rec := reconcile.New(anki, normalize.New(markup.New()), cfg.Anki.Deck, noteType, logger)
	seen, err := stream.New(rec, logger).Run(ctx, src, updatedAfter, &run.Report)
	if snapshot != nil {
		run.SnapshotChecksum = snapshot.Checksum()
	}
	if err != nil {
		return err
	}

	if updatedAfter != "" {
		logger.Info("sync: orphan detection skipped on incremental run")
		return nil
	}
	return rec.Orphans(ctx, seen, cfg.Sync.Orphans, &run.Report)
}

// resolveUpdatedAfter returns the updatedAfter cursor of this run, "" for a
// full pass.
func resolveUpdatedAfter(ctx context.Context, cfg *Config, db ledger.RunLog, logger *slog.Logger) (string, error) {
	if cfg.Sync.UpdatedAfter != "" {
		return cfg.Sync.UpdatedAfter, nil
	}
	if !cfg.Sync.Incremental {
		return "", nil
	}
	last, err := db.LastSuccessful(ctx, cfg.Anki.Deck)
	if errors.Is(err, apperr.ErrNotFound) {
		logger.Info("sync: no previous successful run, doing a full pass")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read last run: %w", err)
	}
	return last.StartedAt.UTC().Format(time.RFC3339), nil
}

// History prints the most recent runs as a table.
func History(ctx context.Context, limit int, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	db, err := ledger.Open(app.config.Ledger.Path)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer db.Close()

	runs, err := db.Recent(ctx, limit)
	if err != nil {
		return err
	}
	return writeHistory(app.stdout, runs)
}

func writeHistory(w io.Writer, runs []ledger.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded yet.")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "DECK", "MODE", "STATUS", "TOOK", "ADDED", "UPDATED", "SUSPENDED", "SKIPPED", "FAILED", "ORPHANED", "DELETED")
	var failures []string
	for _, r := range runs {
		rep := r.Report
		t.Row(
			humanize.Time(r.StartedAt),
			r.Deck,
			string(r.Mode),
			string(r.Status),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			humanize.Comma(int64(rep.NotesAdded)),
			humanize.Comma(int64(rep.NotesUpdated)),
			humanize.Comma(int64(rep.NotesSuspended)),
			humanize.Comma(int64(rep.NotesSkipped)),
			humanize.Comma(int64(rep.NotesFailed)),
			humanize.Comma(int64(rep.NotesOrphaned)),
			humanize.Comma(int64(rep.NotesDeleted)),
		)
		if r.Error != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", r.StartedAt.Local().Format(time.DateTime), r.Error))
		}
	}

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	for _, f := range failures {
		if _, err := fmt.Fprintln(w, "failed run "+f); err != nil {
			return err
		}
	}
	return nil
}
