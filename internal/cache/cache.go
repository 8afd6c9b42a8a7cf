// Package cache keeps a local JSON snapshot of the Readwise export so that
// repeated runs do not hit the API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/starford/readwise2anki/internal/apperr"
	"github.com/starford/readwise2anki/internal/models"
)

// DefaultPath is where the snapshot lives unless configured otherwise.
const DefaultPath = "/tmp/readwise-export.json"

// Fetcher produces a full export, typically a *readwise.Client.
type Fetcher interface {
	Export(ctx context.Context, updatedAfter string, fn func(models.Book) error) error
}

// Source serves the export from the snapshot at its path, fetching and
// writing the snapshot first when it is missing or unreadable as JSON.
type Source struct {
	path     string
	fetch    Fetcher
	logger   *slog.Logger
	checksum string
}

// New creates a Source. An empty path means DefaultPath.
func New(path string, fetch Fetcher, logger *slog.Logger) *Source {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{path: path, fetch: fetch, logger: logger}
}

// Path returns the snapshot location.
func (s *Source) Path() string { return s.path }

// Checksum returns the SHA-256 of the snapshot served by the last Export.
func (s *Source) Checksum() string { return s.checksum }

// Export hands every record of the snapshot to fn in order. updatedAfter is
// ignored: the snapshot always holds a full export.
func (s *Source) Export(ctx context.Context, updatedAfter string, fn func(models.Book) error) error {
	books, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

// Refresh fetches a full export and overwrites the snapshot.
func (s *Source) Refresh(ctx context.Context) ([]models.Book, error) {
	if s.fetch == nil {
		return nil, fmt.Errorf("%w: no fetcher to fill %s", apperr.ErrCache, s.path)
	}
	books := []models.Book{}
	if err := s.fetch.Export(ctx, "", func(b models.Book) error {
		books = append(books, b)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("cache: fetch export: %w", err)
	}

	data, err := json.MarshalIndent(books, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("cache: encode snapshot: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrCache, err)
	}
	s.checksum = sum(data)
	s.logger.Info("cache: snapshot written",
		slog.String("path", s.path),
		slog.Int("records", len(books)),
	)
	return books, nil
}

func (s *Source) load(ctx context.Context) ([]models.Book, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("cache: snapshot missing, fetching", slog.String("path", s.path))
		return s.Refresh(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", apperr.ErrCache, s.path, err)
	}

	var books []models.Book
	if err := json.Unmarshal(data, &books); err != nil {
		s.logger.Warn("cache: snapshot unreadable, fetching",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return s.Refresh(ctx)
	}
	s.checksum = sum(data)
	s.logger.Debug("cache: snapshot loaded",
		slog.String("path", s.path),
		slog.Int("records", len(books)),
	)
	return books, nil
}
