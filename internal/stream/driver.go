// Package stream feeds export records to the reconciler one book at a time.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/readwise2anki/internal/models"
	"github.com/starford/readwise2anki/internal/reconcile"
)

// Source yields export records in order. *readwise.Client and *cache.Source
// implement it.
type Source interface {
	Export(ctx context.Context, updatedAfter string, fn func(models.Book) error) error
}

// Processor handles one book. *reconcile.Reconciler implements it.
type Processor interface {
	ProcessBook(ctx context.Context, b models.Book, rep *reconcile.Report) error
}

// Driver walks a Source and hands each book to a Processor.
type Driver struct {
	proc   Processor
	logger *slog.Logger
}

// New creates a Driver.
func New(proc Processor, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{proc: proc, logger: logger}
}

// Run streams src through the processor and returns the ids of every valid
// highlight seen, tombstones included. Each book is counted in its own
// Report, merged into rep once the book is done. Invalid highlights are dropped before
// processing. Run stops at the first book boundary after ctx is done.
func (d *Driver) Run(ctx context.Context, src Source, updatedAfter string, rep *reconcile.Report) (reconcile.SeenSet, error) {
	seen := reconcile.SeenSet{}
	err := src.Export(ctx, updatedAfter, func(b models.Book) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.Highlights = d.validHighlights(b)
		for _, h := range b.Highlights {
			seen.Add(h.HighlightID())
		}

		var bookRep reconcile.Report
		err := d.proc.ProcessBook(ctx, b, &bookRep)
		rep.Merge(bookRep)
		if bookRep.Changed() > 0 || bookRep.NotesFailed > 0 {
			d.logger.Debug("stream: book reconciled",
				slog.Int64("book_id", b.ID),
				slog.String("title", b.Title),
				slog.Any("report", bookRep),
			)
		}
		return err
	})
	if err != nil {
		return seen, fmt.Errorf("stream export: %w", err)
	}
	return seen, nil
}

func (d *Driver) validHighlights(b models.Book) []models.Highlight {
	if b.ID == 0 {
		d.logger.Debug("stream: record without user_book_id", slog.String("title", b.Title))
	}
	valid := b.Highlights[:0:0]
	for i, h := range b.Highlights {
		if err := h.Validate(); err != nil {
			d.logger.Warn("stream: dropping invalid highlight",
				slog.Int64("book_id", b.ID),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		valid = append(valid, h)
	}
	return valid
}
