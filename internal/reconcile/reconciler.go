// Package reconcile decides, per Readwise record, what has to change in the
// Anki deck and applies it.
package reconcile

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/readwise2anki/internal/ankiconnect"
	"github.com/starford/readwise2anki/internal/models"
	"github.com/starford/readwise2anki/internal/normalize"
)

// Outcome is what happened to one highlight.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeSuspended
	// OutcomeAbsent is a tombstone without a note to suspend.
	OutcomeAbsent
	// OutcomeFailed is a store failure; the run continues.
	OutcomeFailed
	// OutcomeRejected is a highlight that cannot become a note.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSuspended:
		return "suspended"
	case OutcomeAbsent:
		return "absent"
	case OutcomeFailed:
		return "failed"
	case OutcomeRejected:
		return "rejected"
	}
	return "unknown"
}

// Reconciler applies Readwise records to one deck.
type Reconciler struct {
	store    NoteStore
	index    *Index
	norm     *normalize.Normalizer
	deck     string
	noteType ankiconnect.NoteType
	logger   *slog.Logger
}

// New creates a Reconciler. noteType should be the one returned by
// provisioning so that only fields the store knows are written.
func New(store NoteStore, norm *normalize.Normalizer, deck string, noteType ankiconnect.NoteType, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		index:    NewIndex(store, deck),
		norm:     norm,
		deck:     deck,
		noteType: noteType,
		logger:   logger,
	}
}

// ProcessBook handles a book and, unless it is tombstoned, each of its
// highlights in order. It only returns an error when ctx is done.
func (r *Reconciler) ProcessBook(ctx context.Context, b models.Book, rep *Report) error {
	if b.IsDeleted {
		r.suspendBook(ctx, b, rep)
		return nil
	}

	rep.BooksProcessed++
	for _, h := range b.Highlights {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.ProcessHighlight(ctx, h, b, rep)
	}
	return nil
}

// ProcessHighlight reconciles a single highlight of book b.
func (r *Reconciler) ProcessHighlight(ctx context.Context, h models.Highlight, b models.Book, rep *Report) Outcome {
	if h.IsDeleted {
		return r.suspendHighlight(ctx, h, rep)
	}
	return r.upsert(ctx, h, b, rep)
}

func (r *Reconciler) suspendHighlight(ctx context.Context, h models.Highlight, rep *Report) Outcome {
	id := h.HighlightID()
	note, err := r.index.Lookup(ctx, id)
	if err != nil {
		r.logger.Debug("reconcile: tombstone lookup failed",
			slog.String("highlight_id", id),
			slog.String("error", err.Error()),
		)
		return OutcomeAbsent
	}
	if note == nil || len(note.Cards) == 0 {
		r.logger.Debug("reconcile: no note for deleted highlight", slog.String("highlight_id", id))
		return OutcomeAbsent
	}
	if err := r.store.Suspend(ctx, note.Cards); err != nil {
		r.logger.Warn("reconcile: suspend failed",
			slog.String("highlight_id", id),
			slog.String("error", err.Error()),
		)
		rep.NotesFailed++
		return OutcomeFailed
	}
	rep.NotesSuspended++
	r.logger.Debug("reconcile: suspended deleted highlight",
		slog.String("highlight_id", id),
		slog.Int("cards", len(note.Cards)),
	)
	return OutcomeSuspended
}

func (r *Reconciler) suspendBook(ctx context.Context, b models.Book, rep *Report) {
	if strings.TrimSpace(b.Title) == "" {
		r.logger.Warn("reconcile: deleted book has no title, cannot match its notes",
			slog.Int64("book_id", b.ID),
		)
		return
	}

	notes, err := r.index.ByTitle(ctx, b.Title)
	if err != nil {
		r.logger.Warn("reconcile: book lookup failed",
			slog.Int64("book_id", b.ID),
			slog.String("title", b.Title),
			slog.String("error", err.Error()),
		)
		return
	}

	var cards []int64
	suspended := 0
	for _, n := range notes {
		if len(n.Cards) == 0 {
			continue
		}
		cards = append(cards, n.Cards...)
		suspended++
	}
	if suspended == 0 {
		r.logger.Debug("reconcile: no notes for deleted book", slog.String("title", b.Title))
		return
	}

	if err := r.store.Suspend(ctx, cards); err != nil {
		r.logger.Warn("reconcile: book suspend failed",
			slog.Int64("book_id", b.ID),
			slog.String("title", b.Title),
			slog.String("error", err.Error()),
		)
		rep.NotesFailed += suspended
		return
	}
	rep.BooksSuspended++
	rep.NotesSuspended += suspended
	r.logger.Debug("reconcile: suspended deleted book",
		slog.Int64("book_id", b.ID),
		slog.String("title", b.Title),
		slog.Int("notes", suspended),
	)
}

func (r *Reconciler) upsert(ctx context.Context, h models.Highlight, b models.Book, rep *Report) Outcome {
	id := h.HighlightID()
	rep.HighlightsProcessed++

	res, err := r.norm.Normalize(h, b)
	if err != nil {
		r.logger.Warn("reconcile: highlight rejected",
			slog.String("highlight_id", id),
			slog.String("error", err.Error()),
		)
		rep.HighlightsRejected++
		return OutcomeRejected
	}
	for _, w := range res.Warnings {
		r.logger.Warn("reconcile: data quality", slog.String("highlight_id", id), slog.String("detail", w))
	}

	existing, err := r.index.Lookup(ctx, id)
	if err != nil {
		return r.failed(id, "lookup", err, rep)
	}
	if existing == nil {
		return r.create(ctx, id, res, rep)
	}
	return r.update(ctx, id, existing, res, rep)
}

func (r *Reconciler) create(ctx context.Context, id string, res *normalize.Result, rep *Report) Outcome {
	fields := res.Fields.Map()
	if len(r.noteType.Fields) > 0 {
		for name := range fields {
			if !r.noteType.Has(name) {
				delete(fields, name)
			}
		}
	}

	if _, err := r.store.AddNote(ctx, ankiconnect.NewNote{
		DeckName:  r.deck,
		ModelName: r.noteType.Name,
		Fields:    fields,
		Tags:      res.Tags,
		Options:   &ankiconnect.NoteOptions{AllowDuplicate: true, DuplicateScope: "deck"},
	}); err != nil {
		return r.failed(id, "add", err, rep)
	}
	rep.NotesAdded++
	r.logger.Debug("reconcile: added note", slog.String("highlight_id", id))
	return OutcomeCreated
}

func (r *Reconciler) update(ctx context.Context, id string, note *models.ExistingNote, res *normalize.Result, rep *Report) Outcome {
	changed := DiffFields(note, res.Fields)
	tagsChanged := !SameTags(note.Tags, res.Tags)
	if len(changed) == 0 && !tagsChanged {
		rep.NotesSkipped++
		return OutcomeSkipped
	}

	if len(changed) > 0 {
		if err := r.store.UpdateNoteFields(ctx, note.ID, changed); err != nil {
			return r.failed(id, "update fields", err, rep)
		}
	}
	if tagsChanged {
		if err := r.store.UpdateNoteTags(ctx, note.ID, res.Tags); err != nil {
			return r.failed(id, "update tags", err, rep)
		}
	}
	rep.NotesUpdated++
	r.logger.Debug("reconcile: updated note",
		slog.String("highlight_id", id),
		slog.Any("fields", fieldNames(changed)),
		slog.Bool("tags", tagsChanged),
	)

	r.unsuspend(ctx, id, note, rep)
	return OutcomeUpdated
}

// unsuspend revives the cards of a note whose highlight came back after a
// tombstone. Failures only log: the fields are already current.
func (r *Reconciler) unsuspend(ctx context.Context, id string, note *models.ExistingNote, rep *Report) {
	if len(note.Cards) == 0 {
		return
	}
	states, err := r.store.AreSuspended(ctx, note.Cards)
	if err != nil {
		r.logger.Warn("reconcile: suspension check failed",
			slog.String("highlight_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	var cards []int64
	for i, s := range states {
		if s && i < len(note.Cards) {
			cards = append(cards, note.Cards[i])
		}
	}
	if len(cards) == 0 {
		return
	}
	if err := r.store.Unsuspend(ctx, cards); err != nil {
		r.logger.Warn("reconcile: unsuspend failed",
			slog.String("highlight_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	rep.NotesUnsuspended++
	r.logger.Debug("reconcile: unsuspended restored highlight", slog.String("highlight_id", id))
}

func (r *Reconciler) failed(id, op string, err error, rep *Report) Outcome {
	r.logger.Error("reconcile: "+op+" failed",
		slog.String("highlight_id", id),
		slog.String("error", err.Error()),
	)
	rep.NotesFailed++
	return OutcomeFailed
}
