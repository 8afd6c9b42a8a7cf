package reconcile

import "log/slog"

// Report counts what a run did. It is passed by pointer through the run and
// never shared between runs.
type Report struct {
	BooksProcessed      int `json:"books_processed"`
	BooksSuspended      int `json:"books_suspended"`
	HighlightsProcessed int `json:"highlights_processed"`
	NotesAdded          int `json:"notes_added"`
	NotesUpdated        int `json:"notes_updated"`
	NotesSuspended      int `json:"notes_suspended"`
	NotesUnsuspended    int `json:"notes_unsuspended"`
	NotesSkipped        int `json:"notes_skipped"`
	NotesFailed         int `json:"notes_failed"`
	HighlightsRejected  int `json:"highlights_rejected"`
	NotesOrphaned       int `json:"notes_orphaned"`
	NotesDeleted        int `json:"notes_deleted"`
}

// Merge adds the counters of o to r.
func (r *Report) Merge(o Report) {
	r.BooksProcessed += o.BooksProcessed
	r.BooksSuspended += o.BooksSuspended
	r.HighlightsProcessed += o.HighlightsProcessed
	r.NotesAdded += o.NotesAdded
	r.NotesUpdated += o.NotesUpdated
	r.NotesSuspended += o.NotesSuspended
	r.NotesUnsuspended += o.NotesUnsuspended
	r.NotesSkipped += o.NotesSkipped
	r.NotesFailed += o.NotesFailed
	r.HighlightsRejected += o.HighlightsRejected
	r.NotesOrphaned += o.NotesOrphaned
	r.NotesDeleted += o.NotesDeleted
}

// Changed returns the number of notes the run modified in the store.
func (r Report) Changed() int {
	return r.NotesAdded + r.NotesUpdated + r.NotesSuspended + r.NotesUnsuspended + r.NotesDeleted
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("books_processed", r.BooksProcessed),
		slog.Int("books_suspended", r.BooksSuspended),
		slog.Int("highlights_processed", r.HighlightsProcessed),
		slog.Int("notes_added", r.NotesAdded),
		slog.Int("notes_updated", r.NotesUpdated),
		slog.Int("notes_suspended", r.NotesSuspended),
		slog.Int("notes_unsuspended", r.NotesUnsuspended),
		slog.Int("notes_skipped", r.NotesSkipped),
		slog.Int("notes_failed", r.NotesFailed),
		slog.Int("highlights_rejected", r.HighlightsRejected),
		slog.Int("notes_orphaned", r.NotesOrphaned),
		slog.Int("notes_deleted", r.NotesDeleted),
	)
}
