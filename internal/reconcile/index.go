package reconcile

import (
	"context"

	"github.com/starford/readwise2anki/internal/ankiconnect"
	"github.com/starford/readwise2anki/internal/models"
)

// NoteStore is the part of AnkiConnect the reconciler drives.
// *ankiconnect.Client implements it.
type NoteStore interface {
	FindNotes(ctx context.Context, query string) ([]int64, error)
	NotesInfo(ctx context.Context, ids []int64) ([]ankiconnect.NoteInfo, error)
	AddNote(ctx context.Context, note ankiconnect.NewNote) (int64, error)
	UpdateNoteFields(ctx context.Context, id int64, fields map[string]string) error
	UpdateNoteTags(ctx context.Context, id int64, tags []string) error
	Suspend(ctx context.Context, cards []int64) error
	Unsuspend(ctx context.Context, cards []int64) error
	AreSuspended(ctx context.Context, cards []int64) ([]bool, error)
	DeleteNotes(ctx context.Context, ids []int64) error
}

// Index finds the notes of one deck. It keeps no state between calls.
type Index struct {
	store NoteStore
	deck  string
}

// NewIndex creates an Index scoped to deck.
func NewIndex(store NoteStore, deck string) *Index {
	return &Index{store: store, deck: deck}
}

// Lookup returns the note carrying highlightID, or nil when there is none.
// Should the deck hold several, the first is used.
func (ix *Index) Lookup(ctx context.Context, highlightID string) (*models.ExistingNote, error) {
	notes, err := ix.find(ctx, ankiconnect.And(
		ankiconnect.DeckQuery(ix.deck),
		ankiconnect.FieldQuery(models.FieldHighlightID, highlightID),
	))
	if err != nil || len(notes) == 0 {
		return nil, err
	}
	return notes[0], nil
}

// ByTitle returns every note whose Title field equals title.
func (ix *Index) ByTitle(ctx context.Context, title string) ([]*models.ExistingNote, error) {
	return ix.find(ctx, ankiconnect.And(
		ankiconnect.DeckQuery(ix.deck),
		ankiconnect.FieldQuery(models.FieldTitle, title),
	))
}

// All returns every note of the deck.
func (ix *Index) All(ctx context.Context) ([]*models.ExistingNote, error) {
	return ix.find(ctx, ankiconnect.DeckQuery(ix.deck))
}

func (ix *Index) find(ctx context.Context, query string) ([]*models.ExistingNote, error) {
	ids, err := ix.store.FindNotes(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	infos, err := ix.store.NotesInfo(ctx, ids)
	if err != nil {
		return nil, err
	}
	notes := make([]*models.ExistingNote, 0, len(infos))
	for _, info := range infos {
		// notesInfo answers {} for ids deleted in the meantime.
		if info.NoteID == 0 {
			continue
		}
		notes = append(notes, info.Existing())
	}
	return notes, nil
}
