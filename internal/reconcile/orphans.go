package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/starford/readwise2anki/internal/models"
)

// OrphanPolicy says what to do with notes whose highlight left Readwise.
type OrphanPolicy string

const (
	OrphansReport OrphanPolicy = "report"
	OrphansDelete OrphanPolicy = "delete"
)

// previewRunes bounds the text shown for an orphan.
const previewRunes = 100

// SeenSet holds the highlight ids of one complete pass over the export.
type SeenSet map[string]struct{}

// Add records id.
func (s SeenSet) Add(id string) { s[id] = struct{}{} }

// Has reports whether id was seen.
func (s SeenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Orphans finds notes of the deck whose HighlightID is not in seen and
// reports or deletes them. seen must come from a full pass; an incremental
// pass would flag every untouched note.
func (r *Reconciler) Orphans(ctx context.Context, seen SeenSet, policy OrphanPolicy, rep *Report) error {
	notes, err := r.index.All(ctx)
	if err != nil {
		return fmt.Errorf("list deck notes: %w", err)
	}
	if len(notes) == 0 {
		r.logger.Info("reconcile: no existing notes in deck", slog.String("deck", r.deck))
		return nil
	}

	var ids []int64
	for _, n := range notes {
		hid := n.HighlightID()
		if hid == "" || seen.Has(hid) {
			continue
		}
		ids = append(ids, n.ID)
		title, _ := n.Field(models.FieldTitle)
		text, _ := n.Field(models.FieldText)
		r.logger.Info("reconcile: orphaned note",
			slog.String("highlight_id", hid),
			slog.String("title", title),
			slog.String("preview", Preview(text)),
		)
	}
	rep.NotesOrphaned = len(ids)
	if len(ids) == 0 {
		r.logger.Info("reconcile: no orphaned notes found")
		return nil
	}
	r.logger.Info("reconcile: orphaned notes found (in Anki but not in Readwise)", slog.Int("count", len(ids)))

	if policy != OrphansDelete {
		return nil
	}
	if err := r.store.DeleteNotes(ctx, ids); err != nil {
		return fmt.Errorf("delete orphaned notes: %w", err)
	}
	rep.NotesDeleted = len(ids)
	r.logger.Info("reconcile: deleted orphaned notes", slog.Int("count", len(ids)))
	return nil
}

// Preview shortens text to a single line of at most 100 runes plus an
// ellipsis.
func Preview(text string) string {
	if utf8.RuneCountInString(text) > previewRunes {
		text = string([]rune(text)[:previewRunes]) + "..."
	}
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)
}
