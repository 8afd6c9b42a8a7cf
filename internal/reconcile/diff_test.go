package reconcile

import (
	"testing"

	"github.com/starford/readwise2anki/internal/models"
)

func TestDiffFields_IntersectsWithNoteFields(t *testing.T) {
	note := &models.ExistingNote{Fields: map[string]string{
		"Text":  "<p>a</p>",
		"Color": "yellow",
		"Extra": "user data",
	}}
	want := models.NoteFields{Text: "<p>a</p>", Color: "blue", Title: "New title"}

	got := DiffFields(note, want)
	if len(got) != 1 || got["Color"] != "blue" {
		t.Errorf("diff = %v, want only Color", got)
	}
}

func TestDiffFields_NoChange(t *testing.T) {
	want := models.NoteFields{Text: "x", HighlightID: "1"}
	note := &models.ExistingNote{Fields: want.Map()}
	if got := DiffFields(note, want); len(got) != 0 {
		t.Errorf("diff = %v, want empty", got)
	}
}

func TestSameTags(t *testing.T) {
	cases := []struct {
		a, b []string
		want bool
	}{
		{[]string{"a", "readwise"}, []string{"readwise", "a"}, true},
		{[]string{"Go"}, []string{"go"}, true},
		{[]string{"a"}, []string{"a", "b"}, false},
		{nil, []string{}, true},
		{[]string{"a", "A"}, []string{"a"}, true},
	}
	for _, c := range cases {
		if got := SameTags(c.a, c.b); got != c.want {
			t.Errorf("SameTags(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestReport_MergeAndChanged(t *testing.T) {
	r := Report{NotesAdded: 1, NotesSkipped: 4}
	r.Merge(Report{NotesAdded: 2, NotesUpdated: 1, NotesDeleted: 1, NotesFailed: 3})
	if r.NotesAdded != 3 || r.NotesFailed != 3 || r.NotesSkipped != 4 {
		t.Errorf("merged = %+v", r)
	}
	if got := r.Changed(); got != 5 {
		t.Errorf("Changed = %d, want 5", got)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeRejected.String() != "rejected" || Outcome(99).String() != "unknown" {
		t.Error("unexpected outcome names")
	}
}
