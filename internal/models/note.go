package models

// Field names of the "Readwise Highlight" note type, in schema order.
const (
	FieldText         = "Text"
	FieldTitle        = "Title"
	FieldAuthor       = "Author"
	FieldSource       = "Source"
	FieldCategory     = "Category"
	FieldNote         = "Note"
	FieldTags         = "Tags"
	FieldHighlightID  = "HighlightID"
	FieldUpdatedAt    = "UpdatedAt"
	FieldHighlightURL = "HighlightURL"
	FieldReadwiseURL  = "ReadwiseURL"
	FieldColor        = "Color"
	FieldIsFavorite   = "IsFavorite"
)

// NoteFieldNames lists every field this system populates, in schema order.
var NoteFieldNames = []string{
	FieldText,
	FieldTitle,
	FieldAuthor,
	FieldSource,
	FieldCategory,
	FieldNote,
	FieldTags,
	FieldHighlightID,
	FieldUpdatedAt,
	FieldHighlightURL,
	FieldReadwiseURL,
	FieldColor,
	FieldIsFavorite,
}

// NoteFields holds the canonical field values of one highlight note.
type NoteFields struct {
	Text         string
	Title        string
	Author       string
	Source       string
	Category     string
	Note         string
	Tags         string
	HighlightID  string
	UpdatedAt    string
	HighlightURL string
	ReadwiseURL  string
	Color        string
	IsFavorite   string
}

// Map returns the fields keyed by note-type field name.
func (f NoteFields) Map() map[string]string {
	return map[string]string{
		FieldText:         f.Text,
		FieldTitle:        f.Title,
		FieldAuthor:       f.Author,
		FieldSource:       f.Source,
		FieldCategory:     f.Category,
		FieldNote:         f.Note,
		FieldTags:         f.Tags,
		FieldHighlightID:  f.HighlightID,
		FieldUpdatedAt:    f.UpdatedAt,
		FieldHighlightURL: f.HighlightURL,
		FieldReadwiseURL:  f.ReadwiseURL,
		FieldColor:        f.Color,
		FieldIsFavorite:   f.IsFavorite,
	}
}

// ExistingNote is a note already stored in the deck.
type ExistingNote struct {
	ID     int64
	Fields map[string]string
	Tags   []string
	Cards  []int64
}

// Field returns the value of a field and whether the note's type has it.
func (n *ExistingNote) Field(name string) (string, bool) {
	v, ok := n.Fields[name]
	return v, ok
}

// HighlightID returns the note's reconciliation key, or "" when unset.
func (n *ExistingNote) HighlightID() string {
	return n.Fields[FieldHighlightID]
}
