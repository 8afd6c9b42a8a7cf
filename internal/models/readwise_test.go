package models

import (
	"encoding/json"
	"testing"
)

func TestBook_DecodeExportRecord(t *testing.T) {
	raw := `{
		"user_book_id": 12, "title": "Dune", "author": null, "category": "books",
		"asin": "B00B7NPRY8", "is_deleted": false,
		"highlights": [
			{"id": 1, "text": "Fear is the mind-killer.", "location": 450, "location_type": "location",
			 "tags": [{"id": 3, "name": "fear"}], "is_favorite": true, "note": null, "url": null},
			{"id": 2, "text": "x", "location": 12.5, "is_deleted": true}
		]
	}`
	var b Book
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.ID != 12 || b.Title != "Dune" || b.Author != "" || b.ASIN != "B00B7NPRY8" {
		t.Errorf("book = %+v", b)
	}
	if len(b.Highlights) != 2 {
		t.Fatalf("len(highlights) = %d", len(b.Highlights))
	}
	h := b.Highlights[0]
	if loc, ok := h.Location.Int(); !ok || loc != 450 {
		t.Errorf("location = %d, %v", loc, ok)
	}
	if h.Note != "" || h.URL != "" || !h.IsFavorite || h.Tags[0].Name != "fear" {
		t.Errorf("highlight = %+v", h)
	}
	if _, ok := b.Highlights[1].Location.Int(); ok {
		t.Error("fractional location should not be an integer")
	}
	if !b.Highlights[1].IsDeleted {
		t.Error("expected tombstone")
	}
}

func TestLocation_NullAndRoundTrip(t *testing.T) {
	var h Highlight
	if err := json.Unmarshal([]byte(`{"id": 1, "location": null}`), &h); err != nil {
		t.Fatal(err)
	}
	if !h.Location.IsZero() {
		t.Errorf("null location should be zero, got %q", h.Location.String())
	}

	h.Location = NewLocation(99)
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatal(err)
	}
	var back Highlight
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if loc, ok := back.Location.Int(); !ok || loc != 99 {
		t.Errorf("location after round trip = %d, %v", loc, ok)
	}
}

func TestHighlight_Validate(t *testing.T) {
	if err := (Highlight{}).Validate(); err == nil {
		t.Error("highlight without id should fail validation")
	}
	if err := (Highlight{ID: 3}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExistingNote_Field(t *testing.T) {
	n := &ExistingNote{Fields: map[string]string{FieldHighlightID: "9", FieldTitle: ""}}
	if n.HighlightID() != "9" {
		t.Errorf("HighlightID = %q", n.HighlightID())
	}
	if _, ok := n.Field(FieldTitle); !ok {
		t.Error("Title should exist")
	}
	if _, ok := n.Field(FieldColor); ok {
		t.Error("Color should not exist")
	}
}
