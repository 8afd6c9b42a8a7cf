// Package models defines the domain types shared by the sync pipeline.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CategoryBooks is the Readwise category of Kindle and other e-books.
const CategoryBooks = "books"

// LocationTypeKindle is the location_type of highlights carrying a Kindle location.
const LocationTypeKindle = "location"

// Book is one record of the Readwise export: a book, article, tweet or
// podcast together with its highlights. Absent strings decode to "".
type Book struct {
	ID          int64       `json:"user_book_id"`
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Category    string      `json:"category"`
	Source      string      `json:"source"`
	ReadwiseURL string      `json:"readwise_url"`
	SourceURL   string      `json:"source_url"`
	ASIN        string      `json:"asin"`
	IsDeleted   bool        `json:"is_deleted"`
	Highlights  []Highlight `json:"highlights"`
}

// Highlight is a single highlight nested in a Book.
type Highlight struct {
	ID           int64    `json:"id"`
	Text         string   `json:"text"`
	Note         string   `json:"note"`
	Color        string   `json:"color"`
	IsFavorite   bool     `json:"is_favorite"`
	Tags         []Tag    `json:"tags"`
	UpdatedAt    string   `json:"updated_at"`
	URL          string   `json:"url"`
	IsDeleted    bool     `json:"is_deleted"`
	BookID       int64    `json:"book_id"`
	Location     Location `json:"location"`
	LocationType string   `json:"location_type"`
}

// Tag is a user tag attached to a highlight.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// HighlightID returns the reconciliation key stored in the HighlightID field.
func (h Highlight) HighlightID() string {
	return strconv.FormatInt(h.ID, 10)
}

// Validate checks the fields the pipeline cannot work without.
func (h Highlight) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.ID, validation.Required),
	)
}

// Location keeps the raw JSON value of a highlight's location. Readwise sends
// integers for Kindle locations but other sources may send anything.
type Location struct {
	raw json.RawMessage
}

// NewLocation returns a Location holding an integer value.
func NewLocation(n int) Location {
	return Location{raw: json.RawMessage(strconv.Itoa(n))}
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Location) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		l.raw = nil
		return nil
	}
	l.raw = append(l.raw[:0], data...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Location) MarshalJSON() ([]byte, error) {
	if len(l.raw) == 0 {
		return []byte("null"), nil
	}
	return l.raw, nil
}

// IsZero reports whether no location was sent.
func (l Location) IsZero() bool {
	return len(l.raw) == 0
}

// Int returns the location as an integer. ok is false for null, strings,
// fractional numbers and anything else that is not a plain JSON integer.
func (l Location) Int() (int, bool) {
	if len(l.raw) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(l.raw)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// String returns the raw JSON text of the location.
func (l Location) String() string {
	return string(l.raw)
}
