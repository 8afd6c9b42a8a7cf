// Package normalize turns a Readwise highlight and its book into the field
// values and tags of an Anki note.
package normalize

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/readwise2anki/internal/apperr"
	"github.com/starford/readwise2anki/internal/models"
)

const (
	// SentinelTag marks every note created by this tool.
	SentinelTag = "readwise"

	// FavoriteMarker is the IsFavorite value of a favorite highlight. A
	// non-favorite stores "". Existing decks hold exactly this value.
	FavoriteMarker = "true"

	// Unknown replaces missing book metadata.
	Unknown = "Unknown"
)

// Renderer converts Markdown to field HTML.
type Renderer interface {
	Render(src string) (string, error)
}

// Result is the normalized form of one highlight.
type Result struct {
	Fields models.NoteFields
	Tags   []string
	// Warnings are data-quality issues that did not stop normalization.
	Warnings []string
}

// Normalizer is a pure transform; it performs no I/O.
type Normalizer struct {
	render Renderer
}

// New creates a Normalizer.
func New(render Renderer) *Normalizer {
	return &Normalizer{render: render}
}

// Normalize maps h and its parent b onto note fields. It fails only when the
// highlight cannot be represented at all (e.g. a book highlight without a
// catalog identifier); such errors wrap apperr.ErrDataQuality.
func (n *Normalizer) Normalize(h models.Highlight, b models.Book) (*Result, error) {
	res := &Result{}

	highlightURL := h.URL
	if b.Category == models.CategoryBooks {
		deepLink, warnings, err := kindleURL(h, b)
		if err != nil {
			return nil, err
		}
		res.Warnings = append(res.Warnings, warnings...)
		highlightURL = deepLink
	}

	text, err := n.render.Render(h.Text)
	if err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	note, err := n.render.Render(h.Note)
	if err != nil {
		return nil, fmt.Errorf("render note: %w", err)
	}

	res.Tags = Tags(h.Tags)
	res.Fields = models.NoteFields{
		Text:         text,
		Title:        orUnknown(b.Title),
		Author:       orUnknown(b.Author),
		Source:       orUnknown(b.Source),
		Category:     orUnknown(b.Category),
		Note:         note,
		Tags:         strings.Join(res.Tags, ", "),
		HighlightID:  h.HighlightID(),
		UpdatedAt:    h.UpdatedAt,
		HighlightURL: highlightURL,
		ReadwiseURL:  b.ReadwiseURL,
		Color:        h.Color,
		IsFavorite:   Favorite(h.IsFavorite),
	}
	return res, nil
}

// Tags returns the Anki tag list of a highlight: names trimmed, blanks
// dropped, spaces replaced with underscores, duplicates removed
// (case-insensitively, first spelling wins) and SentinelTag appended.
func Tags(tags []models.Tag) []string {
	out := make([]string, 0, len(tags)+1)
	seen := make(map[string]struct{}, len(tags)+1)
	add := func(t string) {
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	for _, t := range tags {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		add(strings.ReplaceAll(name, " ", "_"))
	}
	add(SentinelTag)
	return out
}

// Favorite encodes the favorite flag as field presence.
func Favorite(fav bool) string {
	if fav {
		return FavoriteMarker
	}
	return ""
}

// KindleURL builds the deep link that opens a Kindle book at a location.
// A location <= 0 is left out.
func KindleURL(asin string, location int) string {
	q := url.Values{}
	q.Set("action", "open")
	q.Set("asin", asin)
	if location > 0 {
		q.Set("location", strconv.Itoa(location))
	}
	return "kindle://book?" + q.Encode()
}

func kindleURL(h models.Highlight, b models.Book) (string, []string, error) {
	asin := strings.TrimSpace(b.ASIN)
	if asin == "" {
		return "", nil, fmt.Errorf("%w: highlight %d: book %q has no asin", apperr.ErrDataQuality, h.ID, b.Title)
	}

	var warnings []string
	if h.LocationType != models.LocationTypeKindle {
		warnings = append(warnings, fmt.Sprintf("highlight %d: unexpected location_type %q", h.ID, h.LocationType))
	}
	location, ok := h.Location.Int()
	if !ok {
		warnings = append(warnings, fmt.Sprintf("highlight %d: location %s is not an integer", h.ID, h.Location.String()))
		location = 0
	}
	if h.URL != "" {
		warnings = append(warnings, fmt.Sprintf("highlight %d: replacing url %q with kindle link", h.ID, h.URL))
	}
	return KindleURL(asin, location), warnings, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}
