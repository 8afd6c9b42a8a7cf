package normalize

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/readwise2anki/internal/apperr"
	"github.com/starford/readwise2anki/internal/markup"
	"github.com/starford/readwise2anki/internal/models"
)

func testBook() models.Book {
	return models.Book{
		ID:          7,
		Title:       "Deep Work",
		Author:      "Cal Newport",
		Category:    "articles",
		Source:      "reader",
		ReadwiseURL: "https://readwise.io/bookreview/7",
	}
}

func TestNormalize_Fields(t *testing.T) {
	h := models.Highlight{
		ID:         42,
		Text:       "Focus is **rare**.",
		Note:       "remember this",
		Color:      "yellow",
		IsFavorite: true,
		Tags:       []models.Tag{{Name: "deep work"}, {Name: "focus"}},
		UpdatedAt:  "2024-05-01T10:00:00Z",
		URL:        "https://example.com/a",
	}
	res, err := New(markup.New()).Normalize(h, testBook())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := res.Fields
	if f.Text != "<p>Focus is <strong>rare</strong>.</p>" {
		t.Errorf("Text = %q", f.Text)
	}
	if f.Note != "<p>remember this</p>" {
		t.Errorf("Note = %q", f.Note)
	}
	if f.Title != "Deep Work" || f.Author != "Cal Newport" || f.Source != "reader" || f.Category != "articles" {
		t.Errorf("book fields = %+v", f)
	}
	if f.HighlightID != "42" {
		t.Errorf("HighlightID = %q", f.HighlightID)
	}
	if f.Tags != "deep_work, focus, readwise" {
		t.Errorf("Tags field = %q", f.Tags)
	}
	if !reflect.DeepEqual(res.Tags, []string{"deep_work", "focus", "readwise"}) {
		t.Errorf("tags = %v", res.Tags)
	}
	if f.IsFavorite != FavoriteMarker {
		t.Errorf("IsFavorite = %q", f.IsFavorite)
	}
	if f.HighlightURL != "https://example.com/a" || f.ReadwiseURL != "https://readwise.io/bookreview/7" {
		t.Errorf("urls = %q %q", f.HighlightURL, f.ReadwiseURL)
	}
	if f.UpdatedAt != "2024-05-01T10:00:00Z" || f.Color != "yellow" {
		t.Errorf("UpdatedAt/Color = %q %q", f.UpdatedAt, f.Color)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	res, err := New(markup.New()).Normalize(models.Highlight{ID: 1, Text: "x"}, models.Book{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := res.Fields
	for name, v := range map[string]string{"Title": f.Title, "Author": f.Author, "Source": f.Source, "Category": f.Category} {
		if v != Unknown {
			t.Errorf("%s = %q, want %q", name, v, Unknown)
		}
	}
	for name, v := range map[string]string{
		"Note": f.Note, "UpdatedAt": f.UpdatedAt, "HighlightURL": f.HighlightURL,
		"ReadwiseURL": f.ReadwiseURL, "Color": f.Color, "IsFavorite": f.IsFavorite,
	} {
		if v != "" {
			t.Errorf("%s = %q, want empty", name, v)
		}
	}
	if f.Tags != SentinelTag {
		t.Errorf("Tags = %q", f.Tags)
	}
}

func TestTags_Normalization(t *testing.T) {
	got := Tags([]models.Tag{
		{Name: "  "},
		{Name: ""},
		{Name: "Machine Learning"},
		{Name: "machine learning"},
		{Name: "two  spaces"},
		{Name: "Readwise"},
	})
	want := []string{"Machine_Learning", "two__spaces", "Readwise"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tags = %v, want %v", got, want)
	}
}

func TestFavorite_StoredValuesStable(t *testing.T) {
	// Values already stored in decks must compare equal after a round trip.
	for stored, fav := range map[string]bool{"true": true, "": false} {
		if Favorite(fav) != stored {
			t.Errorf("Favorite(%v) = %q, want %q", fav, Favorite(fav), stored)
		}
	}
}

func TestNormalize_KindleDeepLink(t *testing.T) {
	b := testBook()
	b.Category = models.CategoryBooks
	b.ASIN = "X123"
	h := models.Highlight{ID: 5, Text: "t", Location: models.NewLocation(450), LocationType: models.LocationTypeKindle}

	res, err := New(markup.New()).Normalize(h, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "kindle://book?action=open&asin=X123&location=450"
	if res.Fields.HighlightURL != want {
		t.Errorf("HighlightURL = %q, want %q", res.Fields.HighlightURL, want)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	again, _ := New(markup.New()).Normalize(h, b)
	if again.Fields.HighlightURL != want {
		t.Errorf("deep link not deterministic: %q", again.Fields.HighlightURL)
	}
}

func TestNormalize_KindleWarnings(t *testing.T) {
	b := testBook()
	b.Category = models.CategoryBooks
	b.ASIN = "X123"
	h := models.Highlight{ID: 5, Text: "t", LocationType: "page", URL: "https://old"}
	if err := h.Location.UnmarshalJSON([]byte(`"12a"`)); err != nil {
		t.Fatal(err)
	}

	res, err := New(markup.New()).Normalize(h, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Warnings) != 3 {
		t.Fatalf("warnings = %v, want 3", res.Warnings)
	}
	if res.Fields.HighlightURL != "kindle://book?action=open&asin=X123" {
		t.Errorf("HighlightURL = %q", res.Fields.HighlightURL)
	}
	if !strings.Contains(strings.Join(res.Warnings, "\n"), "https://old") {
		t.Errorf("overwrite warning missing: %v", res.Warnings)
	}
}

func TestNormalize_KindleMissingASIN(t *testing.T) {
	b := testBook()
	b.Category = models.CategoryBooks
	h := models.Highlight{ID: 5, Text: "t", Location: models.NewLocation(1), LocationType: models.LocationTypeKindle}

	_, err := New(markup.New()).Normalize(h, b)
	if !errors.Is(err, apperr.ErrDataQuality) {
		t.Fatalf("err = %v, want ErrDataQuality", err)
	}
}
