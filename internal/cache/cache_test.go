package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/readwise2anki/internal/apperr"
	"github.com/starford/readwise2anki/internal/models"
)

type stubFetcher struct {
	books []models.Book
	calls int
	err   error
}

func (f *stubFetcher) Export(_ context.Context, _ string, fn func(models.Book) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for _, b := range f.books {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func collect(t *testing.T, s *Source) []models.Book {
	t.Helper()
	var out []models.Book
	if err := s.Export(context.Background(), "", func(b models.Book) error {
		out = append(out, b)
		return nil
	}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	return out
}

func TestExport_MissingSnapshotIsFetched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "export.json")
	fetch := &stubFetcher{books: []models.Book{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}}}
	s := New(path, fetch, nil)

	got := collect(t, s)
	if len(got) != 2 || got[1].Title != "B" {
		t.Fatalf("books = %+v", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if s.Checksum() == "" {
		t.Error("checksum not set")
	}

	first := s.Checksum()
	collect(t, s)
	if fetch.calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (second run reads the snapshot)", fetch.calls)
	}
	if s.Checksum() != first {
		t.Errorf("checksum changed between reads of the same snapshot")
	}
}

func TestExport_CorruptSnapshotIsRefetched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(`[{"user_book_id": 1,`), 0o644); err != nil {
		t.Fatal(err)
	}
	fetch := &stubFetcher{books: []models.Book{{ID: 7}}}

	got := collect(t, New(path, fetch, nil))
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("books = %+v", got)
	}
	if fetch.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetch.calls)
	}
}

func TestExport_ExistingSnapshotIsUsed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(`[{"user_book_id": 3, "title": "Cached", "highlights": [{"id": 5, "location": 12}]}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	fetch := &stubFetcher{}

	got := collect(t, New(path, fetch, nil))
	if fetch.calls != 0 {
		t.Errorf("fetched although snapshot exists")
	}
	if len(got) != 1 || got[0].Title != "Cached" || got[0].Highlights[0].ID != 5 {
		t.Fatalf("books = %+v", got)
	}
}

func TestExport_UnreadableSnapshot(t *testing.T) {
	dir := t.TempDir()
	err := New(dir, &stubFetcher{}, nil).Export(context.Background(), "", func(models.Book) error { return nil })
	if !errors.Is(err, apperr.ErrCache) {
		t.Fatalf("err = %v, want ErrCache", err)
	}
}

func TestExport_FetchFailureLeavesNoSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	boom := errors.New("boom")

	err := New(path, &stubFetcher{err: boom}, nil).Export(context.Background(), "", func(models.Book) error { return nil })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("snapshot exists after failed fetch")
	}
}

func TestWriteAtomic_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.json")
	if err := writeAtomic(path, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := writeAtomic(path, []byte("two")); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "two" {
		t.Errorf("content = %q, want %q", data, "two")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %d entries", len(entries))
	}
}
