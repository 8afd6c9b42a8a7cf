package readwise

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/starford/readwise2anki/internal/models"
	"github.com/starford/readwise2anki/internal/testutil"
)

func book(id int64, highlightIDs ...int64) models.Book {
	b := models.Book{ID: id, Title: "Book", Category: "articles"}
	for _, hid := range highlightIDs {
		b.Highlights = append(b.Highlights, models.Highlight{ID: hid, Text: "t"})
	}
	return b
}

func testClient(fake *testutil.FakeReadwise, token string) *Client {
	return NewClient(fake.BaseURL(), token, WithRequestsPerMinute(0), WithRetry(3, time.Millisecond))
}

func TestExport_FollowsCursors(t *testing.T) {
	fake := testutil.NewFakeReadwise(t, "secret",
		[]models.Book{book(1, 10, 11), book(2, 20)},
		[]models.Book{book(3, 30)},
		[]models.Book{book(4)},
	)

	var got []int64
	err := testClient(fake, "secret").Export(context.Background(), "", func(b models.Book) error {
		got = append(got, b.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Errorf("books = %v, want [1 2 3 4]", got)
	}

	reqs := fake.Requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	if reqs[0].PageCursor != "" || reqs[1].PageCursor != "1" || reqs[2].PageCursor != "2" {
		t.Errorf("cursors = %+v", reqs)
	}
}

func TestExport_UpdatedAfter(t *testing.T) {
	fake := testutil.NewFakeReadwise(t, "", []models.Book{book(1)}, []models.Book{book(2)})

	err := testClient(fake, "").Export(context.Background(), "2024-01-01T00:00:00Z", func(models.Book) error { return nil })
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	for i, r := range fake.Requests() {
		if r.UpdatedAfter != "2024-01-01T00:00:00Z" {
			t.Errorf("request %d updatedAfter = %q", i, r.UpdatedAfter)
		}
	}
}

func TestExport_HighlightFields(t *testing.T) {
	b := models.Book{
		ID: 9, Title: "Dune", Category: "books", ASIN: "B00",
		Highlights: []models.Highlight{{
			ID: 77, Text: "fear", Location: models.NewLocation(450), LocationType: "location",
			Tags: []models.Tag{{ID: 1, Name: "sci fi"}}, IsFavorite: true,
		}},
	}
	fake := testutil.NewFakeReadwise(t, "", []models.Book{b})

	var got models.Book
	if err := testClient(fake, "").Export(context.Background(), "", func(b models.Book) error {
		got = b
		return nil
	}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	h := got.Highlights[0]
	if loc, ok := h.Location.Int(); !ok || loc != 450 {
		t.Errorf("location = %v, %v", loc, ok)
	}
	if got.ASIN != "B00" || !h.IsFavorite || h.Tags[0].Name != "sci fi" {
		t.Errorf("decoded = %+v", got)
	}
}

func TestExport_RetriesThrottling(t *testing.T) {
	fake := testutil.NewFakeReadwise(t, "", []models.Book{book(1)})
	fake.FailNext(http.StatusTooManyRequests, "0")
	fake.FailNext(http.StatusBadGateway, "")

	n := 0
	if err := testClient(fake, "").Export(context.Background(), "", func(models.Book) error {
		n++
		return nil
	}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 1 {
		t.Errorf("books = %d, want 1", n)
	}
	if got := len(fake.Requests()); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestExport_RetriesExhausted(t *testing.T) {
	fake := testutil.NewFakeReadwise(t, "", []models.Book{book(1)})
	for range 4 {
		fake.FailNext(http.StatusServiceUnavailable, "")
	}

	err := testClient(fake, "").Export(context.Background(), "", func(models.Book) error { return nil })
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want HTTPError 503", err)
	}
}

func TestExport_Unauthorized(t *testing.T) {
	fake := testutil.NewFakeReadwise(t, "secret", []models.Book{book(1)})

	err := testClient(fake, "wrong").Export(context.Background(), "", func(models.Book) error { return nil })
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("err = %v, want HTTPError 401", err)
	}
	if len(fake.Requests()) != 0 {
		t.Errorf("unauthorized request reached the handler")
	}
}

func TestExport_CallbackErrorStops(t *testing.T) {
	fake := testutil.NewFakeReadwise(t, "", []models.Book{book(1), book(2)}, []models.Book{book(3)})
	stop := errors.New("stop")

	err := testClient(fake, "").Export(context.Background(), "", func(b models.Book) error {
		if b.ID == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if len(fake.Requests()) != 1 {
		t.Errorf("next page fetched after callback error")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d := parseRetryAfter("5"); d != 5*time.Second {
		t.Errorf("parseRetryAfter(5) = %v", d)
	}
	if d := parseRetryAfter(""); d != 0 {
		t.Errorf("parseRetryAfter(\"\") = %v", d)
	}
	if d := parseRetryAfter("soon"); d != 0 {
		t.Errorf("parseRetryAfter(soon) = %v", d)
	}
}

func TestRetryDelay_Backoff(t *testing.T) {
	c := NewClient("", "", WithRetry(3, 100*time.Millisecond))
	if d := c.retryDelay(1, ""); d != 100*time.Millisecond {
		t.Errorf("attempt 1 = %v", d)
	}
	if d := c.retryDelay(3, ""); d != 400*time.Millisecond {
		t.Errorf("attempt 3 = %v", d)
	}
	if d := c.retryDelay(1, "2"); d != 2*time.Second {
		t.Errorf("Retry-After = %v", d)
	}
}
