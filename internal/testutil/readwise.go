package testutil

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/starford/readwise2anki/internal/models"
)

// ExportRequest is one request received by FakeReadwise.
type ExportRequest struct {
	UpdatedAfter string
	PageCursor   string
}

type failure struct {
	status     int
	retryAfter string
}

// FakeReadwise serves the Readwise export endpoint from fixed pages. The
// page cursor is the index of the next page.
type FakeReadwise struct {
	Server *httptest.Server

	mu       sync.Mutex
	pages    [][]models.Book
	requests []ExportRequest
	failures []failure
}

// NewFakeReadwise starts a FakeReadwise that requires token (when non-empty)
// and is shut down when the test ends.
func NewFakeReadwise(t *testing.T, token string, pages ...[]models.Book) *FakeReadwise {
	t.Helper()
	f := &FakeReadwise{pages: pages}

	r := chi.NewRouter()
	r.Route("/api/v2", func(r chi.Router) {
		r.Use(tokenAuth(token))
		r.Get("/export/", f.export)
	})
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL returns the API root to point a Readwise client at.
func (f *FakeReadwise) BaseURL() string { return f.Server.URL + "/api/v2" }

// SetPages replaces the served export.
func (f *FakeReadwise) SetPages(pages ...[]models.Book) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = pages
}

// FailNext makes the next request answer with status. A non-empty
// retryAfter is sent as the Retry-After header. Calls queue up.
func (f *FakeReadwise) FailNext(status int, retryAfter string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{status: status, retryAfter: retryAfter})
}

// Requests returns the export requests received so far, failed ones included.
func (f *FakeReadwise) Requests() []ExportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

type exportPage struct {
	Count          int           `json:"count"`
	NextPageCursor *string       `json:"nextPageCursor"`
	Results        []models.Book `json:"results"`
}

func (f *FakeReadwise) export(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	f.requests = append(f.requests, ExportRequest{
		UpdatedAfter: q.Get("updatedAfter"),
		PageCursor:   q.Get("pageCursor"),
	})

	if len(f.failures) > 0 {
		fail := f.failures[0]
		f.failures = f.failures[1:]
		if fail.retryAfter != "" {
			w.Header().Set("Retry-After", fail.retryAfter)
		}
		writeJSON(w, fail.status, errResponse{Detail: http.StatusText(fail.status)})
		return
	}

	idx := 0
	if c := q.Get("pageCursor"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 || n > len(f.pages) {
			writeJSON(w, http.StatusBadRequest, errResponse{Detail: "invalid cursor"})
			return
		}
		idx = n
	}

	page := exportPage{Results: []models.Book{}}
	for _, p := range f.pages {
		page.Count += len(p)
	}
	if idx < len(f.pages) {
		page.Results = f.pages[idx]
	}
	if idx+1 < len(f.pages) {
		next := strconv.Itoa(idx + 1)
		page.NextPageCursor = &next
	}
	writeJSON(w, http.StatusOK, page)
}
