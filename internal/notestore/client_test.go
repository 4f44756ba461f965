package notestore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/checksum"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, h http.Handler, pageSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "test-token", pageSize, discardLogger())
	c.margin = 5 * time.Millisecond
	return c
}

func TestGetNote(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/notes/{guid}", func(w http.ResponseWriter, req *http.Request) {
		if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(Note{GUID: chi.URLParam(req, "guid"), Title: "A Note"})
	})
	c := testClient(t, r, 0)

	n, err := c.GetNote(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("GetNote() error: %v", err)
	}
	if n.GUID != "abc-123" || n.Title != "A Note" {
		t.Errorf("GetNote() = %+v", n)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/notes/{guid}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := testClient(t, r, 0)

	_, err := c.GetNote(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNote() error = %v, want ErrNotFound", err)
	}
}

func TestGetNoteRetriesAfterRateLimit(t *testing.T) {
	var attempts int
	r := chi.NewRouter()
	r.Get("/notes/{guid}", func(w http.ResponseWriter, req *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(Note{GUID: chi.URLParam(req, "guid")})
	})
	c := testClient(t, r, 0)

	n, err := c.GetNote(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetNote() error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if n.GUID != "abc" {
		t.Errorf("GetNote() = %+v", n)
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/notes/{guid}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c := testClient(t, r, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetNote(ctx, "abc")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GetNote() error = %v, want context.Canceled", err)
	}
}

func TestFindNotesPaginates(t *testing.T) {
	all := []Metadata{
		{GUID: "g0"}, {GUID: "g1"}, {GUID: "g2"}, {GUID: "g3"}, {GUID: "g4"},
	}
	var requests int
	r := chi.NewRouter()
	r.Get("/notes", func(w http.ResponseWriter, req *http.Request) {
		requests++
		if got := req.URL.Query().Get("query"); got != "tag:blog" {
			t.Errorf("query = %q", got)
		}
		offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		json.NewEncoder(w).Encode(findPage{Notes: all[offset:end], Total: len(all), StartIndex: offset})
	})
	c := testClient(t, r, 2)

	var got []string
	var offsets []int
	err := c.FindNotes(context.Background(), "tag:blog", func(offset int, md Metadata) bool {
		got = append(got, md.GUID)
		offsets = append(offsets, offset)
		return true
	})
	if err != nil {
		t.Fatalf("FindNotes() error: %v", err)
	}
	if len(got) != 5 || got[0] != "g0" || got[4] != "g4" {
		t.Errorf("guids = %v", got)
	}
	if offsets[4] != 4 {
		t.Errorf("offsets = %v, want absolute positions", offsets)
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3 pages", requests)
	}
}

func TestFindNotesStopsEarly(t *testing.T) {
	var requests int
	r := chi.NewRouter()
	r.Get("/notes", func(w http.ResponseWriter, _ *http.Request) {
		requests++
		json.NewEncoder(w).Encode(findPage{
			Notes: []Metadata{{GUID: "g0"}, {GUID: "g1"}},
			Total: 10,
		})
	})
	c := testClient(t, r, 2)

	err := c.FindNotes(context.Background(), "q", func(int, Metadata) bool { return false })
	if err != nil {
		t.Fatalf("FindNotes() error: %v", err)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want iteration to stop after the first page", requests)
	}
}

func TestUpdateNoteHashesResources(t *testing.T) {
	body := []byte("image-bytes")
	var received Note
	r := chi.NewRouter()
	r.Put("/notes/{guid}", func(w http.ResponseWriter, req *http.Request) {
		json.NewDecoder(req.Body).Decode(&received)
	})
	c := testClient(t, r, 0)

	n := &Note{GUID: "abc", Resources: []Resource{{Body: body}}}
	if err := c.UpdateNote(context.Background(), n); err != nil {
		t.Fatalf("UpdateNote() error: %v", err)
	}
	if len(received.Resources) != 1 {
		t.Fatalf("resources = %+v", received.Resources)
	}
	if got, want := received.Resources[0].BodyHash, checksum.Sum(body); got != want {
		t.Errorf("BodyHash = %q, want %q", got, want)
	}
}

func TestFindSingleNoteByTitle(t *testing.T) {
	var gotQuery string
	r := chi.NewRouter()
	r.Get("/notes", func(w http.ResponseWriter, req *http.Request) {
		gotQuery = req.URL.Query().Get("query")
		json.NewEncoder(w).Encode(findPage{
			Notes: []Metadata{{GUID: "g0", Title: "My Note"}},
			Total: 1,
		})
	})
	c := testClient(t, r, 0)

	md, err := FindSingleNoteByTitle(context.Background(), c, `My "quoted" Note`, discardLogger())
	if err != nil {
		t.Fatalf("FindSingleNoteByTitle() error: %v", err)
	}
	if md == nil || md.GUID != "g0" {
		t.Errorf("metadata = %+v", md)
	}
	if want := `intitle:"My quoted Note"`; gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
}
