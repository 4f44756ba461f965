// Package testutil provides shared test helpers: an in-memory note store,
// note markup fixtures, and temporary journal databases.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/journal"
	"github.com/starford/notepress/internal/notestore"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestJournal creates a temporary journal database that is automatically
// cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notepress-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NoteMarkup builds raw note markup from metadata and content lines. Lines
// are inserted verbatim inside div wrappers, so callers escape entities
// themselves.
func NoteMarkup(meta, content []string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<!DOCTYPE en-note SYSTEM \"http://xml.evernote.com/pub/enml2.dtd\">\n")
	b.WriteString("<en-note>")
	for _, m := range meta {
		fmt.Fprintf(&b, "\n<div>%s</div>", m)
	}
	b.WriteString("\n<div><hr/></div>")
	for _, c := range content {
		fmt.Fprintf(&b, "\n<div>%s</div>", c)
	}
	b.WriteString("\n</en-note>")
	return b.String()
}

// Note builds a raw note fixture.
func Note(guid, title, content string, updated time.Time, res ...notestore.Resource) *notestore.Note {
	return &notestore.Note{
		GUID:      guid,
		Title:     title,
		Content:   content,
		Created:   updated.Add(-24 * time.Hour),
		Updated:   updated,
		Resources: res,
	}
}

// AppLink renders the application-link form for a GUID with fixed owner and
// shard components.
func AppLink(guid string) string {
	return fmt.Sprintf("evernote:///view/123/s123/%s/%s/", guid, guid)
}

// FakeStore is an in-memory note store.
type FakeStore struct {
	notes   map[string]*notestore.Note
	order   []string
	Fetched []string
	Updated []string
	Created []*notestore.Note
}

// NewFakeStore creates a fake store holding the given notes.
func NewFakeStore(notes ...*notestore.Note) *FakeStore {
	s := &FakeStore{notes: make(map[string]*notestore.Note)}
	for _, n := range notes {
		s.Add(n)
	}
	return s
}

// Add registers a note.
func (s *FakeStore) Add(n *notestore.Note) {
	if _, ok := s.notes[n.GUID]; !ok {
		s.order = append(s.order, n.GUID)
	}
	s.notes[n.GUID] = n
}

func (s *FakeStore) GetNote(_ context.Context, guid string) (*notestore.Note, error) {
	s.Fetched = append(s.Fetched, guid)
	n, ok := s.notes[guid]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", guid, apperr.ErrNotFound)
	}
	return n, nil
}

func (s *FakeStore) FindNotes(_ context.Context, _ string, fn func(offset int, md notestore.Metadata) bool) error {
	for i, guid := range s.order {
		n := s.notes[guid]
		if !fn(i, notestore.Metadata{GUID: n.GUID, Title: n.Title, Updated: n.Updated}) {
			return nil
		}
	}
	return nil
}

func (s *FakeStore) CreateNote(_ context.Context, n *notestore.Note) error {
	s.Created = append(s.Created, n)
	s.Add(n)
	return nil
}

func (s *FakeStore) UpdateNote(_ context.Context, n *notestore.Note) error {
	if _, ok := s.notes[n.GUID]; !ok {
		return fmt.Errorf("note %s: %w", n.GUID, apperr.ErrNotFound)
	}
	s.Updated = append(s.Updated, n.GUID)
	s.notes[n.GUID] = n
	return nil
}
