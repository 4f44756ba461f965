// Package notestore is the client for the external note service: fetch by
// id, paginated query, create and update, with automatic rate-limit retry.
package notestore

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Resource is a binary attachment on a note.
type Resource struct {
	Body     []byte `json:"body"`
	Mime     string `json:"mime"`
	Filename string `json:"filename"`
	BodyHash string `json:"body_hash"`
}

// Note is a raw note as stored by the note service. Content is the raw
// markup text.
type Note struct {
	GUID      string     `json:"guid"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Created   time.Time  `json:"created"`
	Updated   time.Time  `json:"updated"`
	Resources []Resource `json:"resources,omitempty"`
}

// Metadata is the lightweight note summary returned by queries.
type Metadata struct {
	GUID    string    `json:"guid"`
	Title   string    `json:"title"`
	Updated time.Time `json:"updated"`
}

// Store is the note-service interface the sync pipeline consumes.
type Store interface {
	// GetNote fetches a full note by GUID.
	GetNote(ctx context.Context, guid string) (*Note, error)
	// FindNotes runs a search query and calls fn for every matching note
	// summary together with its absolute offset in the result set. fn
	// returning false stops the iteration.
	FindNotes(ctx context.Context, query string, fn func(offset int, md Metadata) bool) error
	// CreateNote stores a new note.
	CreateNote(ctx context.Context, n *Note) error
	// UpdateNote replaces an existing note.
	UpdateNote(ctx context.Context, n *Note) error
}

// FindSingleNoteByTitle returns the metadata of the single note matching
// title, or nil when none matches. Quote characters are stripped because the
// service ignores them in search queries. More than one match logs a warning
// and the first match wins.
func FindSingleNoteByTitle(ctx context.Context, s Store, title string, log *slog.Logger) (*Metadata, error) {
	query := `intitle:"` + strings.ReplaceAll(title, `"`, "") + `"`
	var found *Metadata
	err := s.FindNotes(ctx, query, func(offset int, md Metadata) bool {
		if offset == 0 {
			m := md
			found = &m
			return true
		}
		log.Warn("more than one note matches title query", slog.String("title", title))
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
