package syncer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/starford/notepress/internal/journal"
	"github.com/starford/notepress/internal/notestore"
	"github.com/starford/notepress/internal/record"
	"github.com/starford/notepress/internal/testutil"
	"github.com/starford/notepress/internal/wordpress"
)

const (
	guidPost  = "aaaaaaaa-1111-4111-8111-111111111111"
	guidThumb = "bbbbbbbb-2222-4222-8222-222222222222"
)

var (
	sourceUpdated = time.Date(2014, 6, 1, 10, 0, 0, 0, time.UTC)
	publishDate   = time.Date(2014, 6, 1, 12, 0, 0, 0, time.UTC)
)

// fakePublisher records calls in order and assigns sequential identifiers.
type fakePublisher struct {
	nextID    int
	calls     []string
	lastPost  *wordpress.PostFields
	lastMedia *wordpress.MediaFields
	modified  time.Time
	link      string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{link: "https://blog.example.com/a-post/"}
}

func (f *fakePublisher) CreateStub(_ context.Context, title string) (int, error) {
	f.nextID++
	f.calls = append(f.calls, "stub:"+title)
	return f.nextID, nil
}

func (f *fakePublisher) UploadBinary(_ context.Context, _ []byte, filename, _ string) (int, error) {
	f.nextID++
	f.calls = append(f.calls, "upload:"+filename)
	return f.nextID, nil
}

func (f *fakePublisher) GetPost(_ context.Context, id int) (*wordpress.PublishedFields, error) {
	f.calls = append(f.calls, fmt.Sprintf("get:%d", id))
	return &wordpress.PublishedFields{ID: id, Link: f.link, Date: publishDate, Modified: f.modified}, nil
}

func (f *fakePublisher) UpdatePost(_ context.Context, id int, pf *wordpress.PostFields) (*wordpress.PublishedFields, error) {
	f.calls = append(f.calls, fmt.Sprintf("update:%d", id))
	f.lastPost = pf
	return &wordpress.PublishedFields{ID: id, Link: f.link, Date: publishDate, Modified: time.Now()}, nil
}

func (f *fakePublisher) UpdateMedia(_ context.Context, id int, mf *wordpress.MediaFields) (*wordpress.PublishedFields, error) {
	f.calls = append(f.calls, fmt.Sprintf("media:%d", id))
	f.lastMedia = mf
	return &wordpress.PublishedFields{ID: id, Link: f.link, Date: publishDate, Modified: time.Now()}, nil
}

func newPostNote(guid, title string, meta, content []string) *notestore.Note {
	lines := append([]string{"type=post"}, meta...)
	return testutil.Note(guid, title, testutil.NoteMarkup(lines, content), sourceUpdated)
}

func newImageNote(guid, title string, meta []string) *notestore.Note {
	res := notestore.Resource{Body: []byte("png"), Mime: "image/png", Filename: "raw.bin"}
	return testutil.Note(guid, title, testutil.NoteMarkup(meta, nil), sourceUpdated, res)
}

func newSyncer(store notestore.Store, wp wordpress.Publisher, jdb *journal.DB, dryRun bool) (*Syncer, *record.Resolver) {
	r := record.NewResolver(store, testutil.Logger())
	return New(store, wp, r, jdb, testutil.Logger(), dryRun), r
}

func TestPublishTwoPhase(t *testing.T) {
	store := testutil.NewFakeStore(
		newPostNote(guidPost, "A Post", []string{
			"id=&lt;auto&gt;",
			"link=&lt;auto&gt;",
			"date_created=&lt;auto&gt;",
			`thumbnail=<a href="`+testutil.AppLink(guidThumb)+`">thumb.png</a>`,
		}, []string{"hello world"}),
		newImageNote(guidThumb, "thumb.png Thumbnail", []string{"id=&lt;auto&gt;"}),
	)
	jdb := testutil.TestJournal(t)
	wp := newFakePublisher()
	s, _ := newSyncer(store, wp, jdb, false)

	if err := s.SyncNote(context.Background(), guidPost); err != nil {
		t.Fatalf("SyncNote() error: %v", err)
	}

	want := []string{"stub:A Post", "upload:thumb.png", "update:1"}
	if strings.Join(wp.calls, " ") != strings.Join(want, " ") {
		t.Errorf("calls = %v, want %v", wp.calls, want)
	}
	if wp.lastPost == nil || wp.lastPost.ThumbnailID != 2 {
		t.Errorf("update payload thumbnail = %+v, want id 2", wp.lastPost)
	}
	if wp.lastPost.Content != "hello world" {
		t.Errorf("update payload content = %q", wp.lastPost.Content)
	}

	// Assigned identifiers and authoritative fields are written back into
	// the source notes.
	postNote, _ := store.GetNote(context.Background(), guidPost)
	if !strings.Contains(postNote.Content, "<div>id=1</div>") {
		t.Errorf("post id not patched back:\n%s", postNote.Content)
	}
	if !strings.Contains(postNote.Content, "<div>link="+wp.link+"</div>") {
		t.Errorf("post link not patched back:\n%s", postNote.Content)
	}
	if !strings.Contains(postNote.Content, "<div>date_created=2014-06-01 12:00:00</div>") {
		t.Errorf("publish date not patched back:\n%s", postNote.Content)
	}
	thumbNote, _ := store.GetNote(context.Background(), guidThumb)
	if !strings.Contains(thumbNote.Content, "<div>id=2</div>") {
		t.Errorf("image id not patched back:\n%s", thumbNote.Content)
	}

	if action, err := jdb.LastAction(guidPost); err != nil || action != journal.ActionPublished {
		t.Errorf("LastAction() = %q, %v", action, err)
	}
}

func TestPublishSkipsUnchanged(t *testing.T) {
	store := testutil.NewFakeStore(
		newPostNote(guidPost, "A Post", []string{"id=5"}, []string{"body"}))
	wp := newFakePublisher()
	wp.modified = sourceUpdated.Add(time.Hour)
	s, _ := newSyncer(store, wp, nil, false)

	if err := s.SyncNote(context.Background(), guidPost); err != nil {
		t.Fatalf("SyncNote() error: %v", err)
	}
	if len(wp.calls) != 1 || wp.calls[0] != "get:5" {
		t.Errorf("calls = %v, want a single fetch", wp.calls)
	}
	if len(store.Updated) != 0 {
		t.Errorf("source notes updated on skip: %v", store.Updated)
	}
}

func TestPublishRepublishesChangedRecord(t *testing.T) {
	store := testutil.NewFakeStore(
		newPostNote(guidPost, "A Post", []string{"id=5"}, []string{"body"}))
	wp := newFakePublisher()
	wp.modified = sourceUpdated.Add(-time.Hour)
	s, _ := newSyncer(store, wp, nil, false)

	if err := s.SyncNote(context.Background(), guidPost); err != nil {
		t.Fatalf("SyncNote() error: %v", err)
	}
	if want := "get:5 update:5"; strings.Join(wp.calls, " ") != want {
		t.Errorf("calls = %v, want %q", wp.calls, want)
	}
}

func TestDryRunMakesNoCalls(t *testing.T) {
	store := testutil.NewFakeStore(
		newPostNote(guidPost, "A Post", nil, []string{"body"}))
	jdb := testutil.TestJournal(t)
	wp := newFakePublisher()
	s, _ := newSyncer(store, wp, jdb, true)

	if err := s.SyncNote(context.Background(), guidPost); err != nil {
		t.Fatalf("SyncNote() error: %v", err)
	}
	if len(wp.calls) != 0 {
		t.Errorf("calls = %v, want none", wp.calls)
	}
	if len(store.Updated) != 0 {
		t.Errorf("source notes updated in dry run: %v", store.Updated)
	}
	if action, err := jdb.LastAction(guidPost); err != nil || action != journal.ActionDryRun {
		t.Errorf("LastAction() = %q, %v", action, err)
	}
}

func TestDryRunSurfacesRenderErrors(t *testing.T) {
	missing := "cccccccc-3333-4333-8333-333333333333"
	store := testutil.NewFakeStore(
		newPostNote(guidPost, "A Post", nil,
			[]string{`see <a href="` + testutil.AppLink(missing) + `">gone</a>`}))
	wp := newFakePublisher()
	s, _ := newSyncer(store, wp, nil, true)

	if err := s.SyncNote(context.Background(), guidPost); err != nil {
		// The dangling reference already fails resolution, before Publish
		// even runs. Either way no publisher call may happen.
		if len(wp.calls) != 0 {
			t.Errorf("calls = %v, want none", wp.calls)
		}
		return
	}
	t.Fatal("SyncNote() succeeded with a dangling reference")
}

func TestSyncQueryIsolatesFailures(t *testing.T) {
	bad := "cccccccc-3333-4333-8333-333333333333"
	store := testutil.NewFakeStore(
		testutil.Note(bad, "Broken", testutil.NoteMarkup([]string{"type=bogus"}, nil), sourceUpdated),
		newPostNote(guidPost, "A Post", nil, []string{"body"}),
	)
	wp := newFakePublisher()
	s, _ := newSyncer(store, wp, nil, false)

	err := s.SyncQuery(context.Background(), "any:*")
	if err == nil || !strings.Contains(err.Error(), "1 record(s) failed") {
		t.Fatalf("SyncQuery() error = %v, want one failed record", err)
	}
	// The healthy record still went through the full publish.
	if want := "stub:A Post update:1"; strings.Join(wp.calls, " ") != want {
		t.Errorf("calls = %v, want %q", wp.calls, want)
	}
}

func TestPageParentPropagates(t *testing.T) {
	parent := "dddddddd-4444-4444-8444-444444444444"
	parentNote := testutil.Note(parent, "Parent Page",
		testutil.NoteMarkup([]string{"type=page", "id=30"}, []string{"parent body"}), sourceUpdated)
	child := testutil.Note(guidPost, "Child Page",
		testutil.NoteMarkup([]string{
			"type=page",
			"id=31",
			`parent=<a href="` + testutil.AppLink(parent) + `">Parent Page</a>`,
		}, []string{"child body"}), sourceUpdated)

	store := testutil.NewFakeStore(parentNote, child)
	wp := newFakePublisher()
	wp.modified = sourceUpdated.Add(-time.Hour)
	s, _ := newSyncer(store, wp, nil, false)

	if err := s.SyncNote(context.Background(), guidPost); err != nil {
		t.Fatalf("SyncNote() error: %v", err)
	}
	if wp.lastPost == nil || wp.lastPost.ParentID != 30 {
		t.Errorf("update payload parent = %+v, want id 30", wp.lastPost)
	}
	if wp.lastPost.Type != "page" {
		t.Errorf("update payload type = %q, want page", wp.lastPost.Type)
	}
}
