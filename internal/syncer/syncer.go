// Package syncer coordinates the two-phase publish protocol: stub creation
// for every reachable unpublished record, then the full update, then
// patching resolved identifiers back into the source notes.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/enml"
	"github.com/starford/notepress/internal/journal"
	"github.com/starford/notepress/internal/notestore"
	"github.com/starford/notepress/internal/record"
	"github.com/starford/notepress/internal/wordpress"
)

// Syncer publishes resolved records to the publish target and writes
// assigned identifiers back into the source notes.
type Syncer struct {
	store    notestore.Store
	wp       wordpress.Publisher
	resolver *record.Resolver
	journal  *journal.DB
	log      *slog.Logger
	dryRun   bool
}

// New creates a syncer. jdb may be nil to disable journaling.
func New(store notestore.Store, wp wordpress.Publisher, resolver *record.Resolver, jdb *journal.DB, log *slog.Logger, dryRun bool) *Syncer {
	return &Syncer{
		store:    store,
		wp:       wp,
		resolver: resolver,
		journal:  jdb,
		log:      log,
		dryRun:   dryRun,
	}
}

// SyncQuery resolves and publishes every note matching the search query.
// A failure aborts only that record's sync: it is logged and journaled and
// the batch continues.
func (s *Syncer) SyncQuery(ctx context.Context, query string) error {
	var failed int
	err := s.store.FindNotes(ctx, query, func(offset int, md notestore.Metadata) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := s.SyncNote(ctx, md.GUID); err != nil {
			failed++
			s.log.Error("sync failed for record",
				slog.String("title", md.Title),
				slog.String("guid", md.GUID),
				slog.String("error", err.Error()))
		}
		return true
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d record(s) failed to sync", failed)
	}
	return nil
}

// SyncNote resolves one note by GUID or link and publishes it.
func (s *Syncer) SyncNote(ctx context.Context, ref string) error {
	rec, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		s.record(journal.Event{GUID: ref, Action: journal.ActionFailed, Detail: err.Error()})
		return err
	}
	return s.Publish(ctx, rec)
}

// Publish runs the publish state machine for one record:
// unpublished → stub → synchronized.
func (s *Syncer) Publish(ctx context.Context, rec record.Record) error {
	// A record already published and unchanged is a no-op.
	if rec.ID() != 0 {
		pf, err := s.wp.GetPost(ctx, rec.ID())
		if err != nil {
			s.log.Warn("could not fetch published record, republishing",
				slog.String("title", rec.Title()),
				slog.String("error", err.Error()))
		} else if !rec.SourceUpdated().After(pf.Modified) {
			s.log.Info("record unchanged since last publish, skipping",
				slog.String("title", rec.Title()),
				slog.Int("id", rec.ID()))
			s.record(journal.Event{GUID: rec.GUID(), Title: rec.Title(),
				Action: journal.ActionSkipped, ExternalID: rec.ID(),
				Detail: "source not newer than target"})
			return nil
		}
	}

	if s.dryRun {
		// Resolution and rendering still run so reference errors surface.
		if p, ok := rec.(*record.Post); ok {
			if _, err := p.Content(ctx); err != nil {
				s.record(journal.Event{GUID: rec.GUID(), Title: rec.Title(),
					Action: journal.ActionFailed, Detail: err.Error()})
				return err
			}
		}
		s.log.Info("dry run, skipping publish",
			slog.String("title", rec.Title()),
			slog.String("kind", string(rec.Kind())))
		s.record(journal.Event{GUID: rec.GUID(), Title: rec.Title(),
			Action: journal.ActionDryRun, ExternalID: rec.ID()})
		return nil
	}

	if err := s.ensureStubs(ctx, rec, make(map[string]bool)); err != nil {
		s.record(journal.Event{GUID: rec.GUID(), Title: rec.Title(),
			Action: journal.ActionFailed, Detail: err.Error()})
		return err
	}

	pf, err := s.fullUpdate(ctx, rec)
	if err != nil {
		s.record(journal.Event{GUID: rec.GUID(), Title: rec.Title(),
			Action: journal.ActionFailed, ExternalID: rec.ID(), Detail: err.Error()})
		return err
	}

	if err := s.refreshAuthoritative(ctx, rec, pf); err != nil {
		return err
	}

	s.log.Info("record published",
		slog.String("title", rec.Title()),
		slog.Int("id", rec.ID()),
		slog.String("link", rec.Link()))
	s.record(journal.Event{GUID: rec.GUID(), Title: rec.Title(),
		Action: journal.ActionPublished, ExternalID: rec.ID()})
	return nil
}

// ensureStubs walks the record and everything transitively reachable from
// it, stub-creating whatever lacks an external identifier. A record can
// only be referenced from a full update once it has an identifier, which is
// why stub creation is split from the update.
func (s *Syncer) ensureStubs(ctx context.Context, rec record.Record, visited map[string]bool) error {
	if visited[rec.GUID()] {
		return nil
	}
	visited[rec.GUID()] = true

	if rec.ID() == 0 {
		if err := s.createStub(ctx, rec); err != nil {
			return err
		}
	}

	metaRefs, err := rec.MetaRefs(ctx)
	if err != nil {
		return err
	}
	for _, ref := range append(metaRefs, rec.RefItems()...) {
		if err := s.ensureStubs(ctx, ref, visited); err != nil {
			return err
		}
	}
	return nil
}

// createStub creates the minimal published item: title only for posts, the
// binary payload for images. The new identifier is patched into the source
// immediately.
func (s *Syncer) createStub(ctx context.Context, rec record.Record) error {
	if rec.ID() != 0 {
		return fmt.Errorf("record %q already has an external id: %w", rec.Title(), apperr.ErrAlreadyExists)
	}

	var (
		id  int
		err error
	)
	switch r := rec.(type) {
	case *record.Image:
		id, err = s.wp.UploadBinary(ctx, r.Data(), r.Filename(), r.Mime())
	case *record.Post:
		id, err = s.wp.CreateStub(ctx, r.Title())
	default:
		return fmt.Errorf("unknown record variant %T", rec)
	}
	if err != nil {
		return err
	}

	rec.SetID(id)
	s.log.Info("created stub",
		slog.String("title", rec.Title()),
		slog.String("kind", string(rec.Kind())),
		slog.Int("id", id))
	return s.patchSource(ctx, rec, map[string]string{"id": strconv.Itoa(id)})
}

func (s *Syncer) fullUpdate(ctx context.Context, rec record.Record) (*wordpress.PublishedFields, error) {
	switch r := rec.(type) {
	case *record.Image:
		return s.updateImage(ctx, r)
	case *record.Post:
		return s.updatePost(ctx, r)
	default:
		return nil, fmt.Errorf("unknown record variant %T", rec)
	}
}

func (s *Syncer) updatePost(ctx context.Context, p *record.Post) (*wordpress.PublishedFields, error) {
	if err := s.checkPublishable(ctx, p); err != nil {
		var np *apperr.NotPublishableError
		if !errors.As(err, &np) {
			return nil, err
		}
		// References gained since the stub pass: stub them and retry once.
		s.log.Warn("record not publishable yet, resolving missing references",
			slog.String("title", p.Title()))
		if err := s.ensureStubs(ctx, p, make(map[string]bool)); err != nil {
			return nil, err
		}
		if err := s.checkPublishable(ctx, p); err != nil {
			return nil, err
		}
	}

	content, err := p.Content(ctx)
	if err != nil {
		return nil, err
	}
	slugVal, err := p.Slug()
	if err != nil {
		return nil, err
	}

	f := &wordpress.PostFields{
		Title:      p.Title(),
		Slug:       slugVal,
		Content:    content,
		Type:       string(p.Kind()),
		Categories: p.Categories(),
		Tags:       p.Tags(),
	}
	if thumb, err := p.Thumbnail().Resolve(ctx); err != nil {
		return nil, err
	} else if thumb != nil {
		f.ThumbnailID = thumb.ID()
	}
	if p.Kind() == record.KindPage {
		if parent, err := p.Parent().Resolve(ctx); err != nil {
			return nil, err
		} else if parent != nil {
			f.ParentID = parent.ID()
		}
	}

	custom := make(map[string]string)
	if cf := p.ContentFormat(); cf != "" {
		custom["content_format"] = cf
	}
	if proj, err := p.Project().Resolve(ctx); err != nil {
		return nil, err
	} else if proj != nil {
		custom["project"] = strconv.Itoa(proj.ID())
	}
	if grade, ok := p.Grade().Int(); ok {
		custom["hemingwayapp-grade"] = strconv.Itoa(grade)
	}
	if len(custom) > 0 {
		f.CustomFields = custom
	}

	return s.wp.UpdatePost(ctx, p.ID(), f)
}

func (s *Syncer) updateImage(ctx context.Context, im *record.Image) (*wordpress.PublishedFields, error) {
	f := &wordpress.MediaFields{
		Title:       im.Title(),
		Caption:     im.Caption(),
		Description: im.Description(),
	}
	if parent, err := im.Parent().Resolve(ctx); err != nil {
		return nil, err
	} else if parent != nil {
		if parent.ID() == 0 {
			return nil, &apperr.NotPublishableError{RecordTitle: im.Title(), Missing: []string{parent.Title()}}
		}
		f.ParentID = parent.ID()
	}
	return s.wp.UpdateMedia(ctx, im.ID(), f)
}

// checkPublishable verifies every reference carries an external identifier.
func (s *Syncer) checkPublishable(ctx context.Context, rec record.Record) error {
	metaRefs, err := rec.MetaRefs(ctx)
	if err != nil {
		return err
	}
	var missing []string
	for _, ref := range append(metaRefs, rec.RefItems()...) {
		if ref.ID() == 0 {
			missing = append(missing, ref.Title())
		}
	}
	if len(missing) > 0 {
		return &apperr.NotPublishableError{RecordTitle: rec.Title(), Missing: missing}
	}
	return nil
}

// refreshAuthoritative copies service-authoritative fields from the update
// response onto the record and patches auto-declared source fields.
func (s *Syncer) refreshAuthoritative(ctx context.Context, rec record.Record, pf *wordpress.PublishedFields) error {
	updates := make(map[string]string)

	if pf.Link != "" && pf.Link != rec.Link() {
		rec.SetLink(pf.Link)
		if rec.LinkAuto() {
			updates["link"] = pf.Link
		}
	}
	if _, set := rec.Published().Time(); !set && !pf.Date.IsZero() {
		rec.Published().Set(pf.Date)
		if rec.DateAuto() {
			updates["date_created"] = pf.Date.Format(record.DateTimeLayout)
		}
	}

	if len(updates) == 0 {
		return nil
	}
	return s.patchSource(ctx, rec, updates)
}

// patchSource rewrites metadata assignments inside the record's source note
// and pushes the updated note, skipping the call entirely when nothing
// changed.
func (s *Syncer) patchSource(ctx context.Context, rec record.Record, updates map[string]string) error {
	note := rec.Note()
	patched, changed := enml.Patch(note.Content, updates, s.log)
	if !changed {
		return nil
	}
	note.Content = patched
	return s.store.UpdateNote(ctx, note)
}

func (s *Syncer) record(ev journal.Event) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ev); err != nil {
		s.log.Warn("failed to journal sync event", slog.String("error", err.Error()))
	}
}
