package record

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/enml"
	"github.com/starford/notepress/internal/notelink"
	"github.com/starford/notepress/internal/notestore"
)

var metaLineRe = regexp.MustCompile(`^\s*([\w\-]+)\s*=\s*(.*)$`)

// metaEntry is one parsed metadata assignment together with the paragraph
// it came from, kept for link-typed values whose hyperlink lives in the
// paragraph's inline nodes.
type metaEntry struct {
	key   string
	value string
	para  enml.Paragraph
}

// Resolver is the memoizing record factory. At most one Record exists per
// source GUID for the resolver's lifetime; every reference to the same GUID
// observes the same object. A record is inserted into the cache before its
// own references are resolved, so reference cycles short-circuit on the
// cache instead of recursing. Scope a resolver to one sync run.
type Resolver struct {
	store notestore.Store
	norm  *enml.Normalizer
	log   *slog.Logger
	cache map[string]Record
}

// NewResolver creates a resolver reading raw notes from store.
func NewResolver(store notestore.Store, log *slog.Logger) *Resolver {
	return &Resolver{
		store: store,
		norm:  enml.NewNormalizer(log),
		log:   log,
		cache: make(map[string]Record),
	}
}

// Resolve returns the record for a reference: a note link in either form or
// a plain GUID. Cached records return immediately without re-parsing.
func (r *Resolver) Resolve(ctx context.Context, ref string) (Record, error) {
	guid, err := notelink.CanonicalGUID(ref)
	if err != nil {
		return nil, err
	}
	if rec, ok := r.cache[guid]; ok {
		return rec, nil
	}
	note, err := r.store.GetNote(ctx, guid)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, &apperr.UnknownReferenceError{Reference: ref}
		}
		return nil, err
	}
	return r.build(ctx, note)
}

// ResolveNote builds the record for an already-fetched note.
func (r *Resolver) ResolveNote(ctx context.Context, note *notestore.Note) (Record, error) {
	if rec, ok := r.cache[note.GUID]; ok {
		return rec, nil
	}
	return r.build(ctx, note)
}

func (r *Resolver) build(ctx context.Context, note *notestore.Note) (rec Record, retErr error) {
	// A record failing mid-build must not stay cached half-initialized.
	defer func() {
		if retErr != nil {
			delete(r.cache, note.GUID)
		}
	}()

	doc, err := r.norm.Normalize([]byte(note.Content))
	if err != nil {
		return nil, err
	}

	entries := r.parseMeta(doc.Meta)
	kind, err := classify(entries)
	if err != nil {
		return nil, err
	}

	if kind == KindImage {
		im, err := r.newImage(note)
		if err != nil {
			return nil, err
		}
		r.cache[note.GUID] = im
		if err := r.populateImage(im, entries); err != nil {
			return nil, err
		}
		return im, nil
	}

	p := &Post{base: base{note: note, kind: kind, title: note.Title, published: &DateTimeAttr{}}, resolver: r}
	r.cache[note.GUID] = p
	if err := r.populatePost(p, entries); err != nil {
		return nil, err
	}
	p.content = newContentAttr(doc.Content)
	// Rendering is lazy, but publish ordering needs the full reference set
	// up front, so content references resolve eagerly here.
	if err := r.scanContentRefs(ctx, p, doc.Content); err != nil {
		return nil, err
	}
	return p, nil
}

// parseMeta applies the key=value grammar to each metadata paragraph.
// Comment lines and paragraphs without an assignment are skipped.
func (r *Resolver) parseMeta(paras []enml.Paragraph) []metaEntry {
	var out []metaEntry
	for _, p := range paras {
		if p.Empty() || strings.HasPrefix(strings.TrimSpace(p.Text), "#") {
			continue
		}
		m := metaLineRe.FindStringSubmatch(p.Text)
		if m == nil {
			continue
		}
		out = append(out, metaEntry{key: m[1], value: strings.TrimSpace(m[2]), para: p})
	}
	return out
}

// classify decides the record variant from the `type` metadata and
// validates the required enums. `post` and `page` finalize as posts;
// anything absent is an image attachment.
func classify(entries []metaEntry) (Kind, error) {
	kind := KindImage
	for _, e := range entries {
		switch e.key {
		case "type":
			switch e.value {
			case "post":
				kind = KindPost
			case "page":
				kind = KindPage
			default:
				return "", &apperr.ParseError{Fragment: e.value, Reason: "type must be post or page"}
			}
		case "content_format":
			if e.value != "markdown" && e.value != "html" {
				return "", &apperr.ParseError{Fragment: e.value, Reason: "content_format must be markdown or html"}
			}
		}
	}
	return kind, nil
}

// newImage builds the image variant from the note's binary attachment.
// Exactly one resource is required; extras are warned about and the first
// wins.
func (r *Resolver) newImage(note *notestore.Note) (*Image, error) {
	if len(note.Resources) == 0 {
		return nil, &apperr.MissingResourceError{NoteTitle: note.Title}
	}
	if len(note.Resources) > 1 {
		r.log.Warn("image note has too many attached resources, choosing the first one arbitrarily",
			slog.String("title", note.Title),
			slog.Int("count", len(note.Resources)))
	}
	res := note.Resources[0]
	filename := res.Filename
	if fields := strings.Fields(note.Title); len(fields) > 0 {
		filename = fields[0]
	}
	return &Image{
		base:     base{note: note, kind: KindImage, title: note.Title, published: &DateTimeAttr{}},
		filename: filename,
		data:     res.Body,
		mime:     fixMime(res.Mime, r.log),
	}, nil
}

// fixMime rewrites legacy image mimetypes the publish target will not
// display inline.
func fixMime(mime string, log *slog.Logger) string {
	switch mime {
	case "image/x-png":
		return "image/png"
	case "image/pjpeg":
		return "image/jpeg"
	case "":
		log.Warn("resource has no mimetype, defaulting to application/octet-stream")
		return "application/octet-stream"
	}
	return mime
}

func (r *Resolver) populatePost(p *Post, entries []metaEntry) error {
	for _, e := range entries {
		switch e.key {
		case "type", "content_format":
			if e.key == "content_format" {
				p.contentFormat = e.value
			}
		case "id":
			if n, ok := newPlainAttr(e.value).Int(); ok {
				p.id = n
			} else if e.value != "" && e.value != AutoSentinel {
				r.log.Warn("non-numeric id value, treating as unset", slog.String("value", e.value))
			}
		case "title":
			p.title = e.value
		case "slug":
			p.slugAttr = newSlugAttr(e.value, func() string { return p.title })
		case "categories":
			items, err := parseListValue(e.value)
			if err != nil {
				r.log.Warn("malformed categories value, treating as unset", slog.String("value", e.value))
				continue
			}
			p.categories = items
		case "tags":
			items, err := parseListValue(e.value)
			if err != nil {
				r.log.Warn("malformed tags value, treating as unset", slog.String("value", e.value))
				continue
			}
			p.tags = items
		case "thumbnail":
			a, err := newLinkAttr(e.value, e.para, r)
			if err != nil {
				return err
			}
			p.thumbnail = a
		case "project":
			a, err := newLinkAttr(e.value, e.para, r)
			if err != nil {
				return err
			}
			p.project = a
		case "parent":
			a, err := newLinkAttr(e.value, e.para, r)
			if err != nil {
				return err
			}
			p.parent = a
		case "hemingwayapp-grade":
			p.grade = newPlainAttr(e.value)
		case "link":
			r.setLinkField(&p.base, e)
		case "date_created":
			r.setDateField(&p.base, e)
		default:
			r.log.Warn("unknown metadata key", slog.String("key", e.key), slog.String("value", e.value))
		}
	}
	if p.slugAttr == nil {
		p.slugAttr = newSlugAttr("", func() string { return p.title })
	}
	return nil
}

func (r *Resolver) populateImage(im *Image, entries []metaEntry) error {
	for _, e := range entries {
		switch e.key {
		case "id":
			if n, ok := newPlainAttr(e.value).Int(); ok {
				im.id = n
			} else if e.value != "" && e.value != AutoSentinel {
				r.log.Warn("non-numeric id value, treating as unset", slog.String("value", e.value))
			}
		case "title":
			im.title = e.value
		case "caption":
			im.caption = e.value
		case "description":
			im.description = e.value
		case "parent":
			a, err := newLinkAttr(e.value, e.para, r)
			if err != nil {
				return err
			}
			im.parent = a
		case "link":
			r.setLinkField(&im.base, e)
		case "date_created":
			r.setDateField(&im.base, e)
		default:
			r.log.Warn("unknown metadata key", slog.String("key", e.key), slog.String("value", e.value))
		}
	}
	return nil
}

// setLinkField handles the `link` metadata key, which holds either the auto
// sentinel, a plain URL, or a hyperlink node.
func (r *Resolver) setLinkField(b *base, e metaEntry) {
	if e.value == AutoSentinel {
		b.linkAuto = true
		return
	}
	if len(e.para.Inlines) == 1 && e.para.Inlines[0].Kind == enml.InlineLink && e.value == "" {
		b.link = e.para.Inlines[0].Href
		return
	}
	b.link = e.value
}

func (r *Resolver) setDateField(b *base, e metaEntry) {
	if e.value == AutoSentinel {
		b.dateAuto = true
		b.published = &DateTimeAttr{}
		return
	}
	b.published = newDateTimeAttr(e.value, r.log)
}

func (r *Resolver) scanContentRefs(ctx context.Context, p *Post, paras []enml.Paragraph) error {
	for _, para := range paras {
		for _, in := range para.Inlines {
			if in.Kind != enml.InlineLink || !notelink.IsNoteLink(in.Href) {
				continue
			}
			rec, err := r.Resolve(ctx, in.Href)
			if err != nil {
				var ur *apperr.UnknownReferenceError
				if errors.As(err, &ur) && ur.RecordTitle == "" {
					ur.RecordTitle = p.title
				}
				return err
			}
			p.addRef(rec)
		}
	}
	return nil
}
