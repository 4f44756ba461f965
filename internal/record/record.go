// Package record turns normalized notes into typed publishable records,
// resolves cross-record references through a memoizing cache, and renders
// canonical content back into target markup.
package record

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/starford/notepress/internal/notestore"
)

// Kind discriminates record variants. It derives from the note's `type`
// metadata; notes without one are image attachments.
type Kind string

const (
	KindPost  Kind = "post"
	KindPage  Kind = "page"
	KindImage Kind = "image"
)

// Record is a publishable unit: an article/page or an image attachment.
type Record interface {
	// GUID is the stable identifier of the originating note.
	GUID() string
	Title() string
	Kind() Kind
	// ID is the external identifier, 0 until published.
	ID() int
	SetID(int)
	// Link is the canonical published URL, authoritative once published.
	Link() string
	SetLink(string)
	// LinkAuto reports whether the source declared the link as
	// service-computed, making it patchable.
	LinkAuto() bool
	// Published is the first-publish timestamp attribute.
	Published() *DateTimeAttr
	// DateAuto reports whether the source declared the publish date as
	// service-computed.
	DateAuto() bool
	// SourceUpdated is the note's last-modified timestamp.
	SourceUpdated() time.Time
	// Note is the underlying raw note.
	Note() *notestore.Note
	// RefItems returns the records referenced from content, in first-seen
	// order.
	RefItems() []Record
	// MetaRefs resolves and returns the records referenced from metadata
	// fields (thumbnail, project, parent). These are tracked apart from
	// RefItems but still contribute to publish ordering.
	MetaRefs(ctx context.Context) ([]Record, error)
	// ContentRef renders the markup token this record contributes when
	// referenced from another record's content. Empty when the record
	// cannot be referenced yet.
	ContentRef() string
}

// base carries the fields and behavior shared by both record variants.
type base struct {
	note      *notestore.Note
	kind      Kind
	id        int
	title     string
	link      string
	linkAuto  bool
	dateAuto  bool
	parent    *LinkAttr
	published *DateTimeAttr
	refs      []Record
	refSeen   map[string]bool
}

func (b *base) GUID() string              { return b.note.GUID }
func (b *base) Title() string             { return b.title }
func (b *base) Kind() Kind                { return b.kind }
func (b *base) ID() int                   { return b.id }
func (b *base) SetID(id int)              { b.id = id }
func (b *base) Link() string              { return b.link }
func (b *base) SetLink(l string)          { b.link = l }
func (b *base) LinkAuto() bool            { return b.linkAuto }
func (b *base) Published() *DateTimeAttr  { return b.published }
func (b *base) DateAuto() bool            { return b.dateAuto }
func (b *base) SourceUpdated() time.Time  { return b.note.Updated }
func (b *base) Note() *notestore.Note     { return b.note }
func (b *base) RefItems() []Record        { return b.refs }

// Parent is the metadata link to the parent record: the parent page for a
// page, the parent post for an image.
func (b *base) Parent() *LinkAttr { return b.parent }

func (b *base) addRef(rec Record) {
	if b.refSeen == nil {
		b.refSeen = make(map[string]bool)
	}
	if b.refSeen[rec.GUID()] {
		return
	}
	b.refSeen[rec.GUID()] = true
	b.refs = append(b.refs, rec)
}

// Post is an article or page record.
type Post struct {
	base
	contentFormat string
	slugAttr      *SlugAttr
	categories    []string
	tags          []string
	thumbnail     *LinkAttr
	project       *LinkAttr
	grade         *PlainAttr
	content       *ContentAttr
	resolver      *Resolver
}

func (p *Post) ContentFormat() string { return p.contentFormat }
func (p *Post) Categories() []string  { return p.categories }
func (p *Post) Tags() []string        { return p.tags }
func (p *Post) Thumbnail() *LinkAttr  { return p.thumbnail }
func (p *Post) Project() *LinkAttr    { return p.project }
func (p *Post) Grade() *PlainAttr     { return p.grade }

// Slug returns the explicit slug or one derived from the title.
func (p *Post) Slug() (string, error) { return p.slugAttr.Value() }

// Content renders the canonical content to target markup. The result is
// rendered once and cached.
func (p *Post) Content(ctx context.Context) (string, error) {
	if p.content == nil {
		return "", nil
	}
	return p.content.Render(ctx, p.resolver, p.title)
}

// ContentRef renders the reference token for this post: an id-based embed
// once published, otherwise the plain URL with the quoted title.
func (p *Post) ContentRef() string {
	if p.id != 0 {
		return fmt.Sprintf(`[post id="%d"]`, p.id)
	}
	if p.link == "" {
		return ""
	}
	if p.title == "" {
		return p.link
	}
	return fmt.Sprintf(`%s "%s"`, p.link, strings.ReplaceAll(p.title, `"`, ""))
}

// MetaRefs resolves thumbnail, project, and parent references.
func (p *Post) MetaRefs(ctx context.Context) ([]Record, error) {
	var out []Record
	for _, a := range []*LinkAttr{p.thumbnail, p.project, p.parent} {
		rec, err := a.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Image is a binary attachment record.
type Image struct {
	base
	filename    string
	caption     string
	description string
	data        []byte
	mime        string
}

func (im *Image) Filename() string    { return im.filename }
func (im *Image) Caption() string     { return im.caption }
func (im *Image) Description() string { return im.description }
func (im *Image) Data() []byte        { return im.data }
func (im *Image) Mime() string        { return im.mime }

// ContentRef renders the reference token for this image: a captioned HTML
// tag when a caption is set, otherwise a gallery shortcode keyed by its
// identifier.
func (im *Image) ContentRef() string {
	if im.id == 0 {
		return ""
	}
	if im.caption != "" && im.link != "" {
		alt := ""
		if im.description != "" {
			alt = fmt.Sprintf(` alt="%s"`, im.description)
		}
		return fmt.Sprintf(
			`[caption id="attachment_%d" align="alignnone"]<a href="%s"><img src="%s" class="wp-image-%d"%s /></a> %s[/caption]`,
			im.id, im.link, im.link, im.id, alt, im.caption)
	}
	return fmt.Sprintf(`[gallery ids="%d" size="medium" columns="1" link="file"]`, im.id)
}

// MetaRefs resolves the parent-post reference.
func (im *Image) MetaRefs(ctx context.Context) ([]Record, error) {
	rec, err := im.parent.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return []Record{rec}, nil
}
