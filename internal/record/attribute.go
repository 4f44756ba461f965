package record

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	slug "github.com/goliatone/go-slug"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/enml"
	"github.com/starford/notepress/internal/notelink"
)

// AutoSentinel marks a metadata value the target service computes. It is
// stored HTML-escaped inside note markup and arrives here already unescaped.
const AutoSentinel = "<auto>"

// DateTimeLayout is the wire format for date-time metadata values.
const DateTimeLayout = "2006-01-02 15:04:05"

type attrState int

const (
	attrUnresolved attrState = iota
	attrResolved
)

// PlainAttr wraps a scalar metadata value: a string, an integer when the
// raw value is purely numeric, or null for the auto sentinel.
type PlainAttr struct {
	str   string
	num   int
	isNum bool
	null  bool
}

func newPlainAttr(raw string) *PlainAttr {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == AutoSentinel {
		return &PlainAttr{null: true}
	}
	if isDigits(raw) {
		n, err := strconv.Atoi(raw)
		if err == nil {
			return &PlainAttr{str: raw, num: n, isNum: true}
		}
	}
	return &PlainAttr{str: raw}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// IsNull reports whether the attribute holds the auto sentinel.
func (a *PlainAttr) IsNull() bool { return a == nil || a.null }

// Int returns the integer value when the raw value was purely numeric.
func (a *PlainAttr) Int() (int, bool) {
	if a == nil || a.null || !a.isNum {
		return 0, false
	}
	return a.num, true
}

// String returns the serialized form, which round-trips through the
// metadata grammar.
func (a *PlainAttr) String() string {
	if a == nil || a.null {
		return AutoSentinel
	}
	return a.str
}

// parseListValue splits a delimited metadata value into ordered items:
// comma-separated, double quotes embed literal commas, surrounding
// whitespace is trimmed per item. Order and duplicates are preserved.
func parseListValue(value string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(value))
	r.TrimLeadingSpace = true
	items, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items, nil
}

// SlugAttr derives a URL-safe slug. An explicit non-auto value wins;
// otherwise the slug is computed from the owning record's title at read
// time, so a later title change is reflected.
type SlugAttr struct {
	explicit string
	title    func() string
}

func newSlugAttr(raw string, title func() string) *SlugAttr {
	raw = strings.TrimSpace(raw)
	if raw == AutoSentinel {
		raw = ""
	}
	return &SlugAttr{explicit: raw, title: title}
}

// Value returns the explicit slug or one derived from the owner's title.
func (a *SlugAttr) Value() (string, error) {
	if a == nil {
		return "", nil
	}
	if a.explicit != "" {
		return a.explicit, nil
	}
	t := a.title()
	if t == "" {
		return "", nil
	}
	return slug.Normalize(t)
}

// DateTimeAttr wraps a date-time metadata value. The auto sentinel and
// malformed values parse to unset; programmatic sets accept typed values.
type DateTimeAttr struct {
	t   time.Time
	set bool
}

func newDateTimeAttr(raw string, log *slog.Logger) *DateTimeAttr {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == AutoSentinel {
		return &DateTimeAttr{}
	}
	t, err := time.Parse(DateTimeLayout, raw)
	if err != nil {
		log.Warn("malformed date-time value, treating as unset", slog.String("value", raw))
		return &DateTimeAttr{}
	}
	return &DateTimeAttr{t: t, set: true}
}

// Time returns the value and whether it is set.
func (a *DateTimeAttr) Time() (time.Time, bool) {
	if a == nil {
		return time.Time{}, false
	}
	return a.t, a.set
}

// Set assigns a typed value, e.g. after a publish populates it from the
// target service.
func (a *DateTimeAttr) Set(t time.Time) {
	a.t = t
	a.set = true
}

// String returns the wire form, or the auto sentinel when unset.
func (a *DateTimeAttr) String() string {
	if a == nil || !a.set {
		return AutoSentinel
	}
	return a.t.Format(DateTimeLayout)
}

// LinkAttr wraps a link-typed metadata value. When the raw value is a
// cross-record reference it resolves to a Record on first read and caches
// the result; otherwise it holds a plain external URL.
type LinkAttr struct {
	href     string
	resolver *Resolver
	state    attrState
	rec      Record
}

// newLinkAttr validates a link-typed metadata paragraph: the value is
// either empty (null), plain value text, or exactly one hyperlink with no
// sibling text and no tail text on the link itself.
func newLinkAttr(valueText string, p enml.Paragraph, r *Resolver) (*LinkAttr, error) {
	valueText = strings.TrimSpace(valueText)
	switch len(p.Inlines) {
	case 0:
		return &LinkAttr{href: strings.Trim(valueText, "<>"), resolver: r}, nil
	case 1:
		in := p.Inlines[0]
		if in.Kind != enml.InlineLink || valueText != "" || in.Tail != "" {
			return nil, &apperr.ParseError{Fragment: p.Text, Reason: "link value must be a single hyperlink"}
		}
		return &LinkAttr{href: in.Href, resolver: r}, nil
	default:
		return nil, &apperr.ParseError{Fragment: p.Text, Reason: "link value must be a single hyperlink"}
	}
}

// IsNull reports whether the attribute holds no value.
func (a *LinkAttr) IsNull() bool { return a == nil || a.href == "" }

// IsRef reports whether the value is a cross-record reference.
func (a *LinkAttr) IsRef() bool { return a != nil && notelink.IsNoteLink(a.href) }

// URL returns the raw link value.
func (a *LinkAttr) URL() string {
	if a == nil {
		return ""
	}
	return a.href
}

// Resolve returns the referenced record, resolving it on first read. A
// plain external URL resolves to nil without error.
func (a *LinkAttr) Resolve(ctx context.Context) (Record, error) {
	if a == nil || !a.IsRef() {
		return nil, nil
	}
	if a.state == attrResolved {
		return a.rec, nil
	}
	rec, err := a.resolver.Resolve(ctx, a.href)
	if err != nil {
		return nil, err
	}
	a.rec = rec
	a.state = attrResolved
	return rec, nil
}

// ContentAttr holds an unrendered canonical paragraph tree and renders it
// to target markup on first read, caching the result.
type ContentAttr struct {
	paras    []enml.Paragraph
	rendered string
	state    attrState
}

func newContentAttr(paras []enml.Paragraph) *ContentAttr {
	return &ContentAttr{paras: paras}
}

// Render returns the rendered markup, rendering once per attribute
// lifetime.
func (a *ContentAttr) Render(ctx context.Context, r *Resolver, owner string) (string, error) {
	if a.state == attrResolved {
		return a.rendered, nil
	}
	s, err := renderParagraphs(ctx, a.paras, r, owner)
	if err != nil {
		return "", err
	}
	a.rendered = s
	a.state = attrResolved
	return s, nil
}
