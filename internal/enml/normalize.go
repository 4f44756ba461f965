package enml

import (
	"log/slog"
	"strings"

	"github.com/starford/notepress/internal/apperr"
)

// Normalizer converts raw note markup into the canonical two-section tree.
// Normalization is deterministic and idempotent: normalizing the markup of
// an already-canonical document yields an identical document.
type Normalizer struct {
	log *slog.Logger
}

// NewNormalizer creates a normalizer that reports non-fatal markup issues
// through log.
func NewNormalizer(log *slog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize parses raw markup and walks it in document order. Block markers
// open paragraphs, the horizontal rule switches from the metadata section to
// the content section, and inline elements are preserved structurally.
func (n *Normalizer) Normalize(raw []byte) (*Document, error) {
	root, err := parse(raw)
	if err != nil {
		return nil, err
	}

	st := &walkState{doc: &Document{}, log: n.log}
	if err := st.walkContainer(root); err != nil {
		return nil, err
	}
	st.flush()

	st.doc.Meta = collapse(st.doc.Meta)
	st.doc.Content = collapse(st.doc.Content)
	return st.doc, nil
}

// fixText strips newlines and tabs from segment edges. Interior whitespace
// is left alone.
func fixText(s string) string {
	return strings.Trim(s, "\n\r\t")
}

type walkState struct {
	doc     *Document
	log     *slog.Logger
	cur     *Paragraph
	content bool
}

// flush closes the open paragraph, appending it to the active section.
func (s *walkState) flush() {
	if s.cur == nil {
		return
	}
	if s.content {
		s.doc.Content = append(s.doc.Content, *s.cur)
	} else {
		s.doc.Meta = append(s.doc.Meta, *s.cur)
	}
	s.cur = nil
}

func (s *walkState) open() *Paragraph {
	if s.cur == nil {
		s.cur = &Paragraph{}
	}
	return s.cur
}

// addText appends text to the open paragraph: to the trailing inline's tail
// when inlines exist, to the paragraph text otherwise. Empty text does not
// open a paragraph.
func (s *walkState) addText(t string) {
	if t == "" && s.cur == nil {
		return
	}
	p := s.open()
	if len(p.Inlines) > 0 {
		p.Inlines[len(p.Inlines)-1].Tail += t
	} else {
		p.Text += t
	}
}

// walkContainer handles a block container (the note root, div, p): its text
// opens a fresh paragraph, its children are dispatched, and its tail opens a
// following paragraph.
func (s *walkState) walkContainer(el *element) error {
	s.flush()
	s.cur = &Paragraph{Text: fixText(el.text)}
	for _, c := range el.children {
		if err := s.dispatch(c); err != nil {
			return err
		}
	}
	s.flush()
	s.addText(fixText(el.tail))
	return nil
}

func (s *walkState) dispatch(c *element) error {
	switch c.tag {
	case "hr":
		s.flush()
		s.content = true
		s.addText(fixText(c.tail))
	case "div", "p":
		return s.walkContainer(c)
	case "br":
		s.flush()
		s.cur = &Paragraph{Text: fixText(c.tail)}
	case "a":
		if len(c.children) > 0 {
			return &apperr.ParseError{Fragment: c.attr("href"), Reason: "hyperlink contains nested elements"}
		}
		p := s.open()
		p.Inlines = append(p.Inlines, Inline{
			Kind: InlineLink,
			Href: c.attr("href"),
			Text: fixText(c.text),
			Tail: fixText(c.tail),
		})
	case "en-todo":
		p := s.open()
		p.Inlines = append(p.Inlines, Inline{Kind: InlineTodo, Tail: fixText(c.tail)})
	case "en-media":
		p := s.open()
		p.Inlines = append(p.Inlines, Inline{Kind: InlineMedia, Tail: fixText(c.tail)})
	case "span", "font":
		// Transparent grouping: splice text and children into the parent.
		s.addText(fixText(c.text))
		for _, cc := range c.children {
			if err := s.dispatch(cc); err != nil {
				return err
			}
		}
		if len(c.children) > 0 && fixText(c.tail) != "" {
			s.log.Warn("ambiguous tail text after grouping element", slog.String("tag", c.tag))
		}
		s.addText(fixText(c.tail))
	default:
		s.log.Warn("unhandled tag in note markup", slog.String("tag", c.tag))
		s.addText(fixText(c.tail))
	}
	return nil
}

// collapse drops leading and trailing empty paragraphs and keeps at most one
// consecutive empty paragraph between two non-empty ones.
func collapse(in []Paragraph) []Paragraph {
	var out []Paragraph
	empties := 0
	for _, p := range in {
		if p.Empty() {
			empties++
			continue
		}
		if len(out) > 0 && empties > 0 {
			out = append(out, Paragraph{})
		}
		empties = 0
		out = append(out, p)
	}
	return out
}
