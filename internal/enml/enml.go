// Package enml normalizes constrained rich-text note markup into a canonical
// two-section document and patches metadata assignments back into raw note
// text without disturbing surrounding formatting.
package enml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"github.com/starford/notepress/internal/apperr"
)

// InlineKind discriminates the inline node variants kept by normalization.
type InlineKind int

const (
	InlineLink InlineKind = iota
	InlineTodo
	InlineMedia
)

// Inline is an inline child of a paragraph. Tail is the text that follows
// the inline element up to the next sibling.
type Inline struct {
	Kind InlineKind
	Href string
	Text string
	Tail string
}

// Paragraph is one block-level unit of the canonical tree: leading text
// followed by an ordered sequence of inline nodes.
type Paragraph struct {
	Text    string
	Inlines []Inline
}

// Empty reports whether the paragraph carries no text and no inline nodes.
func (p Paragraph) Empty() bool {
	return p.Text == "" && len(p.Inlines) == 0
}

// Document is the canonical two-section tree: metadata paragraphs before the
// horizontal-rule sentinel, content paragraphs after it.
type Document struct {
	Meta    []Paragraph
	Content []Paragraph
}

// element is a parsed raw-markup node with ElementTree-style text/tail
// semantics: text precedes the first child, tail follows the closing tag.
type element struct {
	tag      string
	attrs    map[string]string
	text     string
	tail     string
	children []*element
}

func (e *element) attr(name string) string {
	return e.attrs[name]
}

// parse builds an element tree from raw note markup. Note markup is XML with
// HTML entity references, so the decoder is strict but carries the full HTML
// entity table.
func parse(raw []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = true
	dec.Entity = xml.HTMLEntity

	var root *element
	var stack []*element

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &apperr.ParseError{Reason: err.Error()}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{tag: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				el.attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, &apperr.ParseError{Fragment: el.tag, Reason: "multiple root elements"}
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			cur := stack[len(stack)-1]
			if len(cur.children) == 0 {
				cur.text += string(t)
			} else {
				cur.children[len(cur.children)-1].tail += string(t)
			}
		}
	}

	if root == nil {
		return nil, &apperr.ParseError{Reason: "empty document"}
	}
	return root, nil
}
