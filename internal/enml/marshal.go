package enml

import (
	"strings"
)

const markupHeader = "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
	"<!DOCTYPE en-note SYSTEM \"http://xml.evernote.com/pub/enml2.dtd\">\n"

// Markup renders the canonical document back into note markup: one div per
// paragraph, an hr between the metadata and content sections. The result
// normalizes back to an equal document.
func (d *Document) Markup() string {
	var b strings.Builder
	b.WriteString(markupHeader)
	b.WriteString("<en-note>")
	for _, p := range d.Meta {
		b.WriteByte('\n')
		writeParagraph(&b, p)
	}
	b.WriteString("\n<hr/>")
	for _, p := range d.Content {
		b.WriteByte('\n')
		writeParagraph(&b, p)
	}
	b.WriteString("\n</en-note>")
	return b.String()
}

func writeParagraph(b *strings.Builder, p Paragraph) {
	b.WriteString("<div>")
	b.WriteString(escapeText(p.Text))
	for _, in := range p.Inlines {
		switch in.Kind {
		case InlineLink:
			b.WriteString(`<a href="`)
			b.WriteString(escapeAttr(in.Href))
			b.WriteString(`">`)
			b.WriteString(escapeText(in.Text))
			b.WriteString("</a>")
		case InlineTodo:
			b.WriteString("<en-todo/>")
		case InlineMedia:
			b.WriteString("<en-media/>")
		}
		b.WriteString(escapeText(in.Tail))
	}
	b.WriteString("</div>")
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
