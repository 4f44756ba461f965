package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/enml"
	"github.com/starford/notepress/internal/notelink"
)

// todoGlyph is the fixed placeholder rendered for a to-do marker.
const todoGlyph = "&#x2751;"

// renderParagraphs turns canonical content paragraphs into target markup:
// one line per paragraph, cross-record links replaced by their reference
// tokens, followed by the shortcode merge pass.
func renderParagraphs(ctx context.Context, paras []enml.Paragraph, r *Resolver, owner string) (string, error) {
	lines := make([]string, 0, len(paras))
	for _, p := range paras {
		var b strings.Builder
		b.WriteString(p.Text)
		for _, in := range p.Inlines {
			switch in.Kind {
			case enml.InlineLink:
				tok, err := renderLink(ctx, in, r, owner)
				if err != nil {
					return "", err
				}
				b.WriteString(tok)
			case enml.InlineTodo:
				r.log.Warn("content still contains todo markers", slog.String("record", owner))
				b.WriteString(todoGlyph)
			case enml.InlineMedia:
				// Inline media markers have no rendered form.
			}
			b.WriteString(in.Tail)
		}
		lines = append(lines, b.String())
	}
	return MergeShortcodes(strings.Join(lines, "\n")), nil
}

func renderLink(ctx context.Context, in enml.Inline, r *Resolver, owner string) (string, error) {
	if notelink.IsNoteLink(in.Href) {
		rec, err := r.Resolve(ctx, in.Href)
		if err != nil {
			var ur *apperr.UnknownReferenceError
			if errors.As(err, &ur) && ur.RecordTitle == "" {
				ur.RecordTitle = owner
			}
			return "", err
		}
		tok := rec.ContentRef()
		if tok == "" {
			r.log.Warn("could not format content reference, keeping raw link",
				slog.String("record", owner),
				slog.String("target", rec.Title()))
			return "<" + in.Href + ">", nil
		}
		return tok, nil
	}
	if in.Text == "" || in.Text == in.Href {
		return in.Href, nil
	}
	return fmt.Sprintf(`%s "%s"`, in.Href, strings.ReplaceAll(in.Text, `"`, "")), nil
}

const galleryPattern = `\[gallery ids="([\d,]+)" size="([^"]*)" columns="(\d+)" link="([^"]*)"\]`

// galleryPairRe matches two gallery shortcodes with nothing but whitespace
// between them. Groups: 1-4 first shortcode, 5 separator, 6-9 second.
var galleryPairRe = regexp.MustCompile(galleryPattern + `(\s*)` + galleryPattern)

// MergeShortcodes merges directly-adjacent gallery shortcodes that share
// identical formatting options into one shortcode whose id list is the
// concatenation of the originals and whose columns option equals the merged
// id count. Only immediately adjacent shortcodes merge; non-adjacent
// occurrences stay distinct, and surrounding whitespace is preserved.
func MergeShortcodes(s string) string {
	from := 0
	for {
		loc := galleryPairRe.FindStringSubmatchIndex(s[from:])
		if loc == nil {
			return s
		}
		group := func(i int) string { return s[from+loc[2*i] : from+loc[2*i+1]] }
		// The columns option is derived from the id count, so identity is
		// judged on size and link only.
		if group(2) != group(7) || group(4) != group(9) {
			// Skip past the first shortcode: the second may merge with a
			// follower.
			from += loc[11]
			continue
		}
		ids := group(1) + "," + group(6)
		merged := fmt.Sprintf(`[gallery ids="%s" size="%s" columns="%d" link="%s"]`,
			ids, group(2), strings.Count(ids, ",")+1, group(4))
		s = s[:from+loc[0]] + merged + s[from+loc[1]:]
		// Re-scan from the merged token: it may merge again.
	}
}
