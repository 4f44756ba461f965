// Package preview renders resolved post content to HTML for local
// inspection before publishing.
package preview

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// HTML converts rendered markdown content to an HTML fragment. Shortcodes
// pass through verbatim, as they would on the publish target.
func HTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("preview: render markdown: %w", err)
	}
	return buf.String(), nil
}
