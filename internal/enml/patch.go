package enml

import (
	"log/slog"
	"regexp"
	"strings"
)

// hrLineRe matches the horizontal-rule sentinel that ends the metadata
// section. Only lines before it are patch candidates.
var hrLineRe = regexp.MustCompile(`<hr\s*/?\s*>`)

// keyPattern builds the tolerant assignment matcher for one metadata key:
// the key preceded by start-of-line or a closing bracket of a wrapping tag,
// an equals sign with optional whitespace, and a value of word characters
// plus '&' and ';', terminated by end-of-line or an opening bracket.
func keyPattern(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|>)\s*` + regexp.QuoteMeta(key) + `\s*=\s*([\w&;]+)(?:\r?$|<)`)
}

// Patch rewrites metadata assignments inside raw note text, replacing only
// the matched value span and leaving every other byte untouched. It never
// touches the content section, never reorders lines, and is idempotent.
// Keys not present in the source are warned about and skipped, never
// inserted. The returned flag reports whether the text was modified.
func Patch(text string, updates map[string]string, log *slog.Logger) (string, bool) {
	pending := make(map[string]string, len(updates))
	patterns := make(map[string]*regexp.Regexp, len(updates))
	for k, v := range updates {
		pending[k] = v
		patterns[k] = keyPattern(k)
	}

	lines := strings.Split(text, "\n")
	changed := false
	for i, line := range lines {
		if hrLineRe.MatchString(line) {
			break
		}
		for key, val := range pending {
			m := patterns[key].FindStringSubmatchIndex(line)
			if m == nil {
				continue
			}
			delete(pending, key)
			start, end := m[2], m[3]
			if line[start:end] == val {
				continue
			}
			line = line[:start] + val + line[end:]
			lines[i] = line
			changed = true
		}
	}

	for key := range pending {
		log.Warn("metadata key not present in source, not patched", slog.String("key", key))
	}

	if !changed {
		return text, false
	}
	return strings.Join(lines, "\n"), true
}
