// Package notelink parses and formats cross-record note links. Two
// equivalent forms exist: the application link
// evernote:///view/<owner>/<shard>/<guid>/<guid>/ and the web form
// https://<host>/shard/<shard>/nl/<owner>/<guid>. Both resolve to the same
// note GUID.
package notelink

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/notepress/internal/apperr"
)

var (
	appLinkRe = regexp.MustCompile(`^evernote:///view/(\d+)/(s\d+)/([0-9a-f\-]{36})/([0-9a-f\-]{36})/$`)
	webLinkRe = regexp.MustCompile(`^https://[\w.\-]+/shard/(s\d+)/nl/(\d+)/([0-9a-f\-]{36})$`)
)

// Link is a parsed note link.
type Link struct {
	OwnerID string
	ShardID string
	GUID    string
}

// AppURL renders the application-link form of the link.
func (l *Link) AppURL() string {
	return fmt.Sprintf("evernote:///view/%s/%s/%s/%s/", l.OwnerID, l.ShardID, l.GUID, l.GUID)
}

// IsNoteLink reports whether url is a note link in either supported form.
// Surrounding angle brackets, as used in markdown-ready note content, are
// tolerated.
func IsNoteLink(url string) bool {
	url = strings.Trim(url, "<>")
	return appLinkRe.MatchString(url) || webLinkRe.MatchString(url)
}

// Parse parses a note link in either form.
func Parse(url string) (*Link, error) {
	url = strings.Trim(url, "<>")
	if m := appLinkRe.FindStringSubmatch(url); m != nil {
		if m[3] != m[4] {
			return nil, &apperr.ParseError{Fragment: url, Reason: "note link GUID components differ"}
		}
		return newLink(m[1], m[2], m[3], url)
	}
	if m := webLinkRe.FindStringSubmatch(url); m != nil {
		return newLink(m[2], m[1], m[3], url)
	}
	return nil, &apperr.ParseError{Fragment: url, Reason: "not a note link"}
}

func newLink(owner, shard, guid, url string) (*Link, error) {
	if _, err := uuid.Parse(guid); err != nil {
		return nil, &apperr.ParseError{Fragment: url, Reason: "invalid note GUID"}
	}
	return &Link{OwnerID: owner, ShardID: shard, GUID: guid}, nil
}

// CanonicalGUID derives the canonical source identifier from a reference:
// note links in either form parse to their GUID component, plain
// identifiers pass through unchanged.
func CanonicalGUID(ref string) (string, error) {
	ref = strings.Trim(ref, "<>")
	if !IsNoteLink(ref) {
		return ref, nil
	}
	l, err := Parse(ref)
	if err != nil {
		return "", err
	}
	return l.GUID, nil
}
