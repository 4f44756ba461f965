package notelink

import (
	"errors"
	"testing"

	"github.com/starford/notepress/internal/apperr"
)

const (
	guid    = "8a9b0c1d-2e3f-4a5b-8c7d-9e0f1a2b3c4d"
	appLink = "evernote:///view/4651/s42/" + guid + "/" + guid + "/"
	webLink = "https://www.evernote.com/shard/s42/nl/4651/" + guid
)

func TestParseBothForms(t *testing.T) {
	for _, tc := range []struct {
		name, url string
	}{
		{"app link", appLink},
		{"web link", webLink},
		{"angle brackets", "<" + appLink + ">"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l, err := Parse(tc.url)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tc.url, err)
			}
			if l.GUID != guid || l.OwnerID != "4651" || l.ShardID != "s42" {
				t.Errorf("Parse(%q) = %+v", tc.url, l)
			}
			if got := l.AppURL(); got != appLink {
				t.Errorf("AppURL() = %q, want %q", got, appLink)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	other := "11111111-2222-4333-8444-555555555555"
	for _, tc := range []struct {
		name, url string
	}{
		{"guid components differ", "evernote:///view/4651/s42/" + guid + "/" + other + "/"},
		{"not a link", "https://example.com/post/1"},
		{"malformed guid", "evernote:///view/4651/s42/aaaaaaa-aaaaa-aaaa-aaaa-aaaaaaaaaaaa/aaaaaaa-aaaaa-aaaa-aaaa-aaaaaaaaaaaa/"},
		{"missing trailing slash", "evernote:///view/4651/s42/" + guid + "/" + guid},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.url); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tc.url)
			} else {
				var pe *apperr.ParseError
				if !errors.As(err, &pe) {
					t.Errorf("Parse(%q) error = %v, want ParseError", tc.url, err)
				}
			}
		})
	}
}

func TestIsNoteLink(t *testing.T) {
	if !IsNoteLink(appLink) || !IsNoteLink(webLink) {
		t.Error("note links not recognized")
	}
	if IsNoteLink("https://example.com/shardless") {
		t.Error("plain URL recognized as note link")
	}
}

func TestCanonicalGUID(t *testing.T) {
	for _, tc := range []struct{ ref, want string }{
		{appLink, guid},
		{webLink, guid},
		{guid, guid},
		{"<" + guid + ">", guid},
		{"some-title-reference", "some-title-reference"},
	} {
		got, err := CanonicalGUID(tc.ref)
		if err != nil {
			t.Errorf("CanonicalGUID(%q) error: %v", tc.ref, err)
			continue
		}
		if got != tc.want {
			t.Errorf("CanonicalGUID(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
}
