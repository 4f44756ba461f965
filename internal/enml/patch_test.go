package enml

import (
	"strings"
	"testing"
)

const patchFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE en-note SYSTEM "http://xml.evernote.com/pub/enml2.dtd">
<en-note>
<div>type=post</div>
<div>id=&lt;auto&gt;</div>
<div>link=&lt;auto&gt;</div>
<div style="color:gray">date_created=&lt;auto&gt;</div>
<div><hr/></div>
<div>body text mentioning id=&lt;auto&gt; which must stay</div>
</en-note>`

func TestPatchReplacesValues(t *testing.T) {
	out, changed := Patch(patchFixture, map[string]string{
		"id":   "42",
		"link": "https://blog.example.com/2014/01/hello/",
	}, discardLogger())
	if !changed {
		t.Fatal("Patch() reported no change")
	}
	if !strings.Contains(out, "<div>id=42</div>") {
		t.Errorf("id not patched:\n%s", out)
	}
	if !strings.Contains(out, "<div>link=https://blog.example.com/2014/01/hello/</div>") {
		t.Errorf("link not patched:\n%s", out)
	}
	// Everything outside the replaced spans stays byte for byte.
	if !strings.Contains(out, `<div style="color:gray">date_created=&lt;auto&gt;</div>`) {
		t.Errorf("untouched line modified:\n%s", out)
	}
}

func TestPatchStopsAtContentSection(t *testing.T) {
	out, changed := Patch(patchFixture, map[string]string{"id": "42"}, discardLogger())
	if !changed {
		t.Fatal("Patch() reported no change")
	}
	if !strings.Contains(out, "body text mentioning id=&lt;auto&gt; which must stay") {
		t.Errorf("content section was patched:\n%s", out)
	}
}

func TestPatchTagWrappedValue(t *testing.T) {
	in := `<div><span style="x">id = &lt;auto&gt;</span></div>
<hr/>`
	out, changed := Patch(in, map[string]string{"id": "7"}, discardLogger())
	if !changed {
		t.Fatal("Patch() reported no change")
	}
	if want := `<div><span style="x">id = 7</span></div>`; !strings.Contains(out, want) {
		t.Errorf("got:\n%s\nwant line:\n%s", out, want)
	}
}

func TestPatchEqualValueIsNoOp(t *testing.T) {
	in := "id=42\nlink=pending\n<hr/>\nbody"
	out, changed := Patch(in, map[string]string{"id": "42"}, discardLogger())
	if changed {
		t.Error("Patch() reported a change for an equal value")
	}
	if out != in {
		t.Errorf("text changed:\n%s", out)
	}
}

func TestPatchIdempotent(t *testing.T) {
	updates := map[string]string{"id": "42", "link": "https://blog.example.com/x/"}
	once, changed := Patch(patchFixture, updates, discardLogger())
	if !changed {
		t.Fatal("first Patch() reported no change")
	}
	twice, changed := Patch(once, updates, discardLogger())
	if changed {
		t.Error("second Patch() reported a change")
	}
	if twice != once {
		t.Errorf("second Patch() altered text:\n%s", twice)
	}
}

func TestPatchMissingKeySkipped(t *testing.T) {
	in := "type=post\n<hr/>\nbody"
	out, changed := Patch(in, map[string]string{"caption": "hello"}, discardLogger())
	if changed || out != in {
		t.Errorf("Patch() modified text for an absent key:\n%s", out)
	}
}

func TestPatchCarriageReturnLines(t *testing.T) {
	in := "id=&lt;auto&gt;\r\ntype=post\r\n<hr/>\r\n"
	out, changed := Patch(in, map[string]string{"id": "9"}, discardLogger())
	if !changed {
		t.Fatal("Patch() reported no change")
	}
	if !strings.HasPrefix(out, "id=9\r\n") {
		t.Errorf("CRLF line not patched:\n%q", out)
	}
}
