package rewrite

import (
	"net/url"
	"strings"
	"testing"
)

func mustBase(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse base: %v", err)
	}
	return u
}

func TestRewriteCSSUrlFunction(t *testing.T) {
	base := mustBase(t, "https://example.com/styles/")
	css := `.a { background: url(bg.png); } .b { background: url("https://cdn.example.com/x.png"); }`
	out := RewriteCSS(css, base)

	if !strings.Contains(out, "url(/p/") {
		t.Fatalf("expected relative url() rewritten, got %s", out)
	}
	if strings.Contains(out, "bg.png") {
		t.Fatalf("expected original relative url removed, got %s", out)
	}
}

func TestRewriteCSSImportQuoteForm(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	css := `@import "fonts.css";`
	out := RewriteCSS(css, base)
	if !strings.Contains(out, `@import "/p/`) {
		t.Fatalf("expected @import quote form rewritten, got %s", out)
	}
}

func TestRewriteCSSSkipsDataAndAlreadyProxied(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	css := `.a { background: url(data:image/png;base64,AAAA); } .b { background: url(/p/abc123); }`
	out := RewriteCSS(css, base)
	if out != css {
		t.Fatalf("expected skippable URLs untouched, got %s", out)
	}
}

func TestRewriteCSSIdempotent(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	css := `.a { background: url(bg.png); }`
	once := RewriteCSS(css, base)
	twice := RewriteCSS(once, base)
	if once != twice {
		t.Fatalf("expected idempotence, got %q then %q", once, twice)
	}
}
