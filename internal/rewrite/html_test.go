package rewrite

import (
	"strings"
	"testing"
)

func TestRewriteHTMLRewritesLinksAndInjectsScripts(t *testing.T) {
	base := mustBase(t, "https://example.com/page")
	doc := `<html><head><title>t</title></head><body><a href="/about">About</a><img src="logo.png" srcset="logo.png 1x, logo@2x.png 2x"></body></html>`

	out := RewriteHTML(doc, base, ModePage, "https://proxy.local")

	if !strings.Contains(out, `href="/p/`) {
		t.Fatalf("expected anchor href rewritten, got %s", out)
	}
	if !strings.Contains(out, `src="/p/`) {
		t.Fatalf("expected img src rewritten, got %s", out)
	}
	if !strings.Contains(out, "1x") || !strings.Contains(out, "2x") {
		t.Fatalf("expected srcset descriptors preserved, got %s", out)
	}
	if strings.Count(out, "<script") < 2 {
		t.Fatalf("expected webrtc + runtime scripts injected, got %s", out)
	}
}

func TestRewriteHTMLCreatesHeadWhenAbsent(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	doc := `<html><body>no head here</body></html>`
	out := RewriteHTML(doc, base, ModePage, "https://proxy.local")
	if !strings.Contains(out, "<head>") {
		t.Fatalf("expected synthetic head injected, got %s", out)
	}
	if !strings.Contains(out, "no head here") {
		t.Fatalf("expected body content preserved, got %s", out)
	}
}

func TestRewriteHTMLStripsBaseTagAndUsesItsHref(t *testing.T) {
	base := mustBase(t, "https://example.com/page")
	doc := `<html><head><base href="https://other.example.com/sub/"></head><body><a href="thing.html">x</a></body></html>`
	out := RewriteHTML(doc, base, ModePage, "https://proxy.local")

	if strings.Contains(out, "<base") {
		t.Fatalf("expected <base> stripped, got %s", out)
	}
	if !strings.Contains(out, `href="/p/`) {
		t.Fatalf("expected anchor rewritten against new base, got %s", out)
	}
}

func TestRewriteHTMLStripsCSPMetaAndIntegrity(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	doc := `<html><head><meta http-equiv="Content-Security-Policy" content="default-src 'self'"></head><body><script src="a.js" integrity="sha256-abc"></script></body></html>`
	out := RewriteHTML(doc, base, ModePage, "https://proxy.local")

	if strings.Contains(out, "Content-Security-Policy") {
		t.Fatalf("expected CSP meta stripped, got %s", out)
	}
	if strings.Contains(out, "integrity") {
		t.Fatalf("expected integrity attribute stripped, got %s", out)
	}
}

func TestRewriteHTMLSkipsAlreadyProxiedURLs(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	doc := `<html><head></head><body><a href="/p/abc123">link</a></body></html>`
	out := RewriteHTML(doc, base, ModePage, "https://proxy.local")
	if !strings.Contains(out, `href="/p/abc123"`) {
		t.Fatalf("expected already-proxied href untouched, got %s", out)
	}
}

func TestRewriteHTMLIdempotentDoesNotReinject(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	doc := `<html><head></head><body><a href="/about">x</a></body></html>`
	once := RewriteHTML(doc, base, ModePage, "https://proxy.local")
	twice := RewriteHTML(once, base, ModePage, "https://proxy.local")

	if strings.Count(twice, "<script") != strings.Count(once, "<script") {
		t.Fatalf("expected no script re-injection on second pass: once=%d twice=%d",
			strings.Count(once, "<script"), strings.Count(twice, "<script"))
	}
}

func TestRewriteHTMLAdFrameModePreservesTarget(t *testing.T) {
	base := mustBase(t, "https://ads.example.com/creative")
	doc := `<html><head></head><body><a href="https://advertiser.example.com/" target="_top">click</a></body></html>`
	out := RewriteHTML(doc, base, ModeAdFrame, "https://proxy.local")
	if !strings.Contains(out, `target="_top"`) {
		t.Fatalf("expected target attribute preserved verbatim in adFrame mode, got %s", out)
	}
}
