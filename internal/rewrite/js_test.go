package rewrite

import (
	"strings"
	"testing"
)

func TestRewriteJSAllowListedDomain(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	js := `var src = "https://googletagmanager.com/gtag/js?id=X";`
	out := RewriteJS(js, base)
	if !strings.Contains(out, `"/p/`) {
		t.Fatalf("expected allow-listed domain rewritten, got %s", out)
	}
}

func TestRewriteJSProtocolRelativeAllowListed(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	js := `load("//www.google-analytics.com/analytics.js");`
	out := RewriteJS(js, base)
	if !strings.Contains(out, `"/p/`) {
		t.Fatalf("expected protocol-relative allow-listed domain rewritten, got %s", out)
	}
}

func TestRewriteJSIgnoresNonAllowListedDomain(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	js := `var x = "https://some-random-domain.example.org/thing.js";`
	out := RewriteJS(js, base)
	if out != js {
		t.Fatalf("expected non-allow-listed URL untouched, got %s", out)
	}
}

func TestRewriteJSIgnoresAlreadyProxied(t *testing.T) {
	base := mustBase(t, "https://example.com/")
	js := `var x = "/p/alreadyEncodedToken";`
	out := RewriteJS(js, base)
	if out != js {
		t.Fatalf("expected already-proxied URL untouched, got %s", out)
	}
}
