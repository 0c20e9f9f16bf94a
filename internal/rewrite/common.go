package rewrite

import (
	"net/url"
	"strings"

	"github.com/veilproxy/veilproxy/internal/urlcodec"
)

// skippableURL reports whether a URL-bearing attribute/token value should be
// left untouched rather than resolved and proxied: non-fetchable schemes,
// fragment-only references, and values already rewritten to a proxy path
// (the idempotence invariant, spec §8).
func skippableURL(v string) bool {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "/p/") || strings.HasPrefix(trimmed, "/external/") {
		return true
	}
	if strings.HasPrefix(trimmed, "#") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"data:", "javascript:", "mailto:", "tel:", "about:", "blob:", "file:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// resolveAndProxy resolves value against base (treating protocol-relative
// //host/... as https://host/...) and, if the result is fetchable over
// http(s), returns its /p/<enc> form. Shared by the HTML, CSS, and JS
// rewriters so "what counts as reachable" stays in one place.
func resolveAndProxy(value string, base *url.URL) (string, bool) {
	if skippableURL(value) {
		return value, false
	}
	resolved, err := urlcodec.ResolveURL(base, value)
	if err != nil {
		return value, false
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return value, false
	}
	return urlcodec.ProxyPath(resolved.String()), true
}
