package rewrite

import (
	"net/url"
	"regexp"
	"strings"
)

// urlFuncRegexp matches CSS url(...) tokens, with or without surrounding
// quotes. The quote characters are captured independently (not as a
// backreference, which RE2 cannot express) — grounded on morty's
// CssUrlRegexp.
var urlFuncRegexp = regexp.MustCompile(`(?i)url\(\s*(['"]?)([^'")]*)['"]?\s*\)`)

// importQuoteRegexp matches the bare-quote form of @import, i.e. without a
// url(...) wrapper: @import "foo.css";
var importQuoteRegexp = regexp.MustCompile(`(?i)@import\s+(['"])([^'"]*)['"]`)

// RewriteCSS rewrites every url() and bare @import target in css so it
// resolves through the proxy, resolving relative references against base.
// It is idempotent: tokens already pointing at a proxy path are left alone.
func RewriteCSS(css string, base *url.URL) string {
	css = importQuoteRegexp.ReplaceAllStringFunc(css, func(m string) string {
		sub := importQuoteRegexp.FindStringSubmatch(m)
		quote, target := sub[1], sub[2]
		rewritten, ok := rewriteCSSURL(target, base)
		if !ok {
			return m
		}
		return "@import " + quote + rewritten + quote
	})

	css = urlFuncRegexp.ReplaceAllStringFunc(css, func(m string) string {
		sub := urlFuncRegexp.FindStringSubmatch(m)
		quote, target := sub[1], strings.TrimSpace(sub[2])
		rewritten, ok := rewriteCSSURL(target, base)
		if !ok {
			return m
		}
		return "url(" + quote + rewritten + quote + ")"
	})

	return css
}

func rewriteCSSURL(target string, base *url.URL) (string, bool) {
	if target == "" {
		return target, false
	}
	if strings.HasPrefix(target, "//") {
		target = "https:" + target
	}
	return resolveAndProxy(target, base)
}
