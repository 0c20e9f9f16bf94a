package rewrite

import (
	"net/url"
	"regexp"
	"strings"
)

// allowListDomains are the high-value third-party hosts C7 bothers rewriting
// inside JS string/template literals — ad networks, major CDNs, analytics.
// Anything else is left for the runtime script (C8) to catch dynamically.
var allowListDomains = []string{
	"googlesyndication.com",
	"doubleclick.net",
	"googleadservices.com",
	"google-analytics.com",
	"googletagmanager.com",
	"googletagservices.com",
	"adsystem.com",
	"amazon-adsystem.com",
	"facebook.net",
	"connect.facebook.net",
	"cloudflare.com",
	"cloudflareinsights.com",
	"jsdelivr.net",
	"cdnjs.cloudflare.com",
	"unpkg.com",
	"fontawesome.com",
	"gstatic.com",
	"googleapis.com",
}

// jsURLRegexp matches the URL body inside a quoted JS literal: an absolute
// https?:// URL or a protocol-relative //host/... form. The opening and
// closing quotes are captured separately (RE2 has no backreferences) and
// RewriteJS only rewrites a match whose two quotes are the same character.
var jsURLRegexp = regexp.MustCompile(`(['"` + "`" + `])((?:https?:)?//[^\s'"` + "`" + `]+)(['"` + "`" + `])`)

// RewriteJS rewrites absolute and protocol-relative URL literals pointing at
// allow-listed domains to their proxy-path form. Dynamically assembled URLs
// (string concatenation, template expressions) are intentionally left alone
// per spec §4.7 — the runtime script (C8) covers them at execution time.
func RewriteJS(js string, base *url.URL) string {
	return jsURLRegexp.ReplaceAllStringFunc(js, func(m string) string {
		sub := jsURLRegexp.FindStringSubmatch(m)
		quote, target := sub[1], sub[2]
		if sub[3] != quote {
			return m
		}

		raw := target
		if strings.HasPrefix(raw, "//") {
			raw = "https:" + raw
		}
		if !matchesAllowList(raw) {
			return m
		}
		rewritten, ok := resolveAndProxy(raw, base)
		if !ok {
			return m
		}
		return quote + rewritten + quote
	})
}

func matchesAllowList(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range allowListDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
