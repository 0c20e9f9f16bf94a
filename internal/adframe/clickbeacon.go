// Package adframe implements the ad-iframe subprotocol's server side (C11,
// spec §4.11): recognizing Google-Ads-shaped click URLs and following their
// redirect chain through the upstream dispatcher on the click-beacon
// endpoint's behalf. The in-frame script half lives in internal/assets
// (AdFrameScript).
package adframe

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/veilproxy/veilproxy/internal/logging"
	"github.com/veilproxy/veilproxy/internal/upstream"
	"github.com/veilproxy/veilproxy/internal/urlcodec"
)

var log = logging.Component("adframe")

const maxRedirects = 10

// googleAdsClickPatterns recognizes the click-URL shapes named in spec
// §4.11: googleadservices.com/.../aclk, doubleclick.net/...clk, etc.
var googleAdsClickPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)googleadservices\.com/.*aclk`),
	regexp.MustCompile(`(?i)doubleclick\.net/.*clk`),
	regexp.MustCompile(`(?i)googlesyndication\.com/.*aclk`),
}

// googleShapedHosts are the hosts a redirect chain is still allowed to pass
// through; a hop to anything else means the advertiser has been reached.
var googleShapedHosts = []string{
	"googleadservices.com",
	"doubleclick.net",
	"googlesyndication.com",
	"google.com",
	"googleads.g.doubleclick.net",
}

// IsGoogleAdsClick reports whether href matches a known Google-Ads click
// shape. The service worker and the ad-frame script in internal/assets
// carry the same patterns in JS; no Go handler calls this function.
func IsGoogleAdsClick(href string) bool {
	for _, p := range googleAdsClickPatterns {
		if p.MatchString(href) {
			return true
		}
	}
	return false
}

// adFrameHosts are the third-party ad-network origins that get the
// narrower ad-frame rewrite (spec §4.5 "For adFrame mode") instead of the
// full page rewrite, when the router picks a mode by target host.
var adFrameHosts = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"adnxs.com",
	"adsrvr.org",
	"outbrain.com",
	"taboola.com",
	"criteo.com",
	"pubmatic.com",
	"rubiconproject.com",
	"openx.net",
	"amazon-adsystem.com",
}

// IsAdHost reports whether host is a known third-party ad-network origin,
// used by the router to choose ModeAdFrame over ModePage for an HTML
// response (spec §4.5, §4.11).
func IsAdHost(host string) bool {
	host = strings.ToLower(host)
	for _, shaped := range adFrameHosts {
		if host == shaped || strings.HasSuffix(host, "."+shaped) {
			return true
		}
	}
	return false
}

func isGoogleShapedHost(host string) bool {
	host = strings.ToLower(host)
	for _, shaped := range googleShapedHosts {
		if host == shaped || strings.HasSuffix(host, "."+shaped) {
			return true
		}
	}
	return false
}

// Request is the click-beacon POST body (spec §4.11).
type Request struct {
	ClickURL  string `json:"clickUrl"`
	Cookies   string `json:"cookies"`
	UserAgent string `json:"userAgent"`
	Referrer  string `json:"referrer"`
	Language  string `json:"language"`
	AdURL     string `json:"adurl,omitempty"`
}

// Result is the click-beacon response body.
type Result struct {
	Success         bool   `json:"success"`
	ClickRegistered bool   `json:"clickRegistered"`
	Destination     string `json:"destination,omitempty"`
	ProxyURL        string `json:"proxyUrl,omitempty"`
}

// ProcessClickBeacon stores the browser-supplied Google-domain cookies into
// sess, then follows clickURL's redirect chain through dispatcher up to
// maxRedirects, stopping once a non-Google-shaped host is reached, a
// non-redirect response arrives, or the chain errors or exhausts its budget.
func ProcessClickBeacon(ctx context.Context, req Request, dispatcher *upstream.Dispatcher, sess upstream.SessionIdentity) (*Result, error) {
	storeBrowserCookies(req, sess)

	current := req.ClickURL
	headers := http.Header{}
	if req.UserAgent != "" {
		headers.Set("User-Agent", req.UserAgent)
	}
	if req.Language != "" {
		headers.Set("Accept-Language", req.Language)
	}

	for hop := 0; hop < maxRedirects; hop++ {
		parsed, err := url.Parse(current)
		if err != nil {
			return fallback(req), nil
		}
		if !isGoogleShapedHost(parsed.Hostname()) {
			return success(current, true), nil
		}

		result, err := dispatcher.Fetch(ctx, current, http.MethodGet, headers, nil, sess)
		if err != nil {
			log.Warn().Err(err).Str("url", current).Msg("click-beacon chain hop failed")
			return fallback(req), nil
		}
		if result.IsRedirect {
			next, err := urlcodec.ResolveURL(parsed, result.RedirectLocation)
			if err != nil {
				return fallback(req), nil
			}
			current = next.String()
			continue
		}
		if result.Status < 400 {
			return success(current, true), nil
		}
		return fallback(req), nil
	}

	return fallback(req), nil
}

func success(destination string, registered bool) *Result {
	return &Result{
		Success:         true,
		ClickRegistered: registered,
		Destination:     destination,
		ProxyURL:        urlcodec.ProxyPath(destination),
	}
}

func fallback(req Request) *Result {
	if req.AdURL == "" {
		return &Result{Success: false, ClickRegistered: false}
	}
	return &Result{
		Success:         true,
		ClickRegistered: false,
		Destination:     req.AdURL,
		ProxyURL:        urlcodec.ProxyPath(req.AdURL),
	}
}

// storeBrowserCookies parses the document.cookie-shaped string the ad frame
// reported and stores it against the click URL's host, scoped to the
// Google-family domains the chain can touch.
func storeBrowserCookies(req Request, sess upstream.SessionIdentity) {
	if req.Cookies == "" {
		return
	}
	host := req.ClickURL
	if parsed, err := url.Parse(req.ClickURL); err == nil {
		host = parsed.Hostname()
	}
	if host == "" || !isGoogleShapedHost(host) {
		return
	}
	lines := make([]string, 0)
	for _, pair := range strings.Split(req.Cookies, ";") {
		pair = strings.TrimSpace(pair)
		if pair != "" {
			lines = append(lines, pair)
		}
	}
	if len(lines) > 0 {
		sess.StoreCookies(host, lines)
	}
}
