package app

import (
	"io"
	"net/http"

	"github.com/veilproxy/veilproxy/internal/session"
	"github.com/veilproxy/veilproxy/internal/shorturl"
	"github.com/veilproxy/veilproxy/internal/upstream"
	"github.com/veilproxy/veilproxy/internal/urlcodec"
)

// shortTokenThreshold is the path-length boundary past which an encoded
// token is routed through the short-URL table instead (spec §3, §8
// boundary behavior).
const shortTokenThreshold = 1500

// forwardableResponseHeaders is the whitelist spec §4.9/§7 allow through
// to the browser; everything else (notably CSP/X-Frame-Options/XSS
// protection and Set-Cookie, which stays server-side in the session jar)
// is dropped.
var forwardableResponseHeaders = []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified"}

// bindSession resolves the browser's session from its cookie, creating one
// if absent or expired, and reports whether the cookie needs to be (re)set.
func (a *App) bindSession(r *http.Request) (*session.Session, bool) {
	var id string
	if c, err := r.Cookie(a.Config.SessionCookieName); err == nil {
		id = c.Value
	}
	sess := a.Sessions.GetOrCreate(id)
	return sess, sess.ID != id
}

// setSessionCookie writes the proxy_session cookie per spec §6.
func (a *App) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.Config.SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   a.Config.SessionTTLMinutes * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.IsProduction(),
	})
}

func (a *App) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.Config.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.IsProduction(),
	})
}

// proxyOrigin reconstructs the scheme+host the browser is addressing this
// server as, baked into the injected runtime script for identity spoofing.
func proxyOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// proxyPathFor returns the on-origin path for an absolute URL, routing
// through the short-URL table when the encoded token would exceed the
// path-length boundary (spec §3, §8).
func proxyPathFor(u string, shortStore *shorturl.Store) string {
	enc := urlcodec.Encode(u)
	if len("/p/")+len(enc) > shortTokenThreshold {
		hash := shortStore.Shorten(u)
		return "/p/s/" + hash
	}
	return "/p/" + enc
}

func copyForwardableHeaders(dst http.Header, src http.Header) {
	for _, name := range forwardableResponseHeaders {
		if v := src.Get(name); v != "" {
			dst.Set(name, v)
		}
	}
}

// sessIdentity adapts a *session.Session into upstream.SessionIdentity.
func sessIdentity(s *session.Session) upstream.SessionIdentity { return upstream.Adapt(s) }

// requestBody reads and returns the raw request body for pass-through
// (spec §4.9: "the body is forwarded as the raw byte stream, no JSON/
// url-encoded re-parsing").
func requestBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	body, _ := io.ReadAll(r.Body)
	return body
}
