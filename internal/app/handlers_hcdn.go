package app

import (
	"net/http"
	"strings"

	"github.com/veilproxy/veilproxy/internal/httpx/response"
	"github.com/veilproxy/veilproxy/internal/sentryx"
)

// blockedForwardHeaders strips response headers that would otherwise break
// the transparent forward (spec's /hcdn-cgi/* supplement): CSP/frame
// headers that assume the upstream's own origin, and hop-by-hop encoding
// headers net/http already undoes for us.
var blockedForwardHeaders = []string{
	"Content-Security-Policy", "Content-Security-Policy-Report-Only",
	"X-Frame-Options", "X-XSS-Protection",
	"Transfer-Encoding", "Content-Encoding",
}

// handleHCDN transparently forwards a request to TargetSite with no URL
// rewriting — unlike /api/proxy, callers here already know the host they
// mean to reach and just want the residential egress (spec §9 supplement).
func (a *App) handleHCDN(w http.ResponseWriter, r *http.Request) {
	cfg := a.Config
	if cfg.TargetSite == "" {
		response.NotFound(w, "no target site configured")
		return
	}

	target := strings.TrimSuffix(cfg.TargetSite, "/") + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	sess, isNew := a.bindSession(r)
	if isNew {
		a.setSessionCookie(w, sess)
	}

	body := requestBody(r)
	result, err := a.Dispatcher.Fetch(r.Context(), target, r.Method, r.Header, body, sessIdentity(sess))
	if err != nil {
		sentryx.CaptureError(err, "hcdn forward failed url=%s", target)
		response.BadGateway(w, "upstream request failed")
		return
	}

	for _, name := range blockedForwardHeaders {
		result.Header.Del(name)
	}
	for name, values := range result.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(statusOrOK(result.Status))
	w.Write(result.Body)
}
