package app

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/veilproxy/veilproxy/internal/adframe"
	"github.com/veilproxy/veilproxy/internal/classify"
	"github.com/veilproxy/veilproxy/internal/httpx/response"
	"github.com/veilproxy/veilproxy/internal/rewrite"
	"github.com/veilproxy/veilproxy/internal/sentryx"
	"github.com/veilproxy/veilproxy/internal/session"
	"github.com/veilproxy/veilproxy/internal/upstream"
	"github.com/veilproxy/veilproxy/internal/urlcodec"
)

// permissiveCSP replaces the upstream's own Content-Security-Policy for
// page-mode HTML, since the rewritten page loads every resource through
// this origin rather than the target's (spec §4.5, §7).
const permissiveCSP = "default-src * 'unsafe-inline' 'unsafe-eval' data: blob:; " +
	"script-src * 'unsafe-inline' 'unsafe-eval' data: blob:; " +
	"connect-src * data: blob:; img-src * data: blob:; frame-src *"

// handleProxyPathRedirect serves both GET /p/* and its legacy GET
// /external/* alias (spec §9 Open Question 1): decode or short-url
// dereference the token and 302 to the canonical /api/proxy?url= form.
func (a *App) handleProxyPathRedirect(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	if strings.HasPrefix(token, "s/") {
		hash := strings.TrimPrefix(token, "s/")
		target, ok := a.ShortURLs.Lookup(hash)
		if !ok {
			response.BadRequest(w, "unknown or expired short url")
			return
		}
		token = urlcodec.Encode(target)
	}

	dest := "/api/proxy?url=" + url.QueryEscape(token)
	if r.URL.RawQuery != "" {
		dest += "&" + r.URL.RawQuery
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

// handleProxyAPI implements the full request pipeline of spec §4.9: decode
// the token, validate against SSRF, bind the session, dispatch upstream
// through the residential proxy, then branch on redirect/binary/text and
// rewrite as needed before responding.
func (a *App) handleProxyAPI(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("url")
	if token == "" {
		response.BadRequest(w, "missing url parameter")
		return
	}

	target, err := urlcodec.Decode(token)
	if err != nil {
		response.BadRequest(w, "Invalid encoded URL")
		return
	}

	ctx := r.Context()
	if ok, reason := a.SSRF.Validate(ctx, target); !ok {
		response.ErrorWithURL(w, http.StatusBadRequest, reason, target)
		return
	}

	sess, isNew := a.bindSession(r)
	if isNew {
		a.setSessionCookie(w, sess)
	}

	parsed, err := url.Parse(target)
	if err != nil {
		response.BadRequest(w, "Invalid encoded URL")
		return
	}

	body := requestBody(r)
	result, err := a.Dispatcher.Fetch(ctx, target, r.Method, r.Header, body, sessIdentity(sess))
	if err != nil {
		sentryx.CaptureError(err, "proxy fetch failed url=%s", target)
		response.BadGateway(w, "upstream request failed")
		return
	}

	if result.IsRedirect {
		a.writeRedirect(w, parsed, result)
		return
	}

	if classify.IsBinaryBySuffix(parsed.Path) {
		a.writeBinary(w, result)
		return
	}

	contentType := result.Header.Get("Content-Type")
	kind := classify.ByContentType(contentType)
	if kind == classify.KindBinary {
		a.writeBinary(w, result)
		return
	}

	a.writeText(w, r, parsed, result, kind, sess)
}

func (a *App) writeRedirect(w http.ResponseWriter, base *url.URL, result *upstream.FetchResult) {
	resolved, err := urlcodec.ResolveURL(base, result.RedirectLocation)
	location := result.RedirectLocation
	if err == nil && (resolved.Scheme == "http" || resolved.Scheme == "https") {
		location = proxyPathFor(resolved.String(), a.ShortURLs)
	}
	w.Header().Set("Location", location)
	w.WriteHeader(result.Status)
}

func (a *App) writeBinary(w http.ResponseWriter, result *upstream.FetchResult) {
	copyForwardableHeaders(w.Header(), result.Header)
	w.WriteHeader(statusOrOK(result.Status))
	w.Write(result.Body)
}

func (a *App) writeText(w http.ResponseWriter, r *http.Request, base *url.URL, result *upstream.FetchResult, kind classify.Kind, sess *session.Session) {
	status := statusOrOK(result.Status)

	switch kind {
	case classify.KindHTML:
		mode := rewrite.ModePage
		if adframe.IsAdHost(base.Hostname()) {
			mode = rewrite.ModeAdFrame
		}
		rewritten := rewrite.RewriteHTML(string(result.Body), base, mode, proxyOrigin(r))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if mode == rewrite.ModePage {
			w.Header().Set("Content-Security-Policy", permissiveCSP)
		}
		w.WriteHeader(status)
		w.Write([]byte(rewritten))
		if status < 400 {
			sess.SetCurrentPage(base.String())
		}
	case classify.KindCSS:
		rewritten := rewrite.RewriteCSS(string(result.Body), base)
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(rewritten))
	case classify.KindJS:
		rewritten := rewrite.RewriteJS(string(result.Body), base)
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(rewritten))
	default:
		copyForwardableHeaders(w.Header(), result.Header)
		w.WriteHeader(status)
		w.Write(result.Body)
	}
}

func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
