package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/veilproxy/veilproxy/internal/config"
	"github.com/veilproxy/veilproxy/internal/session"
	"github.com/veilproxy/veilproxy/internal/shorturl"
	"github.com/veilproxy/veilproxy/internal/ssrf"
	"github.com/veilproxy/veilproxy/internal/upstream"
	"github.com/veilproxy/veilproxy/internal/urlcodec"
)

// withChiWildcard attaches a chi route context so chi.URLParam(r, "*")
// resolves inside a handler test invoked directly (bypassing the router).
func withChiWildcard(r *http.Request, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("*", value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// allowAllValidator admits every target, for tests whose upstream is a
// loopback httptest server that the default SSRF validator would reject.
type allowAllValidator struct{}

func (allowAllValidator) Validate(context.Context, string) (bool, string) { return true, "" }

func testApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{
		UseProxy:          false,
		SessionTTLMinutes: 30,
		SessionCookieName: "proxy_session",
		Env:               "test",
	}
	a := &App{
		Config:     cfg,
		Sessions:   session.NewStore(cfg.SessionTTL()),
		ShortURLs:  shorturl.NewStore(),
		Dispatcher: upstream.NewDispatcher(cfg),
		SSRF:       ssrf.NewDefaultValidator(),
	}
	t.Cleanup(a.Stop)
	return a
}

func TestHandleProxyAPIRewritesHTML(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><a href="/next">next</a></body></html>`))
	}))
	defer upstreamSrv.Close()

	a := testApp(t)
	a.SSRF = allowAllValidator{}
	token := urlcodec.Encode(upstreamSrv.URL + "/")

	req := httptest.NewRequest(http.MethodGet, "/api/proxy?url="+token, nil)
	w := httptest.NewRecorder()
	a.handleProxyAPI(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "/p/") {
		t.Fatalf("expected rewritten link through /p/, got %s", w.Body.String())
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("expected CSP header on page-mode response")
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatalf("expected a session cookie to be set for a fresh request")
	}
}

func TestHandleProxyAPIRejectsSSRFTarget(t *testing.T) {
	a := testApp(t)
	token := urlcodec.Encode("http://127.0.0.1:9/secret")

	req := httptest.NewRequest(http.MethodGet, "/api/proxy?url="+token, nil)
	w := httptest.NewRecorder()
	a.handleProxyAPI(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected SSRF rejection as 400, got %d", w.Code)
	}
}

func TestHandleProxyAPIMissingURL(t *testing.T) {
	a := testApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/proxy", nil)
	w := httptest.NewRecorder()
	a.handleProxyAPI(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing url param, got %d", w.Code)
	}
}

func TestHandleProxyPathRedirect(t *testing.T) {
	a := testApp(t)
	enc := urlcodec.Encode("https://example.com/page")

	req := withChiWildcard(httptest.NewRequest(http.MethodGet, "/p/"+enc, nil), enc)
	w := httptest.NewRecorder()
	a.handleProxyPathRedirect(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "/api/proxy?url=") {
		t.Fatalf("expected redirect to /api/proxy, got %q", loc)
	}
}

func TestHandleProxyPathRedirectUnknownShortURL(t *testing.T) {
	a := testApp(t)
	req := withChiWildcard(httptest.NewRequest(http.MethodGet, "/p/s/doesnotexist", nil), "s/doesnotexist")
	w := httptest.NewRecorder()
	a.handleProxyPathRedirect(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown short url, got %d", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	a := testApp(t)

	createReq := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	createW := httptest.NewRecorder()
	a.handleSessionCreate(createW, createReq)
	if createW.Code != http.StatusOK {
		t.Fatalf("expected 200 creating session, got %d", createW.Code)
	}
	cookies := createW.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected exactly one session cookie, got %d", len(cookies))
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	getReq.AddCookie(cookies[0])
	getW := httptest.NewRecorder()
	a.handleSessionGet(getW, getReq)
	if !strings.Contains(getW.Body.String(), `"hasSession":true`) {
		t.Fatalf("expected hasSession true, got %s", getW.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	delReq.AddCookie(cookies[0])
	delW := httptest.NewRecorder()
	a.handleSessionDelete(delW, delReq)
	if delW.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", delW.Code)
	}

	getReq2 := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	getReq2.AddCookie(cookies[0])
	getW2 := httptest.NewRecorder()
	a.handleSessionGet(getW2, getReq2)
	if !strings.Contains(getW2.Body.String(), `"hasSession":false`) {
		t.Fatalf("expected hasSession false after delete, got %s", getW2.Body.String())
	}
}

func TestHandleShortenAndURLStats(t *testing.T) {
	a := testApp(t)

	body := strings.NewReader(`{"url":"https://example.com/a/very/long/path"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/shorten", body)
	w := httptest.NewRecorder()
	a.handleShorten(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"shortUrl":"/p/s/`) {
		t.Fatalf("expected shortUrl in response, got %s", w.Body.String())
	}

	statsReq := httptest.NewRequest(http.MethodGet, "/api/url-stats", nil)
	statsW := httptest.NewRecorder()
	a.handleURLStats(statsW, statsReq)
	if !strings.Contains(statsW.Body.String(), `"totalUrls":1`) {
		t.Fatalf("expected one tracked url, got %s", statsW.Body.String())
	}
}

func TestHandleStatusAndHealth(t *testing.T) {
	a := testApp(t)
	a.Config.TargetSite = "https://example.com"

	statusW := httptest.NewRecorder()
	a.handleStatus(statusW, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if !strings.Contains(statusW.Body.String(), `"targetSite":"https://example.com"`) {
		t.Fatalf("expected targetSite echoed, got %s", statusW.Body.String())
	}

	healthW := httptest.NewRecorder()
	a.handleHealth(healthW, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if healthW.Code != http.StatusOK {
		t.Fatalf("expected 200 from health check, got %d", healthW.Code)
	}
}

func TestHandleLandingUsesConfiguredTarget(t *testing.T) {
	a := testApp(t)
	a.Config.TargetSite = "https://example.com"

	w := httptest.NewRecorder()
	a.handleLanding(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(w.Body.String(), "example.com") {
		t.Fatalf("expected target site rendered in landing page, got %s", w.Body.String())
	}
}

func TestHandleHCDNForwardsToTargetSite(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/widget.json" {
			t.Errorf("expected forwarded path /widget.json, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstreamSrv.Close()

	a := testApp(t)
	a.Config.TargetSite = upstreamSrv.URL

	req := httptest.NewRequest(http.MethodGet, "/hcdn-cgi/widget.json", nil)
	w := httptest.NewRecorder()
	a.handleHCDN(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected forwarded body: %s", w.Body.String())
	}
}

func TestHandleHCDNWithoutTargetSite(t *testing.T) {
	a := testApp(t)
	w := httptest.NewRecorder()
	a.handleHCDN(w, httptest.NewRequest(http.MethodGet, "/hcdn-cgi/x", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 with no target site configured, got %d", w.Code)
	}
}

func TestProxyPathForSwitchesToShortURLPastThreshold(t *testing.T) {
	store := shorturl.NewStore()
	t.Cleanup(store.Stop)

	short := proxyPathFor("https://example.com/a", store)
	if !strings.HasPrefix(short, "/p/") || strings.HasPrefix(short, "/p/s/") {
		t.Fatalf("expected a plain token for a short url, got %q", short)
	}

	long := "https://example.com/" + strings.Repeat("a", 2000)
	routed := proxyPathFor(long, store)
	if !strings.HasPrefix(routed, "/p/s/") {
		t.Fatalf("expected short-url routing past the threshold, got %q", routed)
	}
}

func TestBindSessionCreatesAndReusesCookie(t *testing.T) {
	a := testApp(t)

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	sess1, isNew1 := a.bindSession(req1)
	if !isNew1 {
		t.Fatalf("expected a fresh session to report isNew")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(&http.Cookie{Name: a.Config.SessionCookieName, Value: sess1.ID})
	sess2, isNew2 := a.bindSession(req2)
	if isNew2 {
		t.Fatalf("expected an existing cookie to not be reported new")
	}
	if sess2.ID != sess1.ID {
		t.Fatalf("expected the same session to be reused")
	}
}
