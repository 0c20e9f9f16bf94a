package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veilproxy/veilproxy/internal/adframe"
	"github.com/veilproxy/veilproxy/internal/assets"
	"github.com/veilproxy/veilproxy/internal/httpx/response"
)

const serviceWorkerVersion = "1"

// handleLanding serves the static landing page with the configured target
// site substituted in (spec §6: GET /).
func (a *App) handleLanding(w http.ResponseWriter, r *http.Request) {
	target := a.Config.TargetSite
	proxyPath := "/"
	if target != "" {
		proxyPath = proxyPathFor(target, a.ShortURLs)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(assets.LandingPage(target, proxyPath)))
}

// handleServiceWorker serves the injected service worker script (spec §6:
// GET /sw.js), scoped to "/" so it can intercept every proxied fetch.
func (a *App) handleServiceWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Service-Worker-Allowed", "/")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(assets.ServiceWorkerSource(serviceWorkerVersion)))
}

func (a *App) handleAssets(w http.ResponseWriter, r *http.Request) {
	assets.ServeStatic(w, chi.URLParam(r, "*"))
}

type statusResponse struct {
	Proxy struct {
		Configured bool   `json:"configured"`
		Host       string `json:"host"`
		Region     string `json:"region"`
	} `json:"proxy"`
	TargetSite string `json:"targetSite"`
}

// handleStatus reports the proxy configuration (spec §6: GET /api/status).
func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := a.Config
	var resp statusResponse
	resp.Proxy.Configured = cfg.UseProxy
	resp.Proxy.Host = cfg.ProxyHost
	resp.Proxy.Region = cfg.ProxyRegion
	resp.TargetSite = cfg.TargetSite
	response.JSON(w, http.StatusOK, resp)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type shortenRequest struct {
	URL string `json:"url"`
}

type shortenResponse struct {
	Hash     string `json:"hash"`
	ShortURL string `json:"shortUrl"`
}

// handleShorten exposes the short-URL table directly (spec §6: POST
// /api/shorten), for callers that need a stable token shorter than the
// full /p/<enc> encoding.
func (a *App) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		response.BadRequest(w, "missing url")
		return
	}
	if ok, reason := a.SSRF.Validate(r.Context(), req.URL); !ok {
		response.ErrorWithURL(w, http.StatusBadRequest, reason, req.URL)
		return
	}
	hash := a.ShortURLs.Shorten(req.URL)
	response.JSON(w, http.StatusOK, shortenResponse{Hash: hash, ShortURL: "/p/s/" + hash})
}

type urlStatsResponse struct {
	TotalURLs     int `json:"totalUrls"`
	MaxPathLength int `json:"maxPathLength"`
	TTLMinutes    int `json:"ttlMinutes"`
}

func (a *App) handleURLStats(w http.ResponseWriter, r *http.Request) {
	stats := a.ShortURLs.Stats()
	response.JSON(w, http.StatusOK, urlStatsResponse{
		TotalURLs:     stats.TotalURLs,
		MaxPathLength: stats.MaxPathLength,
		TTLMinutes:    stats.TTLMinutes,
	})
}

// handleClickBeacon dereferences an ad-network click-redirect chain
// server-side (spec §4.11 / C11) and reports where it landed.
func (a *App) handleClickBeacon(w http.ResponseWriter, r *http.Request) {
	var req adframe.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClickURL == "" {
		response.BadRequest(w, "missing clickUrl")
		return
	}

	sess, isNew := a.bindSession(r)
	if isNew {
		a.setSessionCookie(w, sess)
	}

	result, err := adframe.ProcessClickBeacon(r.Context(), req, a.Dispatcher, sessIdentity(sess))
	if err != nil {
		response.BadGateway(w, "click beacon dereference failed")
		return
	}
	response.JSON(w, http.StatusOK, result)
}
