package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router builds the complete HTTP routing tree described in spec §6.
// Shape (chi + middleware stack) is grounded on the renderer template's
// cmd/server/main.go and generalized on shell-server-go's
// ServerApp.Router() method.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", a.handleLanding)
	r.Get("/sw.js", a.handleServiceWorker)
	r.Get("/assets/*", a.handleAssets)

	r.Get("/p/*", a.handleProxyPathRedirect)
	r.Get("/external/*", a.handleProxyPathRedirect)

	r.Get("/api/proxy", a.handleProxyAPI)
	r.Post("/api/proxy", a.handleProxyAPI)

	r.Post("/api/session", a.handleSessionCreate)
	r.Get("/api/session", a.handleSessionGet)
	r.Delete("/api/session", a.handleSessionDelete)

	r.Get("/api/status", a.handleStatus)
	r.Get("/api/health", a.handleHealth)
	r.Post("/api/shorten", a.handleShorten)
	r.Get("/api/url-stats", a.handleURLStats)
	r.Post("/api/click-beacon", a.handleClickBeacon)

	r.HandleFunc("/hcdn-cgi/*", a.handleHCDN)

	return r
}

func (a *App) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
