// Package app wires together the config, stores, and dispatcher that the
// router (C9) depends on, and owns the HTTP server's lifecycle. Shaped
// after shell-server-go's internal/app.ServerApp: a struct holding every
// runtime dependency, built once in New and handed to Router.
package app

import (
	"fmt"

	"github.com/veilproxy/veilproxy/internal/config"
	"github.com/veilproxy/veilproxy/internal/logging"
	"github.com/veilproxy/veilproxy/internal/sentryx"
	"github.com/veilproxy/veilproxy/internal/session"
	"github.com/veilproxy/veilproxy/internal/shorturl"
	"github.com/veilproxy/veilproxy/internal/ssrf"
	"github.com/veilproxy/veilproxy/internal/upstream"
)

var log = logging.Component("app")

// App holds every runtime dependency the router needs.
type App struct {
	Config     *config.Config
	Sessions   *session.Store
	ShortURLs  *shorturl.Store
	Dispatcher *upstream.Dispatcher
	SSRF       ssrf.Validator
}

// New loads configuration and builds a fully wired App.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logging.Init(!cfg.IsProduction())
	sentryx.Init(cfg.SentryDSN, cfg.Env, "veilproxy")

	log.Info().
		Str("env", cfg.Env).
		Str("target_site", cfg.TargetSite).
		Bool("use_proxy", cfg.UseProxy).
		Msg("starting veilproxy")

	return &App{
		Config:     cfg,
		Sessions:   session.NewStore(cfg.SessionTTL()),
		ShortURLs:  shorturl.NewStore(),
		Dispatcher: upstream.NewDispatcher(cfg),
		SSRF:       ssrf.NewDefaultValidator(),
	}, nil
}

// Stop halts background sweepers. It does not drain in-flight requests;
// spec §5 explicitly allows the process to exit immediately.
func (a *App) Stop() {
	a.Sessions.Stop()
	a.ShortURLs.Stop()
}
