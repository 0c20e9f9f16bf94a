package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/veilproxy/veilproxy/internal/sentryx"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 30 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 120 * time.Second
)

// Run starts serving HTTP traffic and blocks until a terminating signal or
// listener error, then shuts down gracefully. Grounded on shell-server-go's
// ServerApp.Run: a serverErr/signal select, bounded Shutdown, then cleanup.
// Spec §5 allows the process to exit immediately with no in-flight drain,
// so unlike the teacher this does not wait out active WebSocket relays.
func (a *App) Run() error {
	addr := a.Config.Host + ":" + a.Config.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      a.withPanicRecovery(a.Router()),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("veilproxy listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErr:
		log.Error().Err(runErr).Msg("server error")
		sentryx.CaptureError(runErr, "server listen error")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
		sentryx.CaptureError(err, "server shutdown error")
		if runErr == nil {
			runErr = err
		}
	}

	a.Stop()
	sentryx.Flush()
	if runErr == nil {
		log.Info().Msg("server stopped gracefully")
	}
	return runErr
}

func (a *App) withPanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				sentryx.CaptureMessage(
					sentry.LevelFatal,
					"http panic method=%s path=%s panic=%v stack=%s",
					r.Method, r.URL.Path, rec, string(debug.Stack()),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
