// Package sentryx wraps error reporting so the rest of the tree never
// imports the sentry SDK directly. Reporting is a no-op until Init is
// called with a non-empty DSN, mirroring preview-proxy's initSentry.
package sentryx

import (
	"fmt"

	"github.com/getsentry/sentry-go"

	"github.com/veilproxy/veilproxy/internal/logging"
)

var log = logging.Component("sentryx")

var enabled bool

// Init starts the Sentry client. A blank dsn leaves reporting disabled.
func Init(dsn, environment, serverName string) {
	if dsn == "" {
		return
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		ServerName:       serverName,
		AttachStacktrace: true,
	}); err != nil {
		log.Warn().Err(err).Msg("sentry init failed")
		return
	}
	enabled = true
}

// Flush blocks until buffered events are sent or the timeout elapses.
func Flush() {
	if enabled {
		sentry.Flush(2_000_000_000) // 2s, expressed in ns to avoid importing time here
	}
}

// CaptureError reports err with a formatted context message. No-op if err is nil.
func CaptureError(err error, format string, args ...any) {
	if err == nil || !enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("log_message", msg)
		sentry.CaptureException(err)
	})
}

// CaptureMessage reports a free-form message at the given level.
func CaptureMessage(level sentry.Level, format string, args ...any) {
	if !enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		sentry.CaptureMessage(msg)
	})
}
