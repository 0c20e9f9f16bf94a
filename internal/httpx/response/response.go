// Package response centralizes the JSON envelope used by every API
// endpoint in the router, so error shapes stay consistent.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/veilproxy/veilproxy/internal/logging"
	"github.com/veilproxy/veilproxy/internal/sentryx"
)

var log = logging.Component("httpx")

// JSON writes payload as a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
		sentryx.CaptureError(err, "response.JSON: failed to encode payload")
	}
}

// Error writes the standard { "error": message } envelope, optionally
// annotated with the offending url.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
}

func Error(w http.ResponseWriter, statusCode int, errMsg string) {
	sentryx.CaptureMessage(sentry.LevelWarning, "http_error status=%d message=%s", statusCode, errMsg)
	JSON(w, statusCode, ErrorBody{Error: errMsg})
}

func ErrorWithURL(w http.ResponseWriter, statusCode int, errMsg, url string) {
	sentryx.CaptureMessage(sentry.LevelWarning, "http_error status=%d message=%s url=%s", statusCode, errMsg, url)
	JSON(w, statusCode, ErrorBody{Error: errMsg, URL: url})
}

func BadRequest(w http.ResponseWriter, message string) { Error(w, http.StatusBadRequest, message) }

func NotFound(w http.ResponseWriter, message string) { Error(w, http.StatusNotFound, message) }

func BadGateway(w http.ResponseWriter, message string) { Error(w, http.StatusBadGateway, message) }

func InternalServerError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "Internal Server Error")
}
