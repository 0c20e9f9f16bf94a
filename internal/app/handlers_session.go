package app

import (
	"net/http"

	"github.com/veilproxy/veilproxy/internal/httpx/response"
)

type sessionCreateResponse struct {
	SessionID string `json:"sessionId"`
	ExpiresIn int    `json:"expiresIn"`
}

// handleSessionCreate binds (or creates) a session and sets its cookie
// (spec §6: POST /api/session).
func (a *App) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sess, _ := a.bindSession(r)
	a.setSessionCookie(w, sess)
	response.JSON(w, http.StatusOK, sessionCreateResponse{
		SessionID: sess.ID,
		ExpiresIn: a.Config.SessionTTLMinutes * 60,
	})
}

type sessionGetResponse struct {
	HasSession  bool   `json:"hasSession"`
	SessionID   string `json:"sessionId,omitempty"`
	CurrentPage string `json:"currentPage,omitempty"`
}

// handleSessionGet reports the current session's state without creating
// one (spec §6: GET /api/session).
func (a *App) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(a.Config.SessionCookieName)
	if err != nil {
		response.JSON(w, http.StatusOK, sessionGetResponse{HasSession: false})
		return
	}
	sess := a.Sessions.Get(c.Value)
	if sess == nil {
		response.JSON(w, http.StatusOK, sessionGetResponse{HasSession: false})
		return
	}
	response.JSON(w, http.StatusOK, sessionGetResponse{
		HasSession:  true,
		SessionID:   sess.ID,
		CurrentPage: sess.GetCurrentPage(),
	})
}

// handleSessionDelete tears down the session and its cookie jar (spec §6:
// DELETE /api/session).
func (a *App) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(a.Config.SessionCookieName); err == nil {
		a.Sessions.Delete(c.Value)
	}
	a.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
