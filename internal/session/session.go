// Package session implements the per-browser session store (C2): an
// opaque id bound to a cookie jar, a last-visited page, and a TTL.
// Structure (sweeper goroutine, RWMutex-guarded map) is grounded on
// shell-server-go's internal/session.Store; ids use google/uuid instead
// of hand-rolled hex random bytes.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veilproxy/veilproxy/internal/logging"
)

var log = logging.Component("session")

const sweepInterval = 5 * time.Minute

// Session is the tuple described in spec §3: (id, createdAt, lastAccessAt,
// currentPage, jar).
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastAccessAt time.Time
	CurrentPage  string

	mu  sync.RWMutex
	jar *CookieJar
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastAccessAt: now,
		jar:          newCookieJar(),
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.LastAccessAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) expired(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.LastAccessAt) > ttl
}

// SetCurrentPage records the page the browser last received a successful
// HTML response for, so a later upstream request can present it as
// Referer. Per spec §4.2 this is only called after a successful HTML
// response completes.
func (s *Session) SetCurrentPage(u string) {
	s.mu.Lock()
	s.CurrentPage = u
	s.mu.Unlock()
}

// GetCurrentPage returns the last page set via SetCurrentPage.
func (s *Session) GetCurrentPage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CurrentPage
}

// StoreCookies parses each Set-Cookie header value and stores it under
// both the declared Domain attribute and originHost, per spec §4.2.
func (s *Session) StoreCookies(originHost string, setCookieLines []string) {
	for _, line := range setCookieLines {
		c, ok := ParseSetCookie(line)
		if !ok {
			continue
		}
		s.jar.Store(originHost, c)
	}
}

// CookiesFor returns the deduplicated Cookie header value for a request to
// host/path, per spec §3/§4.2/§8 invariant 8.
func (s *Session) CookiesFor(host, path string) string {
	return s.jar.CookieHeader(host, path)
}

// Store manages sessions keyed by opaque id, with lazy expiry on read and
// a periodic sweeper — mirrors shell-server-go's session.Store shape.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewStore creates a session store with the given TTL and starts its
// background sweeper.
func NewStore(ttl time.Duration) *Store {
	st := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go st.sweepLoop()
	return st
}

func (st *Store) sweepLoop() {
	defer close(st.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			st.sweep()
		case <-st.stop:
			return
		}
	}
}

func (st *Store) sweep() {
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.expired(st.ttl) {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("swept expired sessions")
	}
}

// GetOrCreate returns the non-expired session for id, touching it, or
// creates a fresh session (with a new id) if id is empty, unknown, or
// expired.
func (st *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if s := st.get(id); s != nil {
			s.touch()
			return s
		}
	}
	return st.create()
}

// Get returns the non-expired session for id, or nil. It does not create
// a new session on miss, unlike GetOrCreate.
func (st *Store) Get(id string) *Session {
	s := st.get(id)
	if s != nil {
		s.touch()
	}
	return s
}

func (st *Store) get(id string) *Session {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil
	}
	if s.expired(st.ttl) {
		st.mu.Lock()
		delete(st.sessions, id)
		st.mu.Unlock()
		return nil
	}
	return s
}

func (st *Store) create() *Session {
	id := uuid.NewString()
	s := newSession(id)
	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()
	return s
}

// Delete idempotently removes a session.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Count returns the number of tracked sessions (including any not yet
// swept past TTL).
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Stop halts the sweeper goroutine and waits for it to finish.
func (st *Store) Stop() {
	close(st.stop)
	<-st.done
}
