// Package shorturl implements the short-URL side table (C10, spec §4.10): a
// TTL-refreshed hash-to-URL map used to keep oversized ad-tracking URLs out
// of /p/<enc> paths. Shaped after internal/session's Store — map + mutex +
// periodic sweeper goroutine — since both are process-lifetime, id-keyed,
// TTL-expiring tables (spec §5's "session store and short-URL table" share
// the same concurrency discipline).
package shorturl

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/veilproxy/veilproxy/internal/logging"
)

var log = logging.Component("shorturl")

const (
	// HashLength is the fixed length of a generated short hash (spec §4.10).
	HashLength    = 12
	defaultTTL    = time.Hour
	sweepInterval = 10 * time.Minute
)

type entry struct {
	url       string
	hash      string
	timestamp time.Time
}

// Store is the in-memory hash<->URL side table.
type Store struct {
	mu       sync.RWMutex
	byHash   map[string]*entry
	byURL    map[string]*entry
	ttl      time.Duration
	maxPath  int
	stop     chan struct{}
	done     chan struct{}
}

// NewStore builds a Store with the default ≈1 hour TTL.
func NewStore() *Store {
	return NewStoreWithTTL(defaultTTL)
}

// NewStoreWithTTL builds a Store with an explicit TTL (used by tests).
func NewStoreWithTTL(ttl time.Duration) *Store {
	s := &Store{
		byHash: make(map[string]*entry),
		byURL:  make(map[string]*entry),
		ttl:    ttl,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *Store) sweepLoop() {
	defer close(s.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, e := range s.byHash {
		if now.Sub(e.timestamp) > s.ttl {
			delete(s.byHash, hash)
			delete(s.byURL, e.url)
		}
	}
}

// Stop halts the sweeper goroutine.
func (s *Store) Stop() {
	close(s.stop)
	<-s.done
}

// Shorten returns the short hash for u, reusing a non-expired existing
// mapping if present (spec §4.10: "dedupes against non-expired entries").
func (s *Store) Shorten(u string) string {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byURL[u]; ok && now.Sub(e.timestamp) <= s.ttl {
		e.timestamp = now
		return e.hash
	}

	hash := hashURL(u)
	if e, ok := s.byHash[hash]; ok && e.url != u {
		log.Warn().Str("hash", hash).Msg("short hash collision, overwriting")
	}

	e := &entry{url: u, hash: hash, timestamp: now}
	if len(u) > s.maxPath {
		s.maxPath = len(u)
	}
	s.byHash[hash] = e
	s.byURL[u] = e
	return hash
}

// Lookup returns the URL for hash, refreshing its timestamp, or ("", false)
// on miss or expiry.
func (s *Store) Lookup(hash string) (string, bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byHash[hash]
	if !ok {
		return "", false
	}
	if now.Sub(e.timestamp) > s.ttl {
		delete(s.byHash, hash)
		delete(s.byURL, e.url)
		return "", false
	}
	e.timestamp = now
	return e.url, true
}

// Stats reports the counters backing GET /api/url-stats (spec §6).
type Stats struct {
	TotalURLs     int
	MaxPathLength int
	TTLMinutes    int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalURLs:     len(s.byHash),
		MaxPathLength: s.maxPath,
		TTLMinutes:    int(s.ttl / time.Minute),
	}
}

func hashURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	encoded := base64.RawURLEncoding.EncodeToString(sum[:])
	encoded = strings.NewReplacer("-", "a", "_", "b").Replace(encoded)
	if len(encoded) > HashLength {
		return encoded[:HashLength]
	}
	return encoded
}
