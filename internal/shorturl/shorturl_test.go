package shorturl

import (
	"testing"
	"time"
)

func TestShortenDedupesAndLookupRoundTrips(t *testing.T) {
	s := NewStoreWithTTL(time.Hour)
	defer s.Stop()

	u := "https://ads.example.com/very/long/tracking/path?x=1"
	h1 := s.Shorten(u)
	h2 := s.Shorten(u)
	if h1 != h2 {
		t.Fatalf("expected dedupe to return same hash, got %q vs %q", h1, h2)
	}
	if len(h1) != HashLength {
		t.Fatalf("expected hash length %d, got %d (%q)", HashLength, len(h1), h1)
	}

	got, ok := s.Lookup(h1)
	if !ok || got != u {
		t.Fatalf("expected lookup to round-trip, got %q ok=%v", got, ok)
	}
}

func TestLookupMissAndExpiry(t *testing.T) {
	s := NewStoreWithTTL(10 * time.Millisecond)
	defer s.Stop()

	if _, ok := s.Lookup("missing"); ok {
		t.Fatalf("expected miss for unknown hash")
	}

	h := s.Shorten("https://example.com/x")
	time.Sleep(30 * time.Millisecond)
	if _, ok := s.Lookup(h); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestStatsReflectsStoredEntries(t *testing.T) {
	s := NewStoreWithTTL(time.Hour)
	defer s.Stop()

	s.Shorten("https://example.com/a")
	s.Shorten("https://example.com/much/longer/path/than/the/first/one")

	stats := s.Stats()
	if stats.TotalURLs != 2 {
		t.Fatalf("expected 2 urls, got %d", stats.TotalURLs)
	}
	if stats.MaxPathLength < len("https://example.com/much/longer/path/than/the/first/one") {
		t.Fatalf("expected max path length tracked, got %d", stats.MaxPathLength)
	}
	if stats.TTLMinutes != 60 {
		t.Fatalf("expected 60 minute ttl, got %d", stats.TTLMinutes)
	}
}
