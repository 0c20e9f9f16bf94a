package session

import (
	"testing"
	"time"
)

func TestCookieRoundTripAndExpiry(t *testing.T) {
	jar := newCookieJar()
	jar.Store("ex.com", mustParse(t, "id=42; Domain=.ex.com; Path=/; Max-Age=60"))

	header := jar.CookieHeader("www.ex.com", "/next")
	if header != "id=42" {
		t.Fatalf("expected cookie to be sent for subdomain, got %q", header)
	}

	// simulate expiry by storing a cookie that already expired
	expired, _ := ParseSetCookie("id=42; Domain=.ex.com; Path=/; Max-Age=60")
	expired.Expires = time.Now().Add(-time.Second)
	expired.HasMaxAge = true
	jar.mu.Lock()
	jar.byKey[".ex.com"]["id"] = expired
	jar.mu.Unlock()

	if header := jar.CookieHeader("www.ex.com", "/next"); header != "" {
		t.Fatalf("expired cookie should not be returned, got %q", header)
	}
}

func TestCookieDomainAndPathScoping(t *testing.T) {
	jar := newCookieJar()
	jar.Store("ex.com", mustParse(t, "a=1; Domain=ex.com; Path=/app"))
	jar.Store("other.com", mustParse(t, "b=2; Path=/"))

	if h := jar.CookieHeader("ex.com", "/app/sub"); h != "a=1" {
		t.Fatalf("path-prefix match failed: %q", h)
	}
	if h := jar.CookieHeader("ex.com", "/other"); h != "" {
		t.Fatalf("cookie leaked outside its path: %q", h)
	}
	if h := jar.CookieHeader("notex.com", "/app"); h != "" {
		t.Fatalf("cookie leaked to unrelated domain: %q", h)
	}
}

func TestCookieMostSpecificWins(t *testing.T) {
	jar := newCookieJar()
	jar.Store("sub.ex.com", mustParse(t, "x=origin; Path=/"))
	jar.Store("ex.com", mustParse(t, "x=domain; Domain=.ex.com; Path=/"))

	h := jar.CookieHeader("sub.ex.com", "/")
	if h != "x=origin" {
		t.Fatalf("expected most specific (exact origin host) key to win, got %q", h)
	}
}

func mustParse(t *testing.T, line string) Cookie {
	t.Helper()
	c, ok := ParseSetCookie(line)
	if !ok {
		t.Fatalf("failed to parse cookie line %q", line)
	}
	return c
}
