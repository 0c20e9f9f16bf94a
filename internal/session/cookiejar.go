// Cookie parsing and the per-session cookie jar (spec §3 Cookie Cₖ,
// §4.2 storeCookies/cookiesFor). Domain-match/path-prefix-match logic is
// grounded on the domain-matching algorithm in eientei/cookiejarx's
// jar.go, reimplemented directly because that package's jar.Jar interface
// is keyed for net/http's single global client, not for a dual
// (declared-domain, origin-host) storage split per isolated session.
package session

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Cookie is the tagged record from spec §9 ("re-express dynamic typing in
// the cookie parser as a tagged record with explicit parsing states").
type Cookie struct {
	Name     string
	Value    string
	Domain   string // leading dot preserved or added; empty if unspecified
	Path     string
	Expires  time.Time // zero value means "session cookie, no explicit expiry"
	HasMaxAge bool
	Secure   bool
	HTTPOnly bool
	SameSite string
}

// expired reports whether c has passed its expiry at time now.
func (c Cookie) expired(now time.Time) bool {
	if !c.HasMaxAge && c.Expires.IsZero() {
		return false
	}
	return now.After(c.Expires)
}

// ParseSetCookie parses a single Set-Cookie header value into a Cookie.
// Unparseable input (empty name) returns ok=false.
func ParseSetCookie(line string) (Cookie, bool) {
	// net/http can parse the attributes for us; it is a generic HTTP
	// header parser, not a domain-match cookie jar, so using it here
	// does not duplicate the jar logic below.
	header := http.Header{}
	header.Add("Set-Cookie", line)
	parsed := (&http.Response{Header: header}).Cookies()
	if len(parsed) == 0 {
		return Cookie{}, false
	}
	hc := parsed[0]
	if hc.Name == "" {
		return Cookie{}, false
	}

	c := Cookie{
		Name:     hc.Name,
		Value:    hc.Value,
		Path:     hc.Path,
		Secure:   hc.Secure,
		HTTPOnly: hc.HttpOnly,
	}
	if hc.Path == "" {
		c.Path = "/"
	}
	if hc.Domain != "" {
		c.Domain = normalizeDomain(hc.Domain)
	}
	switch hc.SameSite {
	case http.SameSiteLaxMode:
		c.SameSite = "Lax"
	case http.SameSiteStrictMode:
		c.SameSite = "Strict"
	case http.SameSiteNoneMode:
		c.SameSite = "None"
	}

	// Max-Age overrides Expires per spec §4.2.
	if hc.MaxAge != 0 {
		c.HasMaxAge = true
		c.Expires = time.Now().Add(time.Duration(hc.MaxAge) * time.Second)
	} else if !hc.Expires.IsZero() {
		c.HasMaxAge = true
		c.Expires = hc.Expires
	}

	return c, true
}

// normalizeDomain preserves a leading dot (or adds one) so dot-prefixed
// subdomain matching is uniform, per spec §3.
func normalizeDomain(domain string) string {
	domain = strings.ToLower(domain)
	if !strings.HasPrefix(domain, ".") {
		domain = "." + domain
	}
	return domain
}

// CookieJar stores cookies keyed by the domain they are scoped to. Each
// key maps to a set of cookies by name (last write wins per name).
// A single mutex guards the whole jar: spec §5 requires atomic updates
// per Set-Cookie under a lock that still permits concurrent readers, which
// an RWMutex provides without a read-modify-write guarantee across a full
// request.
type CookieJar struct {
	mu   sync.RWMutex
	byKey map[string]map[string]Cookie // key: domain (dot-prefixed) or exact host
}

func newCookieJar() *CookieJar {
	return &CookieJar{byKey: make(map[string]map[string]Cookie)}
}

// Store records c under both its declared Domain (if any, dot-prefixed)
// and originHost, per spec §4.2.
func (j *CookieJar) Store(originHost string, c Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if c.expired(time.Now()) {
		// Non-positive Max-Age / already-expired: remove on next sweep
		// rather than store; deleting now is equivalent and simpler.
		j.deleteLocked(originHost, c.Name)
		if c.Domain != "" {
			j.deleteLocked(c.Domain, c.Name)
		}
		return
	}

	keys := []string{strings.ToLower(originHost)}
	if c.Domain != "" {
		keys = append(keys, c.Domain)
	}
	for _, key := range keys {
		bucket, ok := j.byKey[key]
		if !ok {
			bucket = make(map[string]Cookie)
			j.byKey[key] = bucket
		}
		bucket[c.Name] = c
	}
}

func (j *CookieJar) deleteLocked(key, name string) {
	if bucket, ok := j.byKey[key]; ok {
		delete(bucket, name)
	}
}

// CookieHeader returns the "name=value; name2=value2" header for a
// request to host/path: every stored cookie whose domain domain-matches
// host (RFC 6265 §5.1.3) and whose path path-matches (RFC 6265 §5.1.4),
// deduplicated by name with the most specific (longest domain) match
// winning, excluding expired cookies.
func (j *CookieJar) CookieHeader(host, path string) string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	host = strings.ToLower(host)
	now := time.Now()

	type candidate struct {
		cookie      Cookie
		specificity int
	}
	best := make(map[string]candidate)

	for key, bucket := range j.byKey {
		if !domainMatches(key, host) {
			continue
		}
		for name, c := range bucket {
			if c.expired(now) {
				continue
			}
			if !pathMatches(c.Path, path) {
				continue
			}
			spec := len(key)
			if cur, ok := best[name]; !ok || spec > cur.specificity {
				best[name] = candidate{cookie: c, specificity: spec}
			}
		}
	}

	if len(best) == 0 {
		return ""
	}

	parts := make([]string, 0, len(best))
	for _, cand := range best {
		parts = append(parts, cand.cookie.Name+"="+cand.cookie.Value)
	}
	return strings.Join(parts, "; ")
}

// domainMatches implements RFC 6265 §5.1.3: key is either an exact host
// (no leading dot, stored under originHost) or a dot-prefixed domain
// (stored from the Set-Cookie Domain attribute). An exact-host key matches
// only that literal host; a dot-prefixed key matches host itself (minus
// the dot) and any subdomain.
func domainMatches(key, host string) bool {
	if !strings.HasPrefix(key, ".") {
		return key == host
	}
	bare := key[1:]
	if host == bare {
		return true
	}
	return strings.HasSuffix(host, key)
}

// pathMatches implements RFC 6265 §5.1.4 path-prefix matching.
func pathMatches(cookiePath, requestPath string) bool {
	if cookiePath == "" || cookiePath == "/" {
		return true
	}
	if requestPath == cookiePath {
		return true
	}
	if strings.HasPrefix(requestPath, cookiePath) {
		if strings.HasSuffix(cookiePath, "/") {
			return true
		}
		if len(requestPath) > len(cookiePath) && requestPath[len(cookiePath)] == '/' {
			return true
		}
	}
	return false
}
