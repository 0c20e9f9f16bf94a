// Package upstream implements the upstream fetcher (C3, spec §4.3): a
// sticky-per-session SOCKS5 client with timeout, retry/back-off, cookie
// capture, and redirect surfacing. The reverse-proxy shape (shared
// transport, ModifyResponse-style post-processing) is grounded on
// preview-proxy's previewHandler; SOCKS5 dialing is added via
// golang.org/x/net/proxy, which spec §1 treats as an opaque library
// collaborator.
package upstream

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/veilproxy/veilproxy/internal/config"
	"github.com/veilproxy/veilproxy/internal/logging"
	"github.com/veilproxy/veilproxy/internal/sentryx"
	"github.com/veilproxy/veilproxy/internal/session"
)

var log = logging.Component("upstream")

const (
	attemptTimeout  = 30 * time.Second
	maxRetries      = 3
	backoffBase     = 500 * time.Millisecond
	backoffFactor   = 2
	backoffCap      = 5 * time.Second
)

// FetchResult is the dispatcher's response envelope (spec §4.3).
type FetchResult struct {
	Status           int
	Header           http.Header
	Body             []byte
	FinalURL         string
	RedirectLocation string
	IsRedirect       bool
}

// SessionIdentity is the subset of *session.Session the dispatcher needs:
// an id (for sticky SOCKS5 credentials), a current page (for Referer),
// and cookie read/write. Kept as an interface so tests can fake it.
type SessionIdentity interface {
	GetID() string
	GetCurrentPage() string
	CookiesFor(host, path string) string
	StoreCookies(originHost string, setCookieLines []string)
}

// sessionAdapter adapts *session.Session to SessionIdentity.
type sessionAdapter struct{ s *session.Session }

func (a sessionAdapter) GetID() string          { return a.s.ID }
func (a sessionAdapter) GetCurrentPage() string { return a.s.GetCurrentPage() }
func (a sessionAdapter) CookiesFor(host, path string) string {
	return a.s.CookiesFor(host, path)
}
func (a sessionAdapter) StoreCookies(originHost string, lines []string) {
	a.s.StoreCookies(originHost, lines)
}

// Adapt wraps a concrete session for use with Dispatcher.
func Adapt(s *session.Session) SessionIdentity { return sessionAdapter{s: s} }

// Dispatcher executes HTTP requests through the configured upstream.
type Dispatcher struct {
	cfg *config.Config

	mu      sync.Mutex
	clients map[string]*http.Client // keyed by SOCKS5 username A(S)
	direct  *http.Client
}

// NewDispatcher builds a Dispatcher from the resolved configuration.
func NewDispatcher(cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		clients: make(map[string]*http.Client),
		direct: &http.Client{
			Timeout:       attemptTimeout,
			CheckRedirect: neverFollowRedirects,
			Transport:     &http.Transport{TLSClientConfig: &tls.Config{}},
		},
	}
}

func neverFollowRedirects(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// clientFor returns the pooled client for a session's sticky username,
// creating one if necessary. Pooling is keyed by A(S) per spec §5, so
// connections retain their sticky upstream IP.
func (d *Dispatcher) clientFor(sess SessionIdentity) *http.Client {
	if !d.cfg.UseProxy {
		return d.direct
	}

	username := Credentials(d.cfg.ProxyBaseUser, d.cfg.ProxyZone, d.cfg.ProxyRegion, sess.GetID(), d.cfg.ProxySessionTime)

	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[username]; ok {
		return c
	}

	dialer, err := proxy.SOCKS5("tcp", net.JoinHostPort(d.cfg.ProxyHost, d.cfg.ProxyPort), &proxy.Auth{
		User:     username,
		Password: d.cfg.ProxyPassword,
	}, proxy.Direct)
	if err != nil {
		log.Error().Err(err).Msg("failed to build socks5 dialer; falling back to direct")
		return d.direct
	}

	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		log.Warn().Msg("socks5 dialer does not support context; using blocking dial")
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{},
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if ok {
				return contextDialer.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		},
	}

	client := &http.Client{Timeout: attemptTimeout, CheckRedirect: neverFollowRedirects, Transport: transport}
	d.clients[username] = client
	return client
}

// Fetch performs method on rawURL through the upstream, applying spec
// §4.3's header construction, retry/back-off, cookie capture, and
// redirect surfacing.
func (d *Dispatcher) Fetch(ctx context.Context, rawURL, method string, incoming http.Header, body []byte, sess SessionIdentity) (*FetchResult, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	client := d.clientFor(sess)

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, status, err := d.attempt(ctx, client, target, method, incoming, body, sess)
		if err == nil {
			if !isRetryableStatus(status) {
				return result, nil
			}
			lastStatus = status
			if attempt == maxRetries {
				return result, nil // retries exhausted on a retryable status: forward the last response as-is
			}
			continue
		}

		lastErr = err
		if !isRetryableError(err) || attempt == maxRetries {
			sentryx.CaptureError(err, "upstream fetch failed url=%s method=%s", rawURL, method)
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &retryExhaustedError{status: lastStatus}
}

type retryExhaustedError struct{ status int }

func (e *retryExhaustedError) Error() string {
	return "upstream retries exhausted, last status " + strconv.Itoa(e.status)
}

func (d *Dispatcher) attempt(ctx context.Context, client *http.Client, target *url.URL, method string, incoming http.Header, body []byte, sess SessionIdentity) (*FetchResult, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, target.String(), bodyReader)
	if err != nil {
		return nil, 0, err
	}
	applyRequestHeaders(req, target, incoming, sess)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if setCookies, ok := resp.Header["Set-Cookie"]; ok && len(setCookies) > 0 {
		sess.StoreCookies(target.Hostname(), setCookies)
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if loc != "" {
			return &FetchResult{
				Status:           resp.StatusCode,
				Header:           resp.Header,
				FinalURL:         target.String(),
				RedirectLocation: loc,
				IsRedirect:       true,
			}, resp.StatusCode, nil
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}

	decoded, err := decompress(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		decoded = raw // malformed encoding: forward raw bytes rather than fail the whole request
	}

	return &FetchResult{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     decoded,
		FinalURL: target.String(),
	}, resp.StatusCode, nil
}

// applyRequestHeaders builds the outbound header set per spec §4.3: never
// forward Host, Origin, X-Forwarded-For, or the browser's own Referer.
func applyRequestHeaders(req *http.Request, target *url.URL, incoming http.Header, sess SessionIdentity) {
	ua := incoming.Get("X-Original-UA")
	if ua == "" {
		ua = incoming.Get("User-Agent")
	}
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if accept := incoming.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}
	if lang := incoming.Get("Accept-Language"); lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	if page := sess.GetCurrentPage(); page != "" {
		req.Header.Set("Referer", page)
	}

	if cookies := sess.CookiesFor(target.Hostname(), target.Path); cookies != "" {
		req.Header.Set("Cookie", cookies)
	}
}

func decompress(encoding string, raw []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(bytes.NewReader(raw))
		defer r.Close()
		return io.ReadAll(r)
	default:
		return raw, nil
	}
}

func backoff(attempt int) time.Duration {
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= backoffFactor
		if d > backoffCap {
			return backoffCap
		}
	}
	return d
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

var retryableErrorSubstrings = []string{
	"connection reset", "econnreset",
	"i/o timeout", "etimedout",
	"connection refused", "econnrefused",
	"no such host", "enotfound",
	"network is unreachable", "enetunreach",
	"no route to host", "ehostunreach",
	"eai_again", "temporary failure in name resolution",
	"socket hang up",
	"client network socket disconnected",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range retryableErrorSubstrings {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
