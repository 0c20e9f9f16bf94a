// Package ssrf provides the SSRF allow/deny predicate. Spec §1 treats this
// as an opaque collaborator (validate(url) -> ok|reason); this package
// ships a real, minimal default so the router has something to call, kept
// behind a small interface an operator can swap out.
package ssrf

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"
)

// Validator decides whether an outbound request to u is permitted.
// A non-empty reason explains a rejection.
type Validator interface {
	Validate(ctx context.Context, u string) (ok bool, reason string)
}

// DefaultValidator rejects non-http(s) schemes and, after resolving the
// hostname, any loopback/link-local/private/unique-local destination.
type DefaultValidator struct {
	Resolver *net.Resolver
}

// NewDefaultValidator returns a DefaultValidator using net.DefaultResolver.
func NewDefaultValidator() *DefaultValidator {
	return &DefaultValidator{Resolver: net.DefaultResolver}
}

func (v *DefaultValidator) Validate(ctx context.Context, raw string) (bool, string) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false, "unparseable url"
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false, "unsupported scheme: " + parsed.Scheme
	}
	host := parsed.Hostname()
	if host == "" {
		return false, "missing host"
	}
	if strings.EqualFold(host, "localhost") {
		return false, "localhost is not a valid proxy target"
	}

	if ip := net.ParseIP(host); ip != nil {
		if ok, reason := checkIP(ip); !ok {
			return false, reason
		}
		return true, ""
	}

	resolver := v.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ips, err := resolver.LookupIP(ctx, "ip", host)
	if err != nil || len(ips) == 0 {
		return false, "dns resolution failed"
	}
	for _, ip := range ips {
		if ok, reason := checkIP(ip); !ok {
			return false, reason
		}
	}
	return true, ""
}

func checkIP(ip net.IP) (bool, string) {
	switch {
	case ip.IsLoopback():
		return false, "loopback address"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return false, "link-local address"
	case ip.IsPrivate():
		return false, "private address"
	case ip.IsUnspecified():
		return false, "unspecified address"
	case ip.IsMulticast():
		return false, "multicast address"
	}
	return true, ""
}
