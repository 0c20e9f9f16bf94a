// Package urlcodec implements the bijective encoding between an absolute
// external URL and an on-origin path token (spec §3, §4.1, C1).
package urlcodec

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ErrMalformedToken is returned by Decode when the input is not a
// well-formed token: invalid base64, invalid UTF-8, or the decoded bytes
// do not form a syntactically valid absolute http(s) URL.
var ErrMalformedToken = errors.New("malformed token")

// Encode returns the URL-safe base64 token for an absolute URL u. Encode
// is total: it never fails, matching the contract in spec §4.1.
func Encode(u string) string {
	std := base64.StdEncoding.EncodeToString([]byte(u))
	replacer := strings.NewReplacer("+", "-", "/", "_")
	return strings.TrimRight(replacer.Replace(std), "=")
}

// Decode reverses Encode. It fails with ErrMalformedToken if the token is
// not valid base64 after repadding, if the decoded bytes are not valid
// UTF-8, or if the result does not parse as an absolute http(s) URL.
func Decode(token string) (string, error) {
	std := strings.NewReplacer("-", "+", "_", "/").Replace(token)
	if pad := len(std) % 4; pad != 0 {
		std += strings.Repeat("=", 4-pad)
	}

	raw, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return "", ErrMalformedToken
	}
	if !utf8.Valid(raw) {
		return "", ErrMalformedToken
	}

	decoded := string(raw)
	parsed, err := url.Parse(decoded)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", ErrMalformedToken
	}

	return decoded, nil
}

// LooksLikeToken is the validity probe from spec §4.1: a cheap shape check
// that tells a token apart from a relative path. It has no caller in the
// Go router; the service worker carries its own, simpler probe. It never
// guarantees Decode will succeed.
func LooksLikeToken(token string) bool {
	if len(token) < 10 {
		return false
	}
	for _, r := range token {
		if !isTokenRune(r) && r != '.' {
			return false
		}
	}

	dot := strings.Contains(token, ".")
	if !dot {
		return true
	}
	// filename-shaped: has a dot, but neither an underscore nor length >= 20
	if strings.Contains(token, "_") || len(token) >= 20 {
		return true
	}
	return false
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	default:
		return false
	}
}

// ResolveURL resolves ref against base, treating a protocol-relative
// "//host/path" reference as "https://host/path" per spec §4.5/§4.6.
func ResolveURL(base *url.URL, ref string) (*url.URL, error) {
	if strings.HasPrefix(ref, "//") {
		ref = "https:" + ref
	}
	parsedRef, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if base == nil {
		if !parsedRef.IsAbs() {
			return nil, errors.New("no base url to resolve relative reference against")
		}
		return parsedRef, nil
	}
	return base.ResolveReference(parsedRef), nil
}

// ProxyPath returns the canonical on-origin path for an absolute URL.
func ProxyPath(u string) string {
	return "/p/" + Encode(u)
}
