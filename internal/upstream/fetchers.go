package upstream

import (
	"context"
	"net/http"
)

// FetchText and FetchBinary are thin wrappers over Fetch sharing the exact
// same contract (spec §4.3): the distinction is purely in how the router
// subsequently treats the returned bytes (rewrite vs. byte-for-byte
// passthrough), not in how the dispatcher retrieves them.
func (d *Dispatcher) FetchText(ctx context.Context, rawURL, method string, incoming http.Header, body []byte, sess SessionIdentity) (*FetchResult, error) {
	return d.Fetch(ctx, rawURL, method, incoming, body, sess)
}

func (d *Dispatcher) FetchBinary(ctx context.Context, rawURL, method string, incoming http.Header, body []byte, sess SessionIdentity) (*FetchResult, error) {
	return d.Fetch(ctx, rawURL, method, incoming, body, sess)
}
