// Shared HTTP plumbing for catalog adapters: timeouts and retry/backoff.
package services

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// Hard per-call timeouts. Spotify and Qobuz answer quickly; TIDAL's
// chunked playlist writes run longer; the ytmusicapi proxy does a full
// upstream round trip per call.
const (
	spotifyTimeout = 10 * time.Second
	qobuzTimeout   = 10 * time.Second
	tidalTimeout   = 20 * time.Second
	ytmusicTimeout = 30 * time.Second
)

const (
	retryAttempts = 5
	retryFactor   = 500 * time.Millisecond
)

// RetryTransport retries requests that come back 429 or 500-504 with
// exponential backoff (0.5s, 1s, 2s, 4s). Other statuses, including the
// rest of the 4xx range, pass through untouched.
type RetryTransport struct {
	Base http.RoundTripper

	sleep func(time.Duration)
}

// NewRetryTransport wraps base (default [http.DefaultTransport]) with the
// adapter retry policy.
func NewRetryTransport(base http.RoundTripper) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{Base: base, sleep: time.Sleep}
}

// RoundTrip implements [http.RoundTripper].
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := t.Base.RoundTrip(req)
		if err != nil {
			return nil, err
		}

		if attempt >= retryAttempts || !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		// A request body can only be replayed when GetBody is available.
		if req.Body != nil && req.GetBody == nil {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", berr)
			}
			req.Body = body
		}

		if err := req.Context().Err(); err != nil {
			return nil, err
		}

		t.sleep(retryFactor * time.Duration(1<<(attempt-1)))
	}
}

// retryableStatus reports whether the response status falls in the
// retry budget: 429 plus the 500-504 band.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 504)
}

// NewHTTPClient builds an adapter client: the provider's hard request
// timeout plus the shared retry transport.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewRetryTransport(nil),
	}
}
