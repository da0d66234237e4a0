package services

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// roundTripperFunc adapts a function to [http.RoundTripper] for testing.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func stubResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     http.Header{},
	}
}

func TestRetryTransport(t *testing.T) {
	newTransport := func(rt http.RoundTripper) (*RetryTransport, *[]time.Duration) {
		delays := []time.Duration{}
		tr := NewRetryTransport(rt)
		tr.sleep = func(d time.Duration) {
			delays = append(delays, d)
		}
		return tr, &delays
	}

	t.Run("Retries Until Success", func(t *testing.T) {
		statuses := []int{http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusOK}
		attempts := 0

		tr, delays := newTransport(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			resp := stubResponse(statuses[attempts])
			attempts++
			return resp, nil
		}))

		req, _ := http.NewRequest(http.MethodGet, "http://example.com/tracks", nil)
		resp, err := tr.RoundTrip(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected final status 200, got %d", resp.StatusCode)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}

		want := []time.Duration{500 * time.Millisecond, time.Second}
		if len(*delays) != len(want) {
			t.Fatalf("expected %d backoff sleeps, got %d", len(want), len(*delays))
		}
		for i, d := range *delays {
			if d != want[i] {
				t.Errorf("sleep %d: expected %v, got %v", i, want[i], d)
			}
		}
	})

	t.Run("Terminal Status Passes Through", func(t *testing.T) {
		attempts := 0

		tr, delays := newTransport(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			attempts++
			return stubResponse(http.StatusNotFound), nil
		}))

		req, _ := http.NewRequest(http.MethodGet, "http://example.com/tracks", nil)
		resp, err := tr.RoundTrip(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", resp.StatusCode)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", attempts)
		}
		if len(*delays) != 0 {
			t.Errorf("expected no sleeps, got %d", len(*delays))
		}
	})

	t.Run("Gives Up After Attempt Budget", func(t *testing.T) {
		attempts := 0

		tr, delays := newTransport(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			attempts++
			return stubResponse(http.StatusInternalServerError), nil
		}))

		req, _ := http.NewRequest(http.MethodGet, "http://example.com/tracks", nil)
		resp, err := tr.RoundTrip(req)
		if err != nil {
			t.Fatalf("expected exhausted retries to return the response, got error %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", resp.StatusCode)
		}
		if attempts != retryAttempts {
			t.Errorf("expected %d attempts, got %d", retryAttempts, attempts)
		}
		if len(*delays) != retryAttempts-1 {
			t.Errorf("expected %d sleeps, got %d", retryAttempts-1, len(*delays))
		}
	})

	t.Run("Rewinds Request Body Between Attempts", func(t *testing.T) {
		var bodies []string
		attempts := 0

		tr, _ := newTransport(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			data, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(data))
			attempts++
			if attempts == 1 {
				return stubResponse(http.StatusBadGateway), nil
			}
			return stubResponse(http.StatusOK), nil
		}))

		req, _ := http.NewRequest(http.MethodPost, "http://example.com/items", strings.NewReader("trackIds=1,2,3"))
		resp, err := tr.RoundTrip(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer resp.Body.Close()

		if len(bodies) != 2 {
			t.Fatalf("expected 2 attempts, got %d", len(bodies))
		}
		for i, body := range bodies {
			if body != "trackIds=1,2,3" {
				t.Errorf("attempt %d: expected full body, got %q", i, body)
			}
		}
	})

	t.Run("Unreplayable Body Returns First Response", func(t *testing.T) {
		attempts := 0

		tr, _ := newTransport(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			attempts++
			return stubResponse(http.StatusInternalServerError), nil
		}))

		req, _ := http.NewRequest(http.MethodPost, "http://example.com/items", nil)
		req.Body = io.NopCloser(strings.NewReader("one-shot"))
		req.GetBody = nil

		resp, err := tr.RoundTrip(req)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", resp.StatusCode)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt for unreplayable body, got %d", attempts)
		}
	})
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("applies the given timeout", func(t *testing.T) {
		client := NewHTTPClient(tidalTimeout)

		if client.Timeout != tidalTimeout {
			t.Errorf("expected timeout %v, got %v", tidalTimeout, client.Timeout)
		}
		if _, ok := client.Transport.(*RetryTransport); !ok {
			t.Errorf("expected RetryTransport, got %T", client.Transport)
		}
	})

	t.Run("per-provider timeouts", func(t *testing.T) {
		if spotifyTimeout != 10*time.Second || qobuzTimeout != 10*time.Second {
			t.Errorf("spotify/qobuz timeout = %v/%v, want 10s", spotifyTimeout, qobuzTimeout)
		}
		if tidalTimeout != 20*time.Second {
			t.Errorf("tidal timeout = %v, want 20s", tidalTimeout)
		}
		if ytmusicTimeout != 30*time.Second {
			t.Errorf("ytmusic timeout = %v, want 30s", ytmusicTimeout)
		}
	})
}
