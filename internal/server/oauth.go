package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// OAuthResult is the outcome of one authorization-code flow: either an
// exchanged token or the error that ended it.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error { return o.err }

// OAuthHandler serves the provider redirect for the connect commands:
// a throwaway localhost server hosts /callback while the browser walks
// the consent flow, and the exchanged token comes back on Result.
// Exactly one callback is honored per handler.
type OAuthHandler struct {
	config     *oauth2.Config
	state      string
	service    string
	resultChan chan OAuthResult

	mu   sync.Mutex
	done bool
	once sync.Once
}

// NewOAuthHandler builds a callback handler. The state token must be
// random per flow; the service name shows on the browser success page.
func NewOAuthHandler(config *oauth2.Config, state, service string) *OAuthHandler {
	return &OAuthHandler{
		config:     config,
		state:      state,
		service:    service,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.done = true
	h.mu.Unlock()

	code, err := h.authCode(r)
	if err != nil {
		h.send(OAuthResult{err: err})
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(context.Background(), code)
	if err != nil {
		h.send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.send(OAuthResult{Token: token})
	h.successPage(w)
}

// authCode validates the state parameter and pulls the authorization
// code out of the callback query.
func (h *OAuthHandler) authCode(r *http.Request) (string, error) {
	query := r.URL.Query()
	if query.Get("state") != h.state {
		return "", fmt.Errorf("invalid state parameter")
	}

	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("authorization failed: %s - %s",
			query.Get("error"), query.Get("error_description"))
	}
	return code, nil
}

// send delivers the result exactly once, then closes the channel.
func (h *OAuthHandler) send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result yields exactly one OAuthResult, then the channel closes.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

func (h *OAuthHandler) successPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s Connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        main { text-align: center; background: white; padding: 2rem;
               border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #2d7d46; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <main>
        <h1>✓ %[1]s Connected</h1>
        <p>You can close this window and return to the terminal.</p>
    </main>
</body>
</html>
`, h.service)
}
