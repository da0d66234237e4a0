// TIDAL API implementation of [Target]
//
// Uses the v1 API. Playlist mutation requires the playlist's current
// ETag via If-None-Match, so every insert chunk re-reads the playlist.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
	"golang.org/x/oauth2"
)

const (
	tidalBaseURL  = "https://api.tidal.com/v1"
	tidalAuthURL  = "https://login.tidal.com/authorize"
	tidalTokenURL = "https://auth.tidal.com/v1/oauth2/token"

	tidalAddChunk  = 50
	tidalPageLimit = 100
)

// TidalArtist represents an artist in TIDAL responses.
type TidalArtist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TidalAlbum represents an album in TIDAL responses.
type TidalAlbum struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// TidalTrack represents a track in TIDAL responses. Duration is in seconds.
type TidalTrack struct {
	ID       int           `json:"id"`
	Title    string        `json:"title"`
	Duration int           `json:"duration"`
	ISRC     string        `json:"isrc"`
	Artists  []TidalArtist `json:"artists"`
	Album    TidalAlbum    `json:"album"`
}

// TidalSession identifies the authenticated user.
type TidalSession struct {
	UserID      int    `json:"userId"`
	CountryCode string `json:"countryCode"`
}

// TidalPlaylist represents a playlist; playlists are keyed by UUID.
type TidalPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	NumberOfTracks int    `json:"numberOfTracks"`
}

type tidalSearchResponse struct {
	Tracks struct {
		Items []TidalTrack `json:"items"`
	} `json:"tracks"`
}

type tidalPlaylistItems struct {
	Items []struct {
		Item TidalTrack `json:"item"`
	} `json:"items"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
}

// TidalService implements the [Target] interface for TIDAL API interactions.
type TidalService struct {
	config         *oauth2.Config
	baseURL        string
	httpClient     *http.Client
	onTokenRefresh TokenRefreshCallback

	mu           sync.Mutex
	token        *oauth2.Token
	refreshToken string
	countryCode  string
	userID       int
}

// NewTidalService creates a new TIDAL service with the given OAuth2 credentials.
// The optional "country_code" credential defaults to US.
func NewTidalService(credentials map[string]string) (*TidalService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials: %w", shared.ErrAuthMissing)
	}

	clientSecret := credentials["client_secret"]

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	countryCode, ok := credentials["country_code"]
	if !ok || countryCode == "" {
		countryCode = "US"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"r_usr", "w_usr"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  tidalAuthURL,
			TokenURL: tidalTokenURL,
		},
	}

	return &TidalService{
		config:      config,
		baseURL:     tidalBaseURL,
		httpClient:  NewHTTPClient(tidalTimeout),
		countryCode: countryCode,
	}, nil
}

// Authenticate stores tokens for subsequent requests. Expects either an
// "access_token" (with optional "refresh_token") or an "auth_code" to
// exchange in credentials.
func (t *TidalService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		t.mu.Lock()
		t.token = &oauth2.Token{AccessToken: accessToken}
		t.refreshToken = credentials["refresh_token"]
		t.mu.Unlock()
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := t.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		t.mu.Lock()
		t.token = token
		t.refreshToken = token.RefreshToken
		t.mu.Unlock()
		return nil
	}

	return fmt.Errorf("missing access_token or auth_code in credentials: %w", shared.ErrAuthMissing)
}

// Name returns the service name.
func (t *TidalService) Name() string {
	return "TIDAL"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (t *TidalService) GetAuthURL(state string) string {
	return t.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the OAuth2 configuration for callback servers that
// exchange the authorization code outside the service.
func (t *TidalService) OAuthConfig() *oauth2.Config {
	return t.config
}

// SetTokenRefreshCallback registers a callback invoked with the rotated
// credential bag after every successful refresh.
func (t *TidalService) SetTokenRefreshCallback(cb TokenRefreshCallback) {
	t.onTokenRefresh = cb
}

func (t *TidalService) refresh(ctx context.Context) error {
	t.mu.Lock()
	refreshToken := t.refreshToken
	t.mu.Unlock()

	if refreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	token, err := t.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	t.mu.Lock()
	t.token = token
	if token.RefreshToken != "" {
		t.refreshToken = token.RefreshToken
	}
	refreshToken = t.refreshToken
	t.mu.Unlock()

	if t.onTokenRefresh != nil {
		t.onTokenRefresh(map[string]string{
			"access_token":  token.AccessToken,
			"refresh_token": refreshToken,
			"expires_at":    token.Expiry.UTC().Format(time.RFC3339),
		})
	}

	return nil
}

// doRequest performs an authenticated request against the TIDAL API,
// refreshing the access token once on a 401 before giving up. The
// returned headers carry the ETag needed for playlist mutation.
func (t *TidalService) doRequest(ctx context.Context, method, endpoint string, form url.Values, ifNoneMatch string, result any) (http.Header, error) {
	header, err := t.doOnce(ctx, method, endpoint, form, ifNoneMatch, result)
	if errors.Is(err, shared.ErrAuthInvalid) {
		if rerr := t.refresh(ctx); rerr != nil {
			return nil, rerr
		}
		header, err = t.doOnce(ctx, method, endpoint, form, ifNoneMatch, result)
	}
	return header, err
}

func (t *TidalService) doOnce(ctx context.Context, method, endpoint string, form url.Values, ifNoneMatch string, result any) (http.Header, error) {
	t.mu.Lock()
	token := t.token
	countryCode := t.countryCode
	t.mu.Unlock()

	if token == nil {
		return nil, fmt.Errorf("not authenticated: call Authenticate first: %w", shared.ErrAuthMissing)
	}

	apiURL := t.baseURL + endpoint
	if strings.Contains(apiURL, "?") {
		apiURL += "&countryCode=" + url.QueryEscape(countryCode)
	} else {
		apiURL += "?countryCode=" + url.QueryEscape(countryCode)
	}

	var req *http.Request
	var err error

	if form != nil {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("tidal API error (status %d): %w", resp.StatusCode, shared.ErrAuthInvalid)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed:
		return nil, fmt.Errorf("tidal API error (status %d): %w", resp.StatusCode, shared.ErrTargetConflict)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("tidal API error (status %d): %w", resp.StatusCode, shared.ErrTargetTransient)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("tidal API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.Header, nil
}

// session fetches and caches the authenticated user's session.
func (t *TidalService) session(ctx context.Context) (*TidalSession, error) {
	t.mu.Lock()
	cached := t.userID
	t.mu.Unlock()

	if cached != 0 {
		return &TidalSession{UserID: cached, CountryCode: t.countryCode}, nil
	}

	var session TidalSession
	if _, err := t.doRequest(ctx, http.MethodGet, "/sessions", nil, "", &session); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.userID = session.UserID
	if session.CountryCode != "" {
		t.countryCode = session.CountryCode
	}
	t.mu.Unlock()

	return &session, nil
}

// Search queries the TIDAL catalog for tracks. Durations come back in
// seconds and are passed through unchanged.
func (t *TidalService) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	endpoint := fmt.Sprintf("/search?query=%s&limit=%d&types=TRACKS", url.QueryEscape(query), limit)

	var response tidalSearchResponse
	if _, err := t.doRequest(ctx, http.MethodGet, endpoint, nil, "", &response); err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for _, item := range response.Tracks.Items {
		candidate := models.Candidate{
			ID:          strconv.Itoa(item.ID),
			Title:       item.Title,
			Album:       item.Album.Title,
			DurationSec: item.Duration,
			ISRC:        item.ISRC,
		}
		for _, artist := range item.Artists {
			candidate.Artists = append(candidate.Artists, artist.Name)
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// CreatePlaylist creates a playlist for the authenticated user and
// returns its UUID. TIDAL creates playlists private; visibility is
// managed in the TIDAL app, so privacy is accepted but not forwarded.
func (t *TidalService) CreatePlaylist(ctx context.Context, title, description string, privacy models.Privacy) (string, error) {
	session, err := t.session(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("title", title)
	form.Set("description", description)

	endpoint := fmt.Sprintf("/users/%d/playlists", session.UserID)

	var playlist TidalPlaylist
	if _, err := t.doRequest(ctx, http.MethodPost, endpoint, form, "", &playlist); err != nil {
		return "", err
	}
	if playlist.UUID == "" {
		return "", fmt.Errorf("tidal create playlist returned no uuid")
	}

	return playlist.UUID, nil
}

// ExistingItems walks the playlist's pages and returns the set of track
// IDs currently in it.
func (t *TidalService) ExistingItems(ctx context.Context, playlistID string) (map[string]struct{}, error) {
	existing := map[string]struct{}{}
	offset := 0

	for {
		endpoint := fmt.Sprintf("/playlists/%s/items?limit=%d&offset=%d", url.PathEscape(playlistID), tidalPageLimit, offset)

		var page tidalPlaylistItems
		if _, err := t.doRequest(ctx, http.MethodGet, endpoint, nil, "", &page); err != nil {
			return nil, err
		}

		for _, entry := range page.Items {
			if entry.Item.ID != 0 {
				existing[strconv.Itoa(entry.Item.ID)] = struct{}{}
			}
		}

		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.TotalNumberOfItems {
			break
		}
	}

	return existing, nil
}

// AddItems appends track IDs to a playlist in chunks of at most 50,
// fetching a fresh ETag before each chunk.
func (t *TidalService) AddItems(ctx context.Context, playlistID string, ids []string) error {
	for start := 0; start < len(ids); start += tidalAddChunk {
		end := start + tidalAddChunk
		if end > len(ids) {
			end = len(ids)
		}

		etag, err := t.playlistETag(ctx, playlistID)
		if err != nil {
			return err
		}

		form := url.Values{}
		form.Set("trackIds", strings.Join(ids[start:end], ","))
		form.Set("onArtifactNotFound", "SKIP")
		form.Set("onDupes", "SKIP")

		endpoint := fmt.Sprintf("/playlists/%s/items", url.PathEscape(playlistID))
		if _, err := t.doRequest(ctx, http.MethodPost, endpoint, form, etag, nil); err != nil {
			return err
		}
	}

	return nil
}

// playlistETag reads the playlist's current ETag, required by the items
// endpoint for optimistic concurrency.
func (t *TidalService) playlistETag(ctx context.Context, playlistID string) (string, error) {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))

	var playlist TidalPlaylist
	header, err := t.doRequest(ctx, http.MethodGet, endpoint, nil, "", &playlist)
	if err != nil {
		return "", err
	}

	etag := header.Get("ETag")
	if etag == "" {
		return "", fmt.Errorf("tidal playlist response missing etag")
	}

	return etag, nil
}
