// Qobuz API implementation of [Target]
//
// The Qobuz JSON API is RPC-styled: every call carries app_id and
// user_auth_token as query parameters, and failures can arrive as an
// error envelope inside an HTTP 200.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

const (
	defaultQobuzBaseURL = "https://www.qobuz.com/api.json/0.2"

	qobuzTracksLimit = 500
)

// QobuzPerformer represents the primary artist of a Qobuz track.
type QobuzPerformer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// QobuzAlbum represents an album in Qobuz responses.
type QobuzAlbum struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// QobuzTrack represents a track in Qobuz responses. Duration is in seconds.
type QobuzTrack struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Version   string         `json:"version"`
	Duration  int            `json:"duration"`
	ISRC      string         `json:"isrc"`
	Performer QobuzPerformer `json:"performer"`
	Album     QobuzAlbum     `json:"album"`
}

// QobuzUser represents the authenticated Qobuz account.
type QobuzUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type qobuzLoginResponse struct {
	UserAuthToken string    `json:"user_auth_token"`
	User          QobuzUser `json:"user"`
}

type qobuzSearchResponse struct {
	Tracks struct {
		Items []QobuzTrack `json:"items"`
	} `json:"tracks"`
}

type qobuzPlaylist struct {
	ID     int64 `json:"id"`
	Tracks struct {
		Items []QobuzTrack `json:"items"`
		Total int          `json:"total"`
	} `json:"tracks"`
}

// QobuzService implements the [Target] interface for Qobuz API interactions.
type QobuzService struct {
	appID      string
	baseURL    string
	httpClient *http.Client

	mu            sync.Mutex
	userAuthToken string
}

// NewQobuzService creates a new Qobuz service. The "app_id" credential is
// required; "base_url" may override the public endpoint.
func NewQobuzService(credentials map[string]string) (*QobuzService, error) {
	appID, ok := credentials["app_id"]
	if !ok || appID == "" {
		return nil, fmt.Errorf("missing app_id in credentials: %w", shared.ErrAuthMissing)
	}

	baseURL, ok := credentials["base_url"]
	if !ok || baseURL == "" {
		baseURL = defaultQobuzBaseURL
	}

	return &QobuzService{
		appID:      appID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: NewHTTPClient(qobuzTimeout),
	}, nil
}

// Authenticate stores the user auth token for subsequent requests.
// Expects either a "user_auth_token" or a "username"/"password" pair to
// log in with.
func (q *QobuzService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if token, ok := credentials["user_auth_token"]; ok && token != "" {
		q.mu.Lock()
		q.userAuthToken = token
		q.mu.Unlock()
		return nil
	}

	username := credentials["username"]
	password := credentials["password"]
	if username != "" && password != "" {
		_, _, err := q.Login(ctx, username, password)
		return err
	}

	return fmt.Errorf("missing user_auth_token or username/password in credentials: %w", shared.ErrAuthMissing)
}

// Name returns the service name.
func (q *QobuzService) Name() string {
	return "Qobuz"
}

// Login exchanges a username and password for a user auth token. The
// token is stored on the service and returned for persistence.
func (q *QobuzService) Login(ctx context.Context, username, password string) (string, *QobuzUser, error) {
	params := url.Values{}
	params.Set("username", username)
	params.Set("password", password)

	var response qobuzLoginResponse
	if err := q.doRequest(ctx, http.MethodPost, "/user/login", params, &response); err != nil {
		return "", nil, err
	}
	if response.UserAuthToken == "" {
		return "", nil, fmt.Errorf("qobuz login returned no auth token: %w", shared.ErrAuthInvalid)
	}

	q.mu.Lock()
	q.userAuthToken = response.UserAuthToken
	q.mu.Unlock()

	return response.UserAuthToken, &response.User, nil
}

// doRequest performs a Qobuz API call. Parameters travel in the query
// string alongside app_id and the stored user_auth_token.
func (q *QobuzService) doRequest(ctx context.Context, method, endpoint string, params url.Values, result any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("app_id", q.appID)

	q.mu.Lock()
	if q.userAuthToken != "" {
		params.Set("user_auth_token", q.userAuthToken)
	}
	q.mu.Unlock()

	apiURL := q.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("qobuz API error (status %d): %w", resp.StatusCode, shared.ErrAuthInvalid)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("qobuz API error (status %d): %w", resp.StatusCode, shared.ErrTargetTransient)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("qobuz API error: status %d", resp.StatusCode)
	}

	// Qobuz reports some failures as an error envelope inside a 200.
	var envelope struct {
		Status  string `json:"status"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status == "error" {
		if envelope.Code == http.StatusUnauthorized || envelope.Code == http.StatusForbidden {
			return fmt.Errorf("qobuz API error: %s: %w", envelope.Message, shared.ErrAuthInvalid)
		}
		return fmt.Errorf("qobuz API error: %s", envelope.Message)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Search queries the Qobuz catalog for tracks. Durations come back in
// seconds and are passed through unchanged.
func (q *QobuzService) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))

	var response qobuzSearchResponse
	if err := q.doRequest(ctx, http.MethodGet, "/track/search", params, &response); err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for _, item := range response.Tracks.Items {
		title := item.Title
		if item.Version != "" {
			title = title + " (" + item.Version + ")"
		}

		candidate := models.Candidate{
			ID:          strconv.FormatInt(item.ID, 10),
			Title:       title,
			Album:       item.Album.Title,
			DurationSec: item.Duration,
			ISRC:        item.ISRC,
		}
		if item.Performer.Name != "" {
			candidate.Artists = []string{item.Performer.Name}
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// CreatePlaylist creates a playlist and returns its numeric ID as a string.
func (q *QobuzService) CreatePlaylist(ctx context.Context, title, description string, privacy models.Privacy) (string, error) {
	params := url.Values{}
	params.Set("name", title)
	params.Set("description", description)
	params.Set("is_collaborative", "0")
	if privacy == models.PrivacyPublic {
		params.Set("is_public", "1")
	} else {
		params.Set("is_public", "0")
	}

	var playlist qobuzPlaylist
	if err := q.doRequest(ctx, http.MethodPost, "/playlist/create", params, &playlist); err != nil {
		return "", err
	}
	if playlist.ID == 0 {
		return "", fmt.Errorf("qobuz create playlist returned no id")
	}

	return strconv.FormatInt(playlist.ID, 10), nil
}

// ExistingItems walks the playlist's track pages and returns the set of
// track IDs currently in it.
func (q *QobuzService) ExistingItems(ctx context.Context, playlistID string) (map[string]struct{}, error) {
	existing := map[string]struct{}{}
	offset := 0

	for {
		params := url.Values{}
		params.Set("playlist_id", playlistID)
		params.Set("extra", "tracks")
		params.Set("limit", strconv.Itoa(qobuzTracksLimit))
		params.Set("offset", strconv.Itoa(offset))

		var playlist qobuzPlaylist
		if err := q.doRequest(ctx, http.MethodGet, "/playlist/get", params, &playlist); err != nil {
			return nil, err
		}

		for _, item := range playlist.Tracks.Items {
			if item.ID != 0 {
				existing[strconv.FormatInt(item.ID, 10)] = struct{}{}
			}
		}

		offset += len(playlist.Tracks.Items)
		if len(playlist.Tracks.Items) == 0 || offset >= playlist.Tracks.Total {
			break
		}
	}

	return existing, nil
}

// AddItems appends track IDs to a playlist in a single comma-joined call.
func (q *QobuzService) AddItems(ctx context.Context, playlistID string, ids []string) error {
	params := url.Values{}
	params.Set("playlist_id", playlistID)
	params.Set("track_ids", strings.Join(ids, ","))
	params.Set("no_duplicate", "true")

	return q.doRequest(ctx, http.MethodPost, "/playlist/addTracks", params, nil)
}
