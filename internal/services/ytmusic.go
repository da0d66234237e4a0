// YouTube Music implementation of [Target]
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi
// Python library. Auth travels per request: either a server-local
// credential file path or the raw browser headers JSON captured from a
// YouTube Music session.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

const defaultYTMBaseURL = "http://localhost:8000"

// YTMusicArtist represents an artist in YouTube Music responses.
type YTMusicArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type ytmusicAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YTMusicTrack represents a track/video in YouTube Music responses.
type YTMusicTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YTMusicArtist `json:"artists"`
	Album       *ytmusicAlbum   `json:"album"`
	DurationSec int             `json:"duration_seconds"`
	ISRC        string          `json:"isrc,omitempty"`
	SetVideoID  string          `json:"setVideoId,omitempty"`
}

// YTMusicPlaylist represents a playlist from YouTube Music.
type YTMusicPlaylist struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Privacy     string         `json:"privacy"`
	TrackCount  int            `json:"trackCount"`
	Tracks      []YTMusicTrack `json:"tracks,omitempty"`
}

// YTMusicService implements the [Target] interface for YouTube Music via proxy.
type YTMusicService struct {
	baseURL    string
	authFile   string
	headersRaw string
	httpClient *http.Client
}

// NewYTMusicService creates a new YouTube Music service instance.
func NewYTMusicService(baseURL string) *YTMusicService {
	if baseURL == "" {
		baseURL = defaultYTMBaseURL
	}

	return &YTMusicService{
		baseURL:    baseURL,
		httpClient: NewHTTPClient(ytmusicTimeout),
	}
}

// Name returns the service name.
func (y *YTMusicService) Name() string {
	return "YouTube Music"
}

// Authenticate stores proxy credentials for subsequent requests.
//
// Expects either credentials["auth_file"] with a path the proxy can read,
// or credentials["headers_raw"] with the browser headers JSON itself.
func (y *YTMusicService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if headers, ok := credentials["headers_raw"]; ok && headers != "" {
		y.headersRaw = headers
		return nil
	}

	if authFile, ok := credentials["auth_file"]; ok && authFile != "" {
		y.authFile = authFile
		return nil
	}

	return fmt.Errorf("missing headers_raw or auth_file in credentials: %w", shared.ErrAuthMissing)
}

func (y *YTMusicService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	apiURL := y.baseURL + endpoint

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	if y.headersRaw != "" {
		req.Header.Set("X-Auth-Headers", y.headersRaw)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		detail := ""
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			detail = errResp.Detail
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("youtube music API error (status %d): %s: %w", resp.StatusCode, detail, shared.ErrAuthInvalid)
		case resp.StatusCode == http.StatusConflict:
			return fmt.Errorf("youtube music API error (status %d): %s: %w", resp.StatusCode, detail, shared.ErrTargetConflict)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("youtube music API error (status %d): %s: %w", resp.StatusCode, detail, shared.ErrTargetTransient)
		case detail != "":
			return fmt.Errorf("youtube music API error (status %d): %s", resp.StatusCode, detail)
		default:
			return fmt.Errorf("youtube music API error: status %d", resp.StatusCode)
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Health checks that the proxy is reachable.
//
// Calls GET /health on the proxy.
func (y *YTMusicService) Health(ctx context.Context) error {
	return y.doRequest(ctx, http.MethodGet, "/health", nil, nil)
}

// Search queries YouTube Music for songs.
//
// Calls GET /api/search with filter=songs on the proxy. The proxy
// reports durations in seconds.
func (y *YTMusicService) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	endpoint := fmt.Sprintf("/api/search?q=%s&filter=songs&limit=%d", url.QueryEscape(query), limit)

	var ytTracks []YTMusicTrack
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &ytTracks); err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for _, ytt := range ytTracks {
		if ytt.VideoID == "" {
			continue
		}

		candidate := models.Candidate{
			ID:          ytt.VideoID,
			Title:       ytt.Title,
			DurationSec: ytt.DurationSec,
			ISRC:        ytt.ISRC,
		}
		if ytt.Album != nil {
			candidate.Album = ytt.Album.Name
		}
		for _, artist := range ytt.Artists {
			candidate.Artists = append(candidate.Artists, artist.Name)
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// CreatePlaylist creates a playlist and returns its ID.
//
// Calls POST /api/playlists on the proxy.
func (y *YTMusicService) CreatePlaylist(ctx context.Context, title, description string, privacy models.Privacy) (string, error) {
	body := map[string]string{
		"title":          title,
		"description":    description,
		"privacy_status": string(privacy),
	}

	var response struct {
		PlaylistID string `json:"playlistId"`
	}
	if err := y.doRequest(ctx, http.MethodPost, "/api/playlists", body, &response); err != nil {
		// Playlist creation is the one call YouTube quota-limits per day.
		if strings.Contains(strings.ToLower(err.Error()), "quota") {
			return "", fmt.Errorf("%v: %w", err, shared.ErrTargetQuota)
		}
		return "", err
	}
	if response.PlaylistID == "" {
		return "", fmt.Errorf("youtube music create playlist returned no id")
	}

	return response.PlaylistID, nil
}

// ExistingItems retrieves the set of video IDs currently in the playlist.
//
// Calls GET /api/playlists/{id} on the proxy.
func (y *YTMusicService) ExistingItems(ctx context.Context, playlistID string) (map[string]struct{}, error) {
	endpoint := fmt.Sprintf("/api/playlists/%s", url.PathEscape(playlistID))

	var ytPlaylist YTMusicPlaylist
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &ytPlaylist); err != nil {
		return nil, err
	}

	existing := make(map[string]struct{}, len(ytPlaylist.Tracks))
	for _, ytt := range ytPlaylist.Tracks {
		if ytt.VideoID != "" {
			existing[ytt.VideoID] = struct{}{}
		}
	}

	return existing, nil
}

// AddItems appends video IDs to a playlist.
//
// Calls POST /api/playlists/{id}/items on the proxy. The proxy relays
// ytmusicapi's status string; anything but success is treated as a
// conflict so the caller's split-retry can narrow it down.
func (y *YTMusicService) AddItems(ctx context.Context, playlistID string, ids []string) error {
	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistID))

	body := map[string]any{"video_ids": ids}

	var response struct {
		Status string `json:"status"`
	}
	if err := y.doRequest(ctx, http.MethodPost, endpoint, body, &response); err != nil {
		return err
	}

	if response.Status != "" && response.Status != "STATUS_SUCCEEDED" {
		return fmt.Errorf("youtube music add items status %s: %w", response.Status, shared.ErrTargetConflict)
	}

	return nil
}
