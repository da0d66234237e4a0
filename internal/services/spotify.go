// Spotify API implementation of [Source]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifyPageLimit = 100
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	URI         string `json:"uri"`
}

// Owner holds the owning user of a playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	Tracks      playlistTracksRef `json:"tracks"`
	URI         string            `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is a pointer because local files and removed episodes come back
// as null entries.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks represents one page of playlist entries.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyService implements the [Source] interface for Spotify API interactions.
// Uses [oauth2] for authentication with a single in-place refresh retry on 401.
type SpotifyService struct {
	config         *oauth2.Config
	baseURL        string
	httpClient     *http.Client
	onTokenRefresh TokenRefreshCallback

	mu           sync.Mutex
	token        *oauth2.Token
	refreshToken string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials: %w", shared.ErrAuthMissing)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials: %w", shared.ErrAuthMissing)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"user-read-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		baseURL:    spotifyBaseURL,
		httpClient: NewHTTPClient(spotifyTimeout),
	}, nil
}

// Authenticate stores tokens for subsequent requests. Expects either an
// "access_token" (with optional "refresh_token") or an "auth_code" to
// exchange in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.mu.Lock()
		s.token = &oauth2.Token{AccessToken: accessToken}
		s.refreshToken = credentials["refresh_token"]
		s.mu.Unlock()
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		s.mu.Lock()
		s.token = token
		s.refreshToken = token.RefreshToken
		s.mu.Unlock()
		return nil
	}

	return fmt.Errorf("missing access_token or auth_code in credentials: %w", shared.ErrAuthMissing)
}

// Name returns the service name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the OAuth2 configuration for callback servers that
// exchange the authorization code outside the service.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers a callback invoked with the rotated
// credential bag after every successful refresh.
func (s *SpotifyService) SetTokenRefreshCallback(cb TokenRefreshCallback) {
	s.onTokenRefresh = cb
}

// refresh exchanges the stored refresh token for a fresh access token and
// hands the rotated credentials to the refresh callback.
func (s *SpotifyService) refresh(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.mu.Unlock()

	if refreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	token, err := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	s.mu.Lock()
	s.token = token
	if token.RefreshToken != "" {
		s.refreshToken = token.RefreshToken
	}
	refreshToken = s.refreshToken
	s.mu.Unlock()

	if s.onTokenRefresh != nil {
		s.onTokenRefresh(map[string]string{
			"access_token":  token.AccessToken,
			"refresh_token": refreshToken,
			"expires_at":    token.Expiry.UTC().Format(time.RFC3339),
		})
	}

	return nil
}

// doRequest performs an authenticated GET against the Spotify API,
// refreshing the access token once on a 401 before giving up.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	err := s.doOnce(ctx, endpoint, result)
	if errors.Is(err, shared.ErrAuthInvalid) {
		if rerr := s.refresh(ctx); rerr != nil {
			return rerr
		}
		err = s.doOnce(ctx, endpoint, result)
	}
	return err
}

func (s *SpotifyService) doOnce(ctx context.Context, endpoint string, result any) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == nil {
		return fmt.Errorf("not authenticated: call Authenticate first: %w", shared.ErrAuthMissing)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("spotify API error (status %d): %w", resp.StatusCode, shared.ErrAuthInvalid)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("spotify API error (status %d): %w", resp.StatusCode, shared.ErrSourceNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("spotify API error (status %d): %w", resp.StatusCode, shared.ErrSourceTransient)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("spotify API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlist retrieves a playlist's metadata by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,description,owner,public,tracks.total,uri", url.PathEscape(playlistID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

// PlaylistTracks retrieves one page of a playlist's entries.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) (*SpotifyPaginatedPlaylistTracks, error) {
	if limit <= 0 || limit > spotifyPageLimit {
		limit = spotifyPageLimit
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var page SpotifyPaginatedPlaylistTracks
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// EnumeratePlaylist walks every page of a playlist and returns its tracks
// in playlist order along with the playlist's display name. Null and
// ID-less entries (episodes, local files) are skipped; positions reflect
// the kept tracks.
func (s *SpotifyService) EnumeratePlaylist(ctx context.Context, playlistID string) ([]models.SourceTrack, string, error) {
	playlist, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, "", err
	}

	var tracks []models.SourceTrack
	offset := 0

	for {
		page, err := s.PlaylistTracks(ctx, playlistID, spotifyPageLimit, offset)
		if err != nil {
			return nil, "", err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}

			track := models.SourceTrack{
				SourceID:   item.Track.ID,
				Title:      item.Track.Name,
				Album:      item.Track.Album.Name,
				DurationMS: item.Track.DurationMS,
				ISRC:       item.Track.ExternalIDs.ISRC,
				Position:   len(tracks),
			}
			for _, artist := range item.Track.Artists {
				track.Artists = append(track.Artists, artist.Name)
			}

			tracks = append(tracks, track)
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += spotifyPageLimit
	}

	return tracks, playlist.Name, nil
}
