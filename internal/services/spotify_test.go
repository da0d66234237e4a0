package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/portage/internal/shared"
)

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://localhost:3000/callback",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv == nil {
				t.Fatal("expected service to be created")
			}

			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			credentials := map[string]string{
				"client_secret": "test_client_secret",
			}

			_, err := NewSpotifyService(credentials)
			if !errors.Is(err, shared.ErrAuthMissing) {
				t.Errorf("expected ErrAuthMissing for missing client_id, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			credentials := map[string]string{
				"client_id": "test_client_id",
			}

			_, err := NewSpotifyService(credentials)
			if !errors.Is(err, shared.ErrAuthMissing) {
				t.Errorf("expected ErrAuthMissing for missing client_secret, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			credentials := map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}

			srv, err := NewSpotifyService(credentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.RedirectURL != "http://127.0.0.1:3000/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		if authURL == "" {
			t.Error("expected auth URL to be generated")
		}

		if !strings.Contains(authURL, "accounts.spotify.com") {
			t.Error("auth URL should contain Spotify domain")
		}
		if !strings.Contains(authURL, "test_client_id") {
			t.Error("auth URL should contain client_id")
		}
		if !strings.Contains(authURL, "test_state") {
			t.Error("auth URL should contain state")
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		t.Run("With Access Token", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{
				"access_token":  "test_access_token",
				"refresh_token": "test_refresh_token",
			})
			if err != nil {
				t.Errorf("expected no error with access token, got %v", err)
			}

			if srv.token == nil {
				t.Fatal("expected token to be set")
			}
			if srv.token.AccessToken != "test_access_token" {
				t.Errorf("expected access token to be 'test_access_token', got %s", srv.token.AccessToken)
			}
			if srv.refreshToken != "test_refresh_token" {
				t.Errorf("expected refresh token to be stored, got %s", srv.refreshToken)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			err := srv.Authenticate(context.Background(), map[string]string{})
			if !errors.Is(err, shared.ErrAuthMissing) {
				t.Errorf("expected ErrAuthMissing, got %v", err)
			}
		})
	})

	t.Run("Source Interface", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		var _ Source = srv
	})

	t.Run("Requires Authentication", func(t *testing.T) {
		srv, err := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		_, _, err = srv.EnumeratePlaylist(context.Background(), "PL123")
		if !errors.Is(err, shared.ErrAuthMissing) {
			t.Errorf("expected ErrAuthMissing before Authenticate, got %v", err)
		}
	})

	t.Run("EnumeratePlaylist", func(t *testing.T) {
		page0 := `{
			"items": [
				{"track": {"id": "t1", "name": "Hello", "duration_ms": 295000,
					"artists": [{"id": "a1", "name": "Adele"}],
					"album": {"id": "al1", "name": "25"},
					"external_ids": {"isrc": "GBBKS1500214"}}},
				{"track": null},
				{"track": {"id": "", "name": "Some Episode"}},
				{"track": {"id": "t2", "name": "Skyfall", "duration_ms": 286000,
					"artists": [{"id": "a1", "name": "Adele"}],
					"album": {"id": "al2", "name": "Skyfall"},
					"external_ids": {}}}
			],
			"total": 3, "limit": 100, "offset": 0,
			"next": "https://api.spotify.com/v1/playlists/PL123/tracks?offset=100"
		}`
		page1 := `{
			"items": [
				{"track": {"id": "t3", "name": "Rolling in the Deep", "duration_ms": 228000,
					"artists": [{"id": "a1", "name": "Adele"}, {"id": "a2", "name": "Paul Epworth"}],
					"album": {"id": "al3", "name": "21"},
					"external_ids": {"isrc": "GBBKS1000335"}}}
			],
			"total": 3, "limit": 100, "offset": 100,
			"next": null
		}`

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			switch {
			case r.URL.Path == "/playlists/PL123/tracks" && r.URL.Query().Get("offset") == "0":
				fmt.Fprint(w, page0)
			case r.URL.Path == "/playlists/PL123/tracks":
				fmt.Fprint(w, page1)
			case r.URL.Path == "/playlists/PL123":
				fmt.Fprint(w, `{"id": "PL123", "name": "Road Trip", "tracks": {"total": 3}}`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		srv := newTestSpotifyService(t, server.URL)

		tracks, name, err := srv.EnumeratePlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if name != "Road Trip" {
			t.Errorf("expected playlist name 'Road Trip', got %s", name)
		}
		if len(tracks) != 3 {
			t.Fatalf("expected 3 tracks after skipping null entries, got %d", len(tracks))
		}

		for i, track := range tracks {
			if track.Position != i {
				t.Errorf("track %d: expected position %d, got %d", i, i, track.Position)
			}
		}

		first := tracks[0]
		if first.SourceID != "t1" || first.Title != "Hello" {
			t.Errorf("unexpected first track: %+v", first)
		}
		if first.DurationMS != 295000 {
			t.Errorf("expected duration 295000ms, got %d", first.DurationMS)
		}
		if first.ISRC != "GBBKS1500214" {
			t.Errorf("expected ISRC to be mapped, got %s", first.ISRC)
		}
		if first.Album != "25" {
			t.Errorf("expected album '25', got %s", first.Album)
		}

		last := tracks[2]
		if last.SourceID != "t3" {
			t.Errorf("expected second page track last, got %s", last.SourceID)
		}
		if len(last.Artists) != 2 || last.Artists[0] != "Adele" {
			t.Errorf("expected both artists in order, got %v", last.Artists)
		}
	})

	t.Run("Playlist Not Found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		srv := newTestSpotifyService(t, server.URL)

		_, _, err := srv.EnumeratePlaylist(context.Background(), "missing")
		if !errors.Is(err, shared.ErrSourceNotFound) {
			t.Errorf("expected ErrSourceNotFound, got %v", err)
		}
	})

	t.Run("Refreshes Token Once On 401", func(t *testing.T) {
		var authHeaders []string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/token" {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token": "fresh", "token_type": "Bearer", "refresh_token": "rotated", "expires_in": 3600}`)
				return
			}

			authHeaders = append(authHeaders, r.Header.Get("Authorization"))
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id": "PL9", "name": "After Refresh", "tracks": {"total": 0}}`)
		}))
		defer server.Close()

		srv := newTestSpotifyService(t, server.URL)
		srv.config.Endpoint.TokenURL = server.URL + "/token"

		if err := srv.Authenticate(context.Background(), map[string]string{
			"access_token":  "stale",
			"refresh_token": "seed",
		}); err != nil {
			t.Fatalf("failed to authenticate: %v", err)
		}

		var rotated map[string]string
		srv.SetTokenRefreshCallback(func(credentials map[string]string) {
			rotated = credentials
		})

		playlist, err := srv.Playlist(context.Background(), "PL9")
		if err != nil {
			t.Fatalf("expected refresh retry to succeed, got %v", err)
		}
		if playlist.Name != "After Refresh" {
			t.Errorf("expected playlist from retried request, got %s", playlist.Name)
		}

		if len(authHeaders) != 2 {
			t.Fatalf("expected exactly 2 playlist requests, got %d", len(authHeaders))
		}
		if authHeaders[0] != "Bearer stale" || authHeaders[1] != "Bearer fresh" {
			t.Errorf("unexpected auth header sequence: %v", authHeaders)
		}

		if rotated == nil {
			t.Fatal("expected refresh callback to receive rotated credentials")
		}
		if rotated["access_token"] != "fresh" {
			t.Errorf("expected rotated access token, got %s", rotated["access_token"])
		}
		if rotated["refresh_token"] != "rotated" {
			t.Errorf("expected rotated refresh token, got %s", rotated["refresh_token"])
		}
		if rotated["expires_at"] == "" {
			t.Error("expected expiry timestamp in rotated credentials")
		}
	})

	t.Run("Refresh Without Refresh Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		srv := newTestSpotifyService(t, server.URL)

		_, err := srv.Playlist(context.Background(), "PL9")
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

// newTestSpotifyService builds an authenticated service pointed at a test server.
func newTestSpotifyService(t *testing.T, baseURL string) *SpotifyService {
	t.Helper()

	srv, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	srv.baseURL = baseURL
	if err := srv.Authenticate(context.Background(), map[string]string{"access_token": "test_token"}); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}

	return srv
}
