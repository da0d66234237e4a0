package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

func TestQobuzService(t *testing.T) {
	t.Run("NewQobuzService", func(t *testing.T) {
		t.Run("Missing App ID", func(t *testing.T) {
			_, err := NewQobuzService(map[string]string{})
			if !errors.Is(err, shared.ErrAuthMissing) {
				t.Errorf("expected ErrAuthMissing, got %v", err)
			}
		})

		t.Run("Target Interface", func(t *testing.T) {
			srv, err := NewQobuzService(map[string]string{"app_id": "123456"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Qobuz" {
				t.Errorf("expected service name 'Qobuz', got %s", srv.Name())
			}
			var _ Target = srv
		})
	})

	t.Run("Login", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			query := r.URL.Query()

			switch r.URL.Path {
			case "/user/login":
				if query.Get("app_id") != "123456" {
					t.Errorf("expected app_id on login, got %s", query.Get("app_id"))
				}
				if query.Get("username") != "listener" || query.Get("password") != "hunter2" {
					t.Errorf("unexpected login params: %v", query)
				}
				fmt.Fprint(w, `{"user_auth_token": "qtok", "user": {"id": 7, "login": "listener"}}`)
			case "/track/search":
				if query.Get("user_auth_token") != "qtok" {
					t.Errorf("expected stored auth token on search, got %s", query.Get("user_auth_token"))
				}
				fmt.Fprint(w, `{"tracks": {"items": []}}`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		srv := newTestQobuzService(t, server.URL)

		token, user, err := srv.Login(context.Background(), "listener", "hunter2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "qtok" {
			t.Errorf("expected token 'qtok', got %s", token)
		}
		if user == nil || user.ID != 7 {
			t.Errorf("unexpected user: %+v", user)
		}

		// The stored token rides along on subsequent calls.
		if _, err := srv.Search(context.Background(), "anything", 7); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Error Envelope In 200", func(t *testing.T) {
		t.Run("Generic Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"status": "error", "code": 400, "message": "Invalid parameter track_ids"}`)
			}))
			defer server.Close()

			srv := newTestQobuzService(t, server.URL)

			err := srv.AddItems(context.Background(), "991", []string{"1"})
			if err == nil {
				t.Fatal("expected error from envelope")
			}
			if !strings.Contains(err.Error(), "Invalid parameter track_ids") {
				t.Errorf("expected envelope message in error, got %v", err)
			}
		})

		t.Run("Auth Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"status": "error", "code": 401, "message": "Invalid user auth token"}`)
			}))
			defer server.Close()

			srv := newTestQobuzService(t, server.URL)

			_, err := srv.Search(context.Background(), "anything", 7)
			if !errors.Is(err, shared.ErrAuthInvalid) {
				t.Errorf("expected ErrAuthInvalid, got %v", err)
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/track/search" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if r.URL.Query().Get("limit") != "7" {
				t.Errorf("expected limit=7, got %s", r.URL.Query().Get("limit"))
			}

			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"tracks": {"items": [
				{"id": 52375101, "title": "Hello", "duration": 295, "isrc": "GBBKS1500214",
					"performer": {"id": 9, "name": "Adele"},
					"album": {"id": "a25", "title": "25"}},
				{"id": 52375102, "title": "Hello", "version": "Live", "duration": 310,
					"performer": {"id": 9, "name": "Adele"},
					"album": {"id": "alive", "title": "Live"}}
			]}}`)
		}))
		defer server.Close()

		srv := newTestQobuzService(t, server.URL)

		candidates, err := srv.Search(context.Background(), "Hello Adele", 7)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(candidates) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(candidates))
		}

		if candidates[0].ID != "52375101" {
			t.Errorf("expected numeric ID as string, got %s", candidates[0].ID)
		}
		if candidates[0].Title != "Hello" {
			t.Errorf("expected plain title, got %s", candidates[0].Title)
		}
		if candidates[0].DurationSec != 295 {
			t.Errorf("expected duration in seconds, got %d", candidates[0].DurationSec)
		}
		if len(candidates[0].Artists) != 1 || candidates[0].Artists[0] != "Adele" {
			t.Errorf("expected performer as sole artist, got %v", candidates[0].Artists)
		}

		if candidates[1].Title != "Hello (Live)" {
			t.Errorf("expected version appended to title, got %s", candidates[1].Title)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		var isPublic string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlist/create" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			isPublic = r.URL.Query().Get("is_public")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id": 991}`)
		}))
		defer server.Close()

		srv := newTestQobuzService(t, server.URL)

		id, err := srv.CreatePlaylist(context.Background(), "Road Trip", "imported", models.PrivacyPrivate)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "991" {
			t.Errorf("expected playlist id '991', got %s", id)
		}
		if isPublic != "0" {
			t.Errorf("expected is_public=0 for private playlist, got %s", isPublic)
		}

		if _, err := srv.CreatePlaylist(context.Background(), "Shared", "", models.PrivacyPublic); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if isPublic != "1" {
			t.Errorf("expected is_public=1 for public playlist, got %s", isPublic)
		}
	})

	t.Run("AddItems", func(t *testing.T) {
		var query string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlist/addTracks" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			query = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id": 991}`)
		}))
		defer server.Close()

		srv := newTestQobuzService(t, server.URL)

		if err := srv.AddItems(context.Background(), "991", []string{"1", "2", "3"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.Contains(query, "track_ids=1%2C2%2C3") {
			t.Errorf("expected comma-joined track_ids, got %s", query)
		}
		if !strings.Contains(query, "no_duplicate=true") {
			t.Errorf("expected no_duplicate=true, got %s", query)
		}
		if !strings.Contains(query, "playlist_id=991") {
			t.Errorf("expected playlist_id, got %s", query)
		}
	})

	t.Run("ExistingItems", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlist/get" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if r.URL.Query().Get("extra") != "tracks" {
				t.Errorf("expected extra=tracks, got %s", r.URL.Query().Get("extra"))
			}

			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Query().Get("offset") {
			case "0":
				fmt.Fprint(w, `{"id": 991, "tracks": {"items": [{"id": 1}, {"id": 2}], "total": 2}}`)
			default:
				fmt.Fprint(w, `{"id": 991, "tracks": {"items": [], "total": 2}}`)
			}
		}))
		defer server.Close()

		srv := newTestQobuzService(t, server.URL)

		existing, err := srv.ExistingItems(context.Background(), "991")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(existing) != 2 {
			t.Fatalf("expected 2 existing items, got %d", len(existing))
		}
		for _, id := range []string{"1", "2"} {
			if _, ok := existing[id]; !ok {
				t.Errorf("expected id %s in existing set", id)
			}
		}
	})
}

// newTestQobuzService builds a service pointed at a test server.
func newTestQobuzService(t *testing.T, baseURL string) *QobuzService {
	t.Helper()

	srv, err := NewQobuzService(map[string]string{"app_id": "123456", "base_url": baseURL})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	return srv
}
