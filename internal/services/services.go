// package services defines catalog adapter interfaces for streaming providers
//
// Spotify reads playlists; YouTube Music (via proxy), TIDAL, and Qobuz receive them.
package services

import (
	"context"
	"strings"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

// Source defines the read side of a catalog: enumerating the tracks of a
// playlist the user wants to move somewhere else.
type Source interface {
	// EnumeratePlaylist retrieves the ordered tracks and display name of a playlist.
	// Non-track entries (podcast episodes, local files) are skipped.
	EnumeratePlaylist(ctx context.Context, playlistID string) ([]models.SourceTrack, string, error)

	// Name returns the provider's display name (e.g., "Spotify")
	Name() string
}

// Target defines the write side of a catalog: searching for tracks and
// building up a playlist from the matches.
type Target interface {
	// Search retrieves up to limit candidates for a free-text query, in catalog order.
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)

	// CreatePlaylist creates an empty playlist and returns its provider-native ID.
	CreatePlaylist(ctx context.Context, title, description string, privacy models.Privacy) (string, error)

	// ExistingItems retrieves the set of track IDs currently in the playlist.
	// Callers treat a failure as an empty set; lookups are advisory only.
	ExistingItems(ctx context.Context, playlistID string) (map[string]struct{}, error)

	// AddItems appends track IDs to a playlist in order.
	// A rejected insert surfaces as an error wrapping [shared.ErrTargetConflict].
	AddItems(ctx context.Context, playlistID string, ids []string) error

	// Name returns the provider's display name (e.g., "TIDAL")
	Name() string
}

// TokenRefreshCallback receives the rotated credential bag after a token
// refresh so the caller can persist it before the request is retried.
type TokenRefreshCallback func(credentials map[string]string)

// BuildSearchQuery constructs the free-text query for a source track:
// title followed by the first artist, trimmed.
func BuildSearchQuery(track models.SourceTrack) string {
	return strings.TrimSpace(track.Title + " " + track.PrimaryArtist())
}

// ExtractPlaylistID pulls the playlist ID out of a canonical playlist URL
// of the form .../playlist/<ID>[?query]. Bare IDs with no path or query
// separators pass through unchanged.
func ExtractPlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", shared.ErrInvalidPlaylistURL
	}

	if idx := strings.Index(ref, "/playlist/"); idx >= 0 {
		id := ref[idx+len("/playlist/"):]
		if cut := strings.IndexAny(id, "?/"); cut >= 0 {
			id = id[:cut]
		}
		if id == "" {
			return "", shared.ErrInvalidPlaylistURL
		}
		return id, nil
	}

	if strings.ContainsAny(ref, "/?") {
		return "", shared.ErrInvalidPlaylistURL
	}

	return ref, nil
}
