package tasks

import (
	"fmt"

	"github.com/desertthunder/portage/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	SearchTracks
	MatchTracks
	CreatePlaylist
	WriteTracks
	Finalize
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case SearchTracks:
		return "search_tracks"
	case MatchTracks:
		return "match_tracks"
	case CreatePlaylist:
		return "create_playlist"
	case WriteTracks:
		return "write_tracks"
	case Finalize:
		return "finalize"
	default:
		return ""
	}
}

func fetchSourceUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching source playlist from %s...", name),
	}
}

func foundPlaylistUpdate(name string, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", name, tracks),
		Data:    name,
	}
}

func searchTracksUpdate(step, total int, tr *models.SourceTrack) ProgressUpdate {
	if tr == nil {
		return ProgressUpdate{
			Phase:   SearchTracks,
			Step:    step,
			Total:   total,
			Message: "Searching for tracks on the target catalog...",
		}
	}
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, tr.PrimaryArtist(), tr.Title),
	}
}

func matchedTrackUpdate(step, total int, title string, status models.ItemStatus) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s → %s", step, total, title, status),
	}
}

func creatingPlaylistUpdate(target string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist on %s...", target),
	}
}

func createPlaylistUpdate(name, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", name, id),
		Data:    id,
	}
}

func writeChunkUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Inserting tracks (%d/%d)...", step, total),
	}
}

func finalizedUpdate(inserted, failed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finalize,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Import finished: %d inserted, %d failed", inserted, failed),
	}
}
