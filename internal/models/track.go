package models

import "strings"

// SourceTrack is a playlist entry read from the source catalog.
//
// DurationMS and ISRC are best-effort metadata. Either may be absent
// (zero or empty) and scoring degrades gracefully without them.
type SourceTrack struct {
	SourceID   string   `json:"source_id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	DurationMS int      `json:"duration_ms,omitempty"`
	ISRC       string   `json:"isrc,omitempty"`
	Position   int      `json:"position"`
}

// PrimaryArtist returns the first listed artist, or an empty string.
func (t SourceTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Candidate is a track returned by a target catalog search.
//
// ID is the provider-native identifier used for playlist inserts
// (video id, track id, numeric id rendered as a string). DurationSec
// is in seconds because every target catalog reports seconds.
type Candidate struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album,omitempty"`
	DurationSec int      `json:"duration_sec,omitempty"`
	ISRC        string   `json:"isrc,omitempty"`
	Score       float64  `json:"score"`
}

// Privacy controls the visibility of a created playlist.
type Privacy string

const (
	PrivacyPrivate  Privacy = "PRIVATE"
	PrivacyPublic   Privacy = "PUBLIC"
	PrivacyUnlisted Privacy = "UNLISTED"
)

// ParsePrivacy normalizes a privacy string, defaulting to PRIVATE.
func ParsePrivacy(s string) Privacy {
	switch Privacy(strings.ToUpper(strings.TrimSpace(s))) {
	case PrivacyPublic:
		return PrivacyPublic
	case PrivacyUnlisted:
		return PrivacyUnlisted
	default:
		return PrivacyPrivate
	}
}
