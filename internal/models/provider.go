package models

import (
	"fmt"
	"strings"
)

// Provider identifies a streaming service that portage can read from or write to.
type Provider string

const (
	ProviderSpotify Provider = "spotify"
	ProviderYTMusic Provider = "ytmusic"
	ProviderTidal   Provider = "tidal"
	ProviderQobuz   Provider = "qobuz"
)

// ParseProvider converts a string into a known [Provider], case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderSpotify:
		return ProviderSpotify, nil
	case ProviderYTMusic:
		return ProviderYTMusic, nil
	case ProviderTidal:
		return ProviderTidal, nil
	case ProviderQobuz:
		return ProviderQobuz, nil
	default:
		return "", fmt.Errorf("unknown provider: %s", s)
	}
}

// IsSource reports whether playlists can be read from this provider.
func (p Provider) IsSource() bool {
	return p == ProviderSpotify
}

// IsTarget reports whether playlists can be written to this provider.
func (p Provider) IsTarget() bool {
	switch p {
	case ProviderYTMusic, ProviderTidal, ProviderQobuz:
		return true
	default:
		return false
	}
}

// String returns the provider's wire name.
func (p Provider) String() string {
	return string(p)
}

// DisplayName returns the provider's human-readable name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderSpotify:
		return "Spotify"
	case ProviderYTMusic:
		return "YouTube Music"
	case ProviderTidal:
		return "TIDAL"
	case ProviderQobuz:
		return "Qobuz"
	default:
		return string(p)
	}
}
