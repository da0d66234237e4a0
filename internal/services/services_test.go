package services

import (
	"errors"
	"testing"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

func TestBuildSearchQuery(t *testing.T) {
	testCases := []struct {
		name  string
		track models.SourceTrack
		want  string
	}{
		{
			name:  "Title And First Artist",
			track: models.SourceTrack{Title: "Hello", Artists: []string{"Adele"}},
			want:  "Hello Adele",
		},
		{
			name:  "Multiple Artists Uses First",
			track: models.SourceTrack{Title: "Telephone", Artists: []string{"Lady Gaga", "Beyoncé"}},
			want:  "Telephone Lady Gaga",
		},
		{
			name:  "No Artists",
			track: models.SourceTrack{Title: "Instrumental"},
			want:  "Instrumental",
		},
		{
			name:  "Empty Track",
			track: models.SourceTrack{},
			want:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildSearchQuery(tc.track); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractPlaylistID(t *testing.T) {
	testCases := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{
			name: "Canonical URL",
			ref:  "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			want: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name: "URL With Query",
			ref:  "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123",
			want: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name: "URL With Trailing Segment",
			ref:  "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M/tracks",
			want: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name: "Bare ID",
			ref:  "37i9dQZF1DXcBWIGoYBM5M",
			want: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name: "Surrounding Whitespace",
			ref:  "  37i9dQZF1DXcBWIGoYBM5M\n",
			want: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:    "Empty",
			ref:     "",
			wantErr: true,
		},
		{
			name:    "URL Without Playlist Path",
			ref:     "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			wantErr: true,
		},
		{
			name:    "Playlist Path With No ID",
			ref:     "https://open.spotify.com/playlist/",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractPlaylistID(tc.ref)

			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got id %q", tc.ref, got)
				}
				if !errors.Is(err, shared.ErrInvalidPlaylistURL) {
					t.Errorf("expected ErrInvalidPlaylistURL, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
