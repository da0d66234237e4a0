// Adapter construction from application config and stored connections.
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/shared"
)

// NewSource builds and authenticates the [Source] adapter for a provider.
// The credential bag comes from the user's stored connection; onRefresh
// receives rotated credentials for persistence.
func NewSource(ctx context.Context, provider models.Provider, config *shared.Config, credentials map[string]string, onRefresh TokenRefreshCallback) (Source, error) {
	switch provider {
	case models.ProviderSpotify:
		svc, err := NewSpotifyService(map[string]string{
			"client_id":     config.Credentials.Spotify.ClientID,
			"client_secret": config.Credentials.Spotify.ClientSecret,
			"redirect_uri":  config.Credentials.Spotify.RedirectURI,
		})
		if err != nil {
			return nil, err
		}
		svc.SetTokenRefreshCallback(onRefresh)
		if err := svc.Authenticate(ctx, credentials); err != nil {
			return nil, err
		}
		return svc, nil
	default:
		return nil, fmt.Errorf("%w: %s cannot read playlists", shared.ErrInvalidArgument, provider)
	}
}

// NewTarget builds and authenticates the [Target] adapter for a provider.
func NewTarget(ctx context.Context, provider models.Provider, config *shared.Config, credentials map[string]string, onRefresh TokenRefreshCallback) (Target, error) {
	switch provider {
	case models.ProviderYTMusic:
		svc := NewYTMusicService(config.Credentials.YTMusic.ProxyURL)
		if len(credentials) == 0 && config.Credentials.YTMusic.HeadersPath != "" {
			credentials = map[string]string{"auth_file": config.Credentials.YTMusic.HeadersPath}
		}
		if err := svc.Authenticate(ctx, credentials); err != nil {
			return nil, err
		}
		return svc, nil

	case models.ProviderTidal:
		countryCode := credentials["country_code"]
		if countryCode == "" {
			countryCode = config.Credentials.Tidal.CountryCode
		}
		svc, err := NewTidalService(map[string]string{
			"client_id":     config.Credentials.Tidal.ClientID,
			"client_secret": config.Credentials.Tidal.ClientSecret,
			"redirect_uri":  config.Credentials.Tidal.RedirectURI,
			"country_code":  countryCode,
		})
		if err != nil {
			return nil, err
		}
		svc.SetTokenRefreshCallback(onRefresh)
		if err := svc.Authenticate(ctx, credentials); err != nil {
			return nil, err
		}
		return svc, nil

	case models.ProviderQobuz:
		svc, err := NewQobuzService(map[string]string{
			"app_id":   config.Credentials.Qobuz.AppID,
			"base_url": config.Credentials.Qobuz.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		if err := svc.Authenticate(ctx, credentials); err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: %s cannot receive playlists", shared.ErrInvalidArgument, provider)
	}
}
