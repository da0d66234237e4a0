package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/portage/internal/models"
	"github.com/desertthunder/portage/internal/server"
	"github.com/desertthunder/portage/internal/services"
	"github.com/desertthunder/portage/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// oauthTimeout bounds how long a connect command waits for the browser
// authorization to come back.
const oauthTimeout = 5 * time.Minute

// oauthService is the slice of a provider adapter the authorization-code
// flow needs: the consent URL and the config the callback exchanges with.
type oauthService interface {
	GetAuthURL(state string) string
	OAuthConfig() *oauth2.Config
	Name() string
}

// ConnectSpotify runs the Spotify OAuth2 authorization-code flow with a
// temporary localhost callback server and stores the resulting tokens.
func (r *Runner) ConnectSpotify(ctx context.Context, cmd *cli.Command) error {
	svc, err := services.NewSpotifyService(map[string]string{
		"client_id":     r.config.Credentials.Spotify.ClientID,
		"client_secret": r.config.Credentials.Spotify.ClientSecret,
		"redirect_uri":  r.config.Credentials.Spotify.RedirectURI,
	})
	if err != nil {
		return fmt.Errorf("spotify credentials missing from config: %w", err)
	}

	return r.connectOAuth(ctx, models.ProviderSpotify, svc)
}

// ConnectTidal runs the TIDAL OAuth2 authorization-code flow and stores
// the resulting tokens alongside the configured country code.
func (r *Runner) ConnectTidal(ctx context.Context, cmd *cli.Command) error {
	svc, err := services.NewTidalService(map[string]string{
		"client_id":     r.config.Credentials.Tidal.ClientID,
		"client_secret": r.config.Credentials.Tidal.ClientSecret,
		"redirect_uri":  r.config.Credentials.Tidal.RedirectURI,
		"country_code":  r.config.Credentials.Tidal.CountryCode,
	})
	if err != nil {
		return fmt.Errorf("tidal credentials missing from config: %w", err)
	}

	return r.connectOAuth(ctx, models.ProviderTidal, svc)
}

// connectOAuth hosts the provider callback on the redirect URI's address,
// opens the consent page, and persists the exchanged tokens.
func (r *Runner) connectOAuth(ctx context.Context, provider models.Provider, svc oauthService) error {
	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	redirect, err := url.Parse(svc.OAuthConfig().RedirectURL)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: invalid redirect_uri for %s", shared.ErrInvalidConfig, provider)
	}

	state := shared.GenerateID()
	handler := server.NewOAuthHandler(svc.OAuthConfig(), state, svc.Name())

	router := server.NewBasicRouter()
	router.Handler(handler)

	srv := &http.Server{Addr: redirect.Host, Handler: router}
	go srv.ListenAndServe()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := svc.GetAuthURL(state)
	r.writePlain("Opening %s authorization in your browser...\n", svc.Name())
	r.writePlain("If nothing happens, visit:\n%s\n", authURL)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Debug("failed to open browser", "error", err)
	}

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case <-time.After(oauthTimeout):
		return fmt.Errorf("%w: authorization timed out", shared.ErrAuthInvalid)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthInvalid, result.Error())
	}

	credentials := map[string]string{
		"access_token":  result.Token.AccessToken,
		"refresh_token": result.Token.RefreshToken,
	}
	if provider == models.ProviderTidal && r.config.Credentials.Tidal.CountryCode != "" {
		credentials["country_code"] = r.config.Credentials.Tidal.CountryCode
	}

	if _, err := r.connections.Upsert(user.ID(), provider, credentials); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	r.logger.Info("provider connected", "provider", provider)
	return r.writePlain("✓ %s connected\n", svc.Name())
}

// ConnectQobuz exchanges an email/password pair for a Qobuz user auth
// token and stores it.
func (r *Runner) ConnectQobuz(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	svc, err := services.NewQobuzService(map[string]string{
		"app_id":   r.config.Credentials.Qobuz.AppID,
		"base_url": r.config.Credentials.Qobuz.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("qobuz app_id missing from config: %w", err)
	}

	email := cmd.String("email")
	token, account, err := svc.Login(ctx, email, cmd.String("password"))
	if err != nil {
		return fmt.Errorf("qobuz login failed: %w", err)
	}

	credentials := map[string]string{
		"user_auth_token": token,
		"username":        email,
	}
	if _, err := r.connections.Upsert(user.ID(), models.ProviderQobuz, credentials); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	r.logger.Info("provider connected", "provider", models.ProviderQobuz)
	if account != nil {
		return r.writePlain("✓ Qobuz connected as %s\n", account.Login)
	}
	return r.writePlain("✓ Qobuz connected\n")
}

// ConnectYTMusic stores the browser headers the YouTube Music proxy
// authenticates with, parsed from a DevTools "Copy as cURL" command.
func (r *Runner) ConnectYTMusic(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var curlHeaders *shared.CurlHeaders
	var err error
	if curlFile != "" {
		curlHeaders, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		curlHeaders, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	headersRaw := curlHeaders.ToHeadersRaw()
	r.logger.Debug("generated headers_raw", "length", len(headersRaw))

	credentials := map[string]string{"headers_raw": headersRaw}
	if _, err := r.connections.Upsert(user.ID(), models.ProviderYTMusic, credentials); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	// Advisory: confirm the proxy is reachable so a dead proxy surfaces
	// here instead of mid-import.
	proxy := services.NewYTMusicService(r.config.Credentials.YTMusic.ProxyURL)
	if err := proxy.Health(ctx); err != nil {
		r.logger.Warn("proxy not reachable; imports will fail until it is up", "error", err)
	}

	r.logger.Info("provider connected", "provider", models.ProviderYTMusic)
	return r.writePlain("✓ YouTube Music headers stored\n")
}

// ConnectStatus lists which providers have stored credentials.
func (r *Runner) ConnectStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}
	user, err := r.localUser()
	if err != nil {
		return err
	}

	providers := []models.Provider{
		models.ProviderSpotify,
		models.ProviderYTMusic,
		models.ProviderTidal,
		models.ProviderQobuz,
	}
	for _, provider := range providers {
		mark := "✗"
		if _, err := r.connections.GetByUserProvider(user.ID(), provider); err == nil {
			mark = "✓"
		}
		r.writePlain("%s %s\n", mark, provider)
	}
	return nil
}
