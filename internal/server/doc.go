// Package server provides the HTTP API for the import service plus the
// routing, middleware, and OAuth infrastructure behind it.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Middleware must be registered before routes; handlers registered earlier bypass it,
// which the health endpoint uses to stay outside the session middleware.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with a per-path
// method table, so GET and POST can share a path.
//
// # Tenant Sessions
//
// [TenantMiddleware] resolves the requesting user from an HMAC-signed cookie
// and creates a user row on first visit. Every API handler reads the session
// user from the request context via [UserFrom]; jobs and connections owned by
// another user read as not found.
//
// # API Handlers
//
// [ImportsHandler] owns /api/imports: job creation from a playlist reference,
// owner-scoped listing, the review surface (list uncertain and not-found
// items, apply confirm/reject decisions), the finalize trigger, and the
// completion report.
//
// [ConnectionsHandler] owns /api/connections: the connected-provider map,
// credential upserts, and the Qobuz email/password login.
//
// [HealthHandler] reports liveness and database reachability on /health.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// The connect commands use it for Spotify and TIDAL authorization: a temporary
// HTTP server starts on localhost, handles the callback, and shuts down after
// receiving the token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
