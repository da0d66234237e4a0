// Package services defines the [Source] and [Target] catalog interfaces and implements them for Spotify, YouTube Music, TIDAL, and Qobuz.
//
// # Adapter Interfaces
//
// [Source] reads playlists out of an origin catalog; [Target] searches a destination catalog and builds playlists there.
// The import pipeline works uniformly against these two interfaces and selects an implementation by the provider tag on the job.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 bearer tokens. A 401 triggers exactly one in-place token refresh;
// the rotated credentials are handed to a [TokenRefreshCallback] so callers can persist them before the request is retried.
//
// # YouTube Music Implementation
//
// [YTMusicService] communicates with the FastAPI proxy server wrapping ytmusicapi.
//
// The proxy handles YouTube Music authentication complexities.
// Credentials travel per request: a server-local file path via X-Auth-File, or the raw browser headers JSON via X-Auth-Headers.
//
// # TIDAL Implementation
//
// [TidalService] uses the v1 API with OAuth2 bearer tokens and the same single-refresh policy as Spotify.
// Playlist mutation requires the playlist's current ETag, so each insert chunk re-reads the playlist first.
//
// # Qobuz Implementation
//
// [QobuzService] authenticates with a long-lived user auth token obtained from user/login.
// The API can report failures as an error envelope inside an HTTP 200; doRequest unwraps those.
//
// # Error Handling
//
// Adapters wrap sentinel errors from the shared package:
//   - [shared.ErrAuthMissing] : credentials absent or Authenticate not called
//   - [shared.ErrAuthInvalid] : auth rejected after the refresh attempt
//   - [shared.ErrSourceNotFound] : source playlist does not exist
//   - [shared.ErrTargetConflict] : insert rejected (409 class), absorbed by split-retry
//   - [shared.ErrSourceTransient], [shared.ErrTargetTransient] : 429/5xx after the retry budget
//
// A shared [RetryTransport] backs every adapter client: exponential backoff starting at 0.5s,
// five total attempts, for 429 and 500-504 only.
//
// # Units
//
// Every Search implementation emits candidate durations in seconds, whatever the upstream exposes,
// so the scorer never has to guess per-candidate.
package services
