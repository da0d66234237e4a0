package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Credential errors
	ErrAuthMissing    = fmt.Errorf("credentials missing for provider")
	ErrAuthInvalid    = fmt.Errorf("authentication rejected")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// Source catalog errors
	ErrSourceNotFound  = fmt.Errorf("source playlist not found")
	ErrSourceTransient = fmt.Errorf("source temporarily unavailable")

	// Target catalog errors
	ErrTargetConflict  = fmt.Errorf("target rejected insert")
	ErrTargetTransient = fmt.Errorf("target temporarily unavailable")
	ErrTargetQuota     = fmt.Errorf("target quota exceeded")

	// Pipeline errors
	ErrMatchExhausted    = fmt.Errorf("no tracks could be matched")
	ErrInvalidTransition = fmt.Errorf("invalid job state transition")
	ErrJobCanceled       = fmt.Errorf("job canceled")

	// Storage errors
	ErrNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidPlaylistURL = fmt.Errorf("invalid playlist URL")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrMissingArgument    = fmt.Errorf("missing required argument")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
)
