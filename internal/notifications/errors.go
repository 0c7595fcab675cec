package notifications

import "errors"

// Repository errors.
var (
	ErrChannelNotFound = errors.New("notification channel not found")
)

// Link token errors, surfaced at the link boundary only; the sweep
// never sees them.
var (
	ErrTokenNotFound = errors.New("link token not found")
	ErrTokenExpired  = errors.New("link token expired")
	ErrTokenConsumed = errors.New("link token already consumed")
)
