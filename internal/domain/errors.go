package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidOrder        = errors.New("invalid order parameters")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrZeroFill            = errors.New("order filled zero size")
	ErrDoubleFill          = errors.New("both exit orders filled")
	ErrNoExitBucket        = errors.New("entry price outside configured exit buckets")
	ErrSigningFailed       = errors.New("signing failed")
	ErrWSDisconnect        = errors.New("websocket disconnected")
	ErrFeedDegraded        = errors.New("orderbook feed degraded")
	ErrNoData              = errors.New("no data yet")
	ErrContextDone         = errors.New("context cancelled")
)

// Transient reports whether err is worth retrying: network hiccups, rate
// limits and feed drops pass, everything the venue rejected outright does not.
func Transient(err error) bool {
	switch {
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrWSDisconnect),
		errors.Is(err, ErrNoData):
		return true
	case errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrContextDone):
		return false
	}
	// Unknown errors from the HTTP layer (timeouts, 5xx wraps) default to
	// retryable; the caller's attempt bound keeps this from looping forever.
	return true
}
