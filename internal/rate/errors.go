package rate

import "errors"

var (
	// ErrRateLimited indicates the send budget for the current window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable indicates the throttle backend could not be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
