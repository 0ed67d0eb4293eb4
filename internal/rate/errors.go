package rate

import "errors"

var (
	// ErrRateLimited is returned once an account has used up its attempt budget.
	ErrRateLimited = errors.New("too many login attempts")
	// ErrRedisUnavailable wraps counter read or write failures.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)
