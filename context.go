package goCampus

import (
	"context"

	"github.com/MrEthical07/goCampus/api"
)

// WithRequestID pins the X-Request-Id sent by every call made with ctx, so that a
// multi-call UI action can be traced as one unit on the backend. Without it each call
// gets a fresh UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return api.WithRequestID(ctx, id)
}
