// Package reqctx carries per-request metadata through context.Context so
// routes never rely on ambient state.
package reqctx

import (
	"context"
	"time"
)

type ctxKey struct{}

// Info describes the request being routed.
type Info struct {
	ID        string
	StartedAt time.Time
}

// With returns a copy of ctx carrying info.
func With(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// From returns the request info attached to ctx, if any.
func From(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(ctxKey{}).(Info)
	return info, ok
}

// ID returns the request id attached to ctx or an empty string.
func ID(ctx context.Context) string {
	info, _ := From(ctx)
	return info.ID
}
