package routing

import (
	"context"

	"github.com/vietddude/mcroute/internal/core/domain"
)

type nullRoute struct{}

// NullRoute is the canonical terminal node. It answers every request with
// domain.NullReply and contacts nothing.
var NullRoute Handle = nullRoute{}

func (nullRoute) Name() string { return "NullRoute" }

func (nullRoute) Route(_ context.Context, _ domain.Request, op domain.Operation) domain.Reply {
	return domain.NullReply(op)
}

func (nullRoute) CouldRouteTo(domain.Request, domain.Operation) []Handle {
	return nil
}

// ErrorRoute answers every request with a local error.
type ErrorRoute struct {
	msg string
}

func NewErrorRoute(msg string) *ErrorRoute {
	if msg == "" {
		msg = "ErrorRoute"
	}
	return &ErrorRoute{msg: msg}
}

func (r *ErrorRoute) Name() string { return "ErrorRoute" }

func (r *ErrorRoute) Route(context.Context, domain.Request, domain.Operation) domain.Reply {
	return domain.NewErrorReply(domain.ResultLocalError, r.msg)
}

func (r *ErrorRoute) CouldRouteTo(domain.Request, domain.Operation) []Handle {
	return nil
}
