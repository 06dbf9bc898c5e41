package routing

import (
	"context"
	"time"

	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/core/reqctx"
	"github.com/vietddude/mcroute/internal/infra/sink"
)

// LoggingRoute forwards requests to its child, then records the key, result
// and reply length to a sink. The reply is returned unmodified.
type LoggingRoute struct {
	child Handle
	sink  sink.Sink
}

// NewLoggingRoute creates a logging decorator. A nil child is allowed and
// resolves to NullRoute when a request arrives.
func NewLoggingRoute(child Handle, s sink.Sink) *LoggingRoute {
	if s == nil {
		s = sink.NewSlogSink(nil)
	}
	return &LoggingRoute{child: child, sink: s}
}

func (r *LoggingRoute) Name() string { return "LoggingRoute" }

func (r *LoggingRoute) target() Handle {
	if r.child == nil {
		return NullRoute
	}
	return r.child
}

func (r *LoggingRoute) CouldRouteTo(domain.Request, domain.Operation) []Handle {
	return []Handle{r.target()}
}

func (r *LoggingRoute) Route(ctx context.Context, req domain.Request, op domain.Operation) domain.Reply {
	reply := r.target().Route(ctx, req, op)

	r.sink.Record(ctx, sink.Entry{
		RequestID: reqctx.ID(ctx),
		Route:     r.target().Name(),
		Key:       req.Key,
		Operation: op.String(),
		Result:    reply.Result.String(),
		Length:    reply.Len(),
		Time:      time.Now(),
	})
	return reply
}
