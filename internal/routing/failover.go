package routing

import (
	"context"

	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/metrics"
)

// DefaultFailoverExptime is the expiration used for failover attempts when
// a descriptor does not set one.
const DefaultFailoverExptime uint32 = 60

// FailoverWithExptimeRoute sends each request to its normal target. When
// the reply is a transient failure the settings allow to retry, the request
// is sent to each failover target in order, with the expiration replaced by
// failoverExptime, until one answers with a non-retriable result.
type FailoverWithExptimeRoute struct {
	name            string
	normal          Handle
	failover        []Handle
	failoverExptime uint32
	settings        FailoverSettings
}

// NewFailoverWithExptimeRoute creates the route. failover is copied; its
// order is the order targets are tried in.
func NewFailoverWithExptimeRoute(
	normal Handle,
	failover []Handle,
	failoverExptime uint32,
	settings FailoverSettings,
) *FailoverWithExptimeRoute {
	if normal == nil {
		normal = NullRoute
	}
	targets := make([]Handle, 0, len(failover))
	for _, h := range failover {
		if h != nil {
			targets = append(targets, h)
		}
	}
	return &FailoverWithExptimeRoute{
		name:            "FailoverWithExptimeRoute",
		normal:          normal,
		failover:        targets,
		failoverExptime: failoverExptime,
		settings:        settings,
	}
}

// WithName returns r labelled name for metrics and dry-run output. It must
// be called before the route is shared.
func (r *FailoverWithExptimeRoute) WithName(name string) *FailoverWithExptimeRoute {
	if name != "" {
		r.name = name
	}
	return r
}

func (r *FailoverWithExptimeRoute) Name() string { return r.name }

func (r *FailoverWithExptimeRoute) CouldRouteTo(_ domain.Request, op domain.Operation) []Handle {
	if !r.settings.AllowsAny(op) {
		return []Handle{r.normal}
	}
	out := make([]Handle, 0, len(r.failover)+1)
	out = append(out, r.normal)
	return append(out, r.failover...)
}

func (r *FailoverWithExptimeRoute) Route(ctx context.Context, req domain.Request, op domain.Operation) domain.Reply {
	reply := r.normal.Route(ctx, req, op)

	if op.Class() == domain.ClassArithmetic {
		return reply
	}

	fc := domain.ClassifyFailure(reply.Result)
	if fc == domain.FailureOther {
		return reply
	}
	if !r.settings.Allows(fc, op) {
		return reply
	}

	attempt := req.WithExptime(r.failoverExptime)
	for _, target := range r.failover {
		metrics.FailoverAttempts.WithLabelValues(r.name, fc.String()).Inc()

		reply = target.Route(ctx, attempt, op)
		fc = domain.ClassifyFailure(reply.Result)
		if fc == domain.FailureOther {
			metrics.FailoverRecovered.WithLabelValues(r.name).Inc()
			return reply
		}
	}

	if len(r.failover) > 0 {
		metrics.FailoverExhausted.WithLabelValues(r.name).Inc()
	}
	return reply
}
