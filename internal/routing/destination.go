package routing

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/infra/backend"
	"github.com/vietddude/mcroute/internal/metrics"
)

// DestinationRoute is the terminal node for a backend pool. It bounds each
// request with a timeout and tracks TKO state for the pool.
type DestinationRoute struct {
	client  backend.Client
	timeout time.Duration
	health  *backend.Health
	log     *slog.Logger
}

// NewDestinationRoute creates a destination for client. A zero timeout
// leaves deadlines to the caller's context; a nil health never marks TKO.
func NewDestinationRoute(client backend.Client, timeout time.Duration, health *backend.Health) *DestinationRoute {
	return &DestinationRoute{
		client:  client,
		timeout: timeout,
		health:  health,
		log:     slog.Default().With("pool", client.Name()),
	}
}

func (d *DestinationRoute) Name() string {
	return "Pool|" + d.client.Name()
}

func (d *DestinationRoute) CouldRouteTo(domain.Request, domain.Operation) []Handle {
	return nil
}

func (d *DestinationRoute) Route(ctx context.Context, req domain.Request, op domain.Operation) domain.Reply {
	pool := d.client.Name()

	if !d.health.Allow() {
		metrics.DestinationRequests.WithLabelValues(pool, domain.ResultTko.String()).Inc()
		return domain.NewErrorReply(domain.ResultTko, "destination "+pool+" is TKO")
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := d.client.Execute(ctx, req, op)
	metrics.DestinationLatency.WithLabelValues(pool).Observe(time.Since(start).Seconds())

	if err != nil {
		reply = domain.NewErrorReply(backend.ResultForError(err), err.Error())
		d.log.Debug("Destination request failed", "key", req.Key, "operation", op, "result", reply.Result, "error", err)
	}
	metrics.DestinationRequests.WithLabelValues(pool, reply.Result.String()).Inc()

	becameTko, recovered := d.health.Record(reply.Result)
	if becameTko {
		metrics.DestinationTko.WithLabelValues(pool).Set(1)
		d.log.Warn("Destination marked TKO", "result", reply.Result)
	}
	if recovered {
		metrics.DestinationTko.WithLabelValues(pool).Set(0)
		d.log.Info("Destination recovered from TKO")
	}

	return reply
}
