package routing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/infra/backend"
	"github.com/vietddude/mcroute/internal/routing"
)

type slowClient struct {
	*backend.MemoryClient
	delay time.Duration
}

func (c *slowClient) Execute(ctx context.Context, req domain.Request, op domain.Operation) (domain.Reply, error) {
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return domain.Reply{}, ctx.Err()
	}
	return c.MemoryClient.Execute(ctx, req, op)
}

func TestDestinationRoute(t *testing.T) {
	client := backend.NewMemoryClient("primary")
	d := routing.NewDestinationRoute(client, time.Second, nil)

	assert.Equal(t, "Pool|primary", d.Name())

	reply := d.Route(context.Background(), domain.NewSetRequest("k", []byte("v"), 0), domain.OpSet)
	assert.Equal(t, domain.ResultStored, reply.Result)

	reply = d.Route(context.Background(), domain.NewRequest("k"), domain.OpGet)
	assert.Equal(t, domain.ResultFound, reply.Result)
	assert.Equal(t, "v", string(reply.Value))
}

func TestDestinationRouteTimeout(t *testing.T) {
	client := &slowClient{MemoryClient: backend.NewMemoryClient("slow"), delay: time.Second}
	d := routing.NewDestinationRoute(client, 10*time.Millisecond, nil)

	reply := d.Route(context.Background(), domain.NewRequest("k"), domain.OpGet)
	assert.Equal(t, domain.ResultTimeout, reply.Result)
}

func TestDestinationRouteTko(t *testing.T) {
	client := backend.NewMemoryClient("flaky")
	client.SetFault(context.DeadlineExceeded)
	health := backend.NewHealth(backend.HealthConfig{Threshold: 2, Cooldown: time.Hour})
	d := routing.NewDestinationRoute(client, 0, health)

	assert.Equal(t, domain.ResultTimeout, d.Route(context.Background(), domain.NewRequest("k"), domain.OpGet).Result)
	assert.Equal(t, domain.ResultTimeout, d.Route(context.Background(), domain.NewRequest("k"), domain.OpGet).Result)

	// Backend is healthy again but the destination stays TKO until cooldown
	client.SetFault(nil)
	assert.Equal(t, domain.ResultTko, d.Route(context.Background(), domain.NewRequest("k"), domain.OpGet).Result)
	assert.True(t, health.IsTko())
}

func TestFailoverOverDestinations(t *testing.T) {
	primary := backend.NewMemoryClient("primary")
	primary.SetFault(context.DeadlineExceeded)
	backup := backend.NewMemoryClient("backup")

	rh := routing.NewFailoverWithExptimeRoute(
		routing.NewDestinationRoute(primary, 0, nil),
		[]routing.Handle{routing.NewDestinationRoute(backup, 0, nil)},
		60,
		routing.FailoverSettings{DataTimeout: routing.OperationSettings{Gets: true, Updates: true}},
	)

	reply := rh.Route(context.Background(), domain.NewSetRequest("k", []byte("v"), 0), domain.OpSet)
	assert.Equal(t, domain.ResultStored, reply.Result)
	assert.Equal(t, 1, backup.Len())

	reply = rh.Route(context.Background(), domain.NewRequest("k"), domain.OpGet)
	assert.Equal(t, domain.ResultFound, reply.Result)
	assert.Equal(t, "v", string(reply.Value))
}
