package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/mcroute/internal/core/config"
	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/infra/backend"
	"github.com/vietddude/mcroute/internal/server"
)

func mustParse(t *testing.T, doc string) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	return cfg
}

const failoverConfig = `
server:
  port: 0
pools:
  - name: primary
  - name: backup
route:
  type: LoggingRoute
  target:
    type: FailoverWithExptimeRoute
    normal: primary
    failover: [backup]
    failover_exptime: 30
    settings:
      data_timeout: {gets: true, updates: true}
`

func TestAppFailoverEndToEnd(t *testing.T) {
	app, err := NewApp(mustParse(t, failoverConfig))
	require.NoError(t, err)
	defer app.Stop(context.Background())

	ctx := context.Background()
	primary := app.pools["primary"].client.(*backend.MemoryClient)
	backup := app.pools["backup"].client.(*backend.MemoryClient)

	reply, err := app.Proxy().Dispatch(ctx, domain.NewSetRequest("k", []byte("v"), 0), domain.OpSet)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStored, reply.Result)
	assert.Equal(t, 1, primary.Len())
	assert.Equal(t, 0, backup.Len())

	primary.SetFault(context.DeadlineExceeded)
	reply, err = app.Proxy().Dispatch(ctx, domain.NewSetRequest("k", []byte("w"), 0), domain.OpSet)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultStored, reply.Result)
	assert.Equal(t, 1, backup.Len())

	reply, err = app.Proxy().Dispatch(ctx, domain.NewRequest("k"), domain.OpGet)
	require.NoError(t, err)
	assert.Equal(t, "w", string(reply.Value))

	// Arithmetic stays on the primary even while it is failing
	reply, err = app.Proxy().Dispatch(ctx, domain.Request{Key: "k", Delta: 1}, domain.OpIncr)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTimeout, reply.Result)
}

func TestAppReload(t *testing.T) {
	app, err := NewApp(mustParse(t, failoverConfig))
	require.NoError(t, err)
	defer app.Stop(context.Background())

	primary := app.pools["primary"]

	err = app.Reload(mustParse(t, `
pools:
  - name: primary
  - name: other
route: NullRoute
`))
	require.NoError(t, err)
	assert.Equal(t, "NullRoute", app.Proxy().Root().Name())
	assert.Same(t, primary, app.pools["primary"])
	assert.Contains(t, app.pools, "other")
	assert.NotContains(t, app.pools, "backup")

	// A broken tree leaves the running one in place
	err = app.Reload(mustParse(t, "pools: [{name: primary}]\nroute: missing\n"))
	require.Error(t, err)
	assert.Equal(t, "NullRoute", app.Proxy().Root().Name())
	assert.Contains(t, app.pools, "other")
}

func TestBuildRoot(t *testing.T) {
	root, cleanup, err := BuildRoot(mustParse(t, failoverConfig))
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, "LoggingRoute", root.Name())

	_, _, err = BuildRoot(mustParse(t, "pools: [{name: a}]\nroute: b\n"))
	require.Error(t, err)
}

func TestAppReloadKeepsRetiredPoolsUntilDrained(t *testing.T) {
	app, err := NewApp(mustParse(t, failoverConfig))
	require.NoError(t, err)
	defer app.Stop(context.Background())

	primary := app.pools["primary"].client.(*backend.MemoryClient)
	backup := app.pools["backup"].client.(*backend.MemoryClient)

	oldRoot, release := app.Proxy().Hold()
	require.NoError(t, app.Reload(mustParse(t, "pools: [{name: primary}]\nroute: primary\n")))
	assert.Equal(t, "Pool|primary", app.Root().Name())

	// A request still on the old tree can fail over to the removed pool
	primary.SetFault(context.DeadlineExceeded)
	reply := oldRoot.Route(context.Background(), domain.NewRequest("k"), domain.OpGet)
	assert.Equal(t, domain.ResultNotFound, reply.Result)
	assert.False(t, backup.Closed())

	release()
	require.Eventually(t, backup.Closed, time.Second, 5*time.Millisecond)
	assert.False(t, primary.Closed())
}

func TestAppReloadReusesUnchangedSinks(t *testing.T) {
	app, err := NewApp(mustParse(t, failoverConfig))
	require.NoError(t, err)
	defer app.Stop(context.Background())

	before := app.sinks[0]
	require.NoError(t, app.Reload(mustParse(t, failoverConfig)))
	assert.Same(t, before, app.sinks[0])

	require.NoError(t, app.Reload(mustParse(t, failoverConfig+"sinks: {log: true}\n")))
	assert.NotSame(t, before, app.sinks[0])
}

func TestAppPoolsReportTko(t *testing.T) {
	app, err := NewApp(mustParse(t, `
pools:
  - name: primary
    tko_threshold: 1
  - name: backup
route: primary
`))
	require.NoError(t, err)
	defer app.Stop(context.Background())

	assert.Equal(t, []server.PoolStatus{{Name: "backup"}, {Name: "primary"}}, app.Pools())

	app.pools["primary"].client.(*backend.MemoryClient).SetFault(context.DeadlineExceeded)
	_, err = app.Proxy().Dispatch(context.Background(), domain.NewRequest("k"), domain.OpGet)
	require.NoError(t, err)

	assert.Equal(t, []server.PoolStatus{{Name: "backup"}, {Name: "primary", Tko: true}}, app.Pools())
}
