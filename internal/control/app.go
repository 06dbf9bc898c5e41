package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/vietddude/mcroute/internal/core/config"
	"github.com/vietddude/mcroute/internal/infra/backend"
	"github.com/vietddude/mcroute/internal/infra/sink"
	"github.com/vietddude/mcroute/internal/proxy"
	"github.com/vietddude/mcroute/internal/routing"
	"github.com/vietddude/mcroute/internal/server"
)

type pool struct {
	cfg    config.PoolConfig
	client backend.Client
	health *backend.Health
	route  routing.Handle
}

// App is the main application struct that manages the proxy lifecycle.
type App struct {
	mu       sync.Mutex
	cfg      *config.AppConfig
	pools    map[string]*pool
	sinks    []sink.Sink
	sinksCfg config.SinksConfig
	proxy    *proxy.Proxy
	server   *server.Server
	log      *slog.Logger

	retiring sync.WaitGroup
}

// NewApp creates an App with backends, routing tree and debug server built
// from cfg. Nothing is started.
func NewApp(cfg *config.AppConfig) (*App, error) {
	a := &App{
		pools: make(map[string]*pool),
		log:   slog.Default(),
	}

	root, _, err := a.build(cfg)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	a.cfg = cfg
	a.proxy = proxy.New(root, cfg.Proxy.MaxInFlight)
	a.server = server.NewServer(a, cfg.Server.Port)
	return a, nil
}

// Proxy returns the request dispatcher.
func (a *App) Proxy() *proxy.Proxy {
	return a.proxy
}

// Root returns the routing tree serving new requests.
func (a *App) Root() routing.Handle {
	return a.proxy.Root()
}

// Pools returns the TKO state of every configured pool, sorted by name.
func (a *App) Pools() []server.PoolStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]server.PoolStatus, 0, len(a.pools))
	for name, p := range a.pools {
		out = append(out, server.PoolStatus{Name: name, Tko: p.health.IsTko()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start starts the debug server.
func (a *App) Start(_ context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Debug server failed", "error", err)
		}
	}()
	a.log.Info("mcroute started", "port", a.cfg.Server.Port, "pools", len(a.pools))
	return nil
}

// Reload builds a new routing tree from cfg and installs it atomically.
// Pools and sinks whose settings did not change are reused. Resources only
// the previous tree used are closed once its in-flight requests finish.
func (a *App) Reload(cfg *config.AppConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	oldPools, oldSinks := a.pools, a.sinks
	a.pools = make(map[string]*pool, len(cfg.Pools))
	for _, pc := range cfg.Pools {
		if p, ok := oldPools[pc.Name]; ok && p.cfg == pc {
			a.pools[pc.Name] = p
		}
	}

	root, sinksReplaced, err := a.build(cfg)
	if err != nil {
		// Roll back to the pools still serving the current tree.
		for name, p := range a.pools {
			if oldPools[name] != p {
				closeQuietly(p.client)
			}
		}
		a.pools = oldPools
		return fmt.Errorf("reload failed: %w", err)
	}

	var retired []any
	for name, p := range oldPools {
		if a.pools[name] != p {
			retired = append(retired, p.client)
		}
	}
	if sinksReplaced {
		for _, s := range oldSinks {
			retired = append(retired, s)
		}
	}

	drained := a.proxy.Swap(root)
	a.cfg = cfg
	a.log.Info("Configuration reloaded", "pools", len(a.pools), "retired", len(retired))

	a.retiring.Add(1)
	go func() {
		defer a.retiring.Done()
		<-drained
		for _, r := range retired {
			closeQuietly(r)
		}
	}()
	return nil
}

// Stop stops the debug server and closes every backend. Resources of
// replaced trees are closed once their requests finish or ctx ends.
func (a *App) Stop(ctx context.Context) error {
	err := a.server.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.retiring.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("Stopped before replaced routing trees drained")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeAll()
	return err
}

// build creates missing pools, the sinks when their settings changed, then
// the routing tree. sinksReplaced reports whether a.sinks was rebuilt.
func (a *App) build(cfg *config.AppConfig) (root routing.Handle, sinksReplaced bool, err error) {
	for _, pc := range cfg.Pools {
		if _, ok := a.pools[pc.Name]; ok {
			continue
		}
		client, cerr := NewClient(pc)
		if cerr != nil {
			return nil, false, fmt.Errorf("failed to init pool %s: %w", pc.Name, cerr)
		}
		health := backend.NewHealth(pc.Health())
		a.pools[pc.Name] = &pool{
			cfg:    pc,
			client: client,
			health: health,
			route:  routing.NewDestinationRoute(client, pc.Timeout, health),
		}
	}

	sinks := a.sinks
	if sinks == nil || !sameSinks(a.sinksCfg, cfg.Sinks) {
		sinks, err = NewSinks(cfg.Sinks)
		if err != nil {
			return nil, false, err
		}
		sinksReplaced = true
	}

	handles := make(map[string]routing.Handle, len(a.pools))
	for name, p := range a.pools {
		handles[name] = p.route
	}
	factory := routing.NewFactory(handles, sink.Multi(sinks...))
	root, err = factory.Create(cfg.Route)
	if err != nil {
		if sinksReplaced {
			for _, s := range sinks {
				closeQuietly(s)
			}
		}
		return nil, false, fmt.Errorf("failed to build routing tree: %w", err)
	}
	a.sinks, a.sinksCfg = sinks, cfg.Sinks
	return root, sinksReplaced, nil
}

func sameSinks(a, b config.SinksConfig) bool {
	if a.Log != b.Log {
		return false
	}
	if a.RedisStream == nil || b.RedisStream == nil {
		return a.RedisStream == b.RedisStream
	}
	return *a.RedisStream == *b.RedisStream
}

func (a *App) closeAll() {
	for _, p := range a.pools {
		closeQuietly(p.client)
	}
	for _, s := range a.sinks {
		closeQuietly(s)
	}
	a.pools = make(map[string]*pool)
	a.sinks = nil
}

// NewClient creates the backend client for a pool.
func NewClient(pc config.PoolConfig) (backend.Client, error) {
	switch pc.Type {
	case config.PoolRedis:
		return backend.NewRedisClient(pc.Name, pc.Redis())
	case config.PoolMemory, "":
		return backend.NewMemoryClient(pc.Name), nil
	default:
		return nil, fmt.Errorf("unknown pool type %q", pc.Type)
	}
}

// NewSinks creates the configured record sinks. With nothing configured,
// records go to the structured log.
func NewSinks(cfg config.SinksConfig) ([]sink.Sink, error) {
	var sinks []sink.Sink
	if cfg.Log || cfg.RedisStream == nil {
		sinks = append(sinks, sink.NewSlogSink(nil))
	}
	if cfg.RedisStream != nil {
		rs, err := sink.NewRedisStreamSink(*cfg.RedisStream)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis stream sink: %w", err)
		}
		sinks = append(sinks, rs)
	}
	return sinks, nil
}

// BuildRoot builds a standalone routing tree for cfg, for dry-run tooling.
// Backends are created but never contacted.
func BuildRoot(cfg *config.AppConfig) (routing.Handle, func(), error) {
	a := &App{pools: make(map[string]*pool), log: slog.Default()}
	root, _, err := a.build(cfg)
	if err != nil {
		a.closeAll()
		return nil, nil, err
	}
	return root, a.closeAll, nil
}

func closeQuietly(v any) {
	c, ok := v.(interface{ Close() error })
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Warn("Failed to close resource", "error", err)
	}
}
