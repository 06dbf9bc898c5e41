// Package proxy admits requests and runs them through the current routing
// tree.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/core/reqctx"
	"github.com/vietddude/mcroute/internal/metrics"
	"github.com/vietddude/mcroute/internal/routing"
)

// DefaultMaxInFlight bounds concurrently routed requests when no limit is
// configured.
const DefaultMaxInFlight = 1024

// Call is one request for DispatchAll.
type Call struct {
	Request   domain.Request
	Operation domain.Operation
}

// tree is one installed routing root and the requests still running on it.
type tree struct {
	root routing.Handle

	mu      sync.Mutex
	active  int
	retired bool
	drained chan struct{}
}

func newTree(root routing.Handle) *tree {
	return &tree{root: root, drained: make(chan struct{})}
}

// acquire registers a request on t. It fails once t has been retired and
// drained, so the caller must load the current tree again.
func (t *tree) acquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.retired && t.active == 0 {
		return false
	}
	t.active++
	return true
}

func (t *tree) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active--
	if t.retired && t.active == 0 {
		close(t.drained)
	}
}

func (t *tree) retire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retired = true
	if t.active == 0 {
		close(t.drained)
	}
}

// Proxy routes requests through an immutable tree that can be replaced
// atomically. Requests already in flight finish on the tree they started on.
type Proxy struct {
	current     atomic.Pointer[tree]
	sem         *semaphore.Weighted
	maxInFlight int64
	log         *slog.Logger
}

// New creates a proxy serving root.
func New(root routing.Handle, maxInFlight int64) *Proxy {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	p := &Proxy{
		sem:         semaphore.NewWeighted(maxInFlight),
		maxInFlight: maxInFlight,
		log:         slog.Default().With("component", "proxy"),
	}
	p.Swap(root)
	return p
}

// Root returns the tree currently serving new requests.
func (p *Proxy) Root() routing.Handle {
	return p.current.Load().root
}

// Swap installs root for every request admitted after the call. The
// returned channel is closed once no request is left on the previous root,
// after which its resources may be released.
func (p *Proxy) Swap(root routing.Handle) <-chan struct{} {
	if root == nil {
		root = routing.NullRoute
	}
	old := p.current.Swap(newTree(root))
	p.log.Info("Routing tree installed", "root", root.Name())

	if old == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	old.retire()
	return old.drained
}

// Hold pins the current root until release is called. Every request routed
// through the returned handle counts as in flight on that root.
func (p *Proxy) Hold() (root routing.Handle, release func()) {
	t := p.hold()
	var once sync.Once
	return t.root, func() { once.Do(t.release) }
}

func (p *Proxy) hold() *tree {
	for {
		t := p.current.Load()
		if t.acquire() {
			return t
		}
	}
}

// Dispatch routes one request. The only error is a context ending before
// the request was admitted; backend failures are in the reply.
func (p *Proxy) Dispatch(ctx context.Context, req domain.Request, op domain.Operation) (domain.Reply, error) {
	t := p.hold()
	defer t.release()
	return p.dispatch(ctx, t.root, req, op)
}

func (p *Proxy) dispatch(
	ctx context.Context,
	root routing.Handle,
	req domain.Request,
	op domain.Operation,
) (domain.Reply, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return domain.Reply{}, fmt.Errorf("request not admitted: %w", err)
	}
	defer p.sem.Release(1)

	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	info, ok := reqctx.From(ctx)
	if !ok {
		info = reqctx.Info{ID: uuid.NewString()}
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now()
	}
	ctx = reqctx.With(ctx, info)

	reply := root.Route(ctx, req, op)

	metrics.RequestsTotal.WithLabelValues(op.String(), reply.Result.String()).Inc()
	metrics.RequestLatency.WithLabelValues(op.String()).Observe(time.Since(info.StartedAt).Seconds())
	return reply, nil
}

// DispatchAll routes every call on its own goroutine and returns the
// replies in call order. The whole batch runs on one root.
func (p *Proxy) DispatchAll(ctx context.Context, calls []Call) ([]domain.Reply, error) {
	t := p.hold()
	defer t.release()

	replies := make([]domain.Reply, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(p.maxInFlight))
	for i, c := range calls {
		g.Go(func() error {
			reply, err := p.dispatch(gctx, t.root, c.Request, c.Operation)
			if err != nil {
				return err
			}
			replies[i] = reply
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return replies, nil
}
