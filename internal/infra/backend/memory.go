package backend

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/vietddude/mcroute/internal/core/domain"
)

type item struct {
	value     []byte
	flags     uint64
	cas       uint64
	expiresAt time.Time
}

func (it *item) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// MemoryClient is an in-process memcache-compatible store.
type MemoryClient struct {
	name string

	mu      sync.RWMutex
	items   map[string]*item
	nextCas uint64
	fault   error
	closed  bool

	now func() time.Time
}

// NewMemoryClient creates an empty store named name.
func NewMemoryClient(name string) *MemoryClient {
	return &MemoryClient{
		name:  name,
		items: make(map[string]*item),
		now:   time.Now,
	}
}

func (c *MemoryClient) Name() string {
	return c.name
}

// SetFault makes every following Execute fail with err until cleared with nil.
func (c *MemoryClient) SetFault(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fault = err
}

// Len returns the number of stored (possibly expired) items.
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close drops the stored items. Later requests fail with ErrClosed.
func (c *MemoryClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.items = make(map[string]*item)
	return nil
}

// Closed reports whether Close has been called.
func (c *MemoryClient) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *MemoryClient) Execute(
	ctx context.Context,
	req domain.Request,
	op domain.Operation,
) (domain.Reply, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reply{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.Reply{}, ErrClosed
	}
	if c.fault != nil {
		return domain.Reply{}, c.fault
	}

	now := c.now()
	it := c.items[req.Key]
	if it != nil && it.expired(now) {
		delete(c.items, req.Key)
		it = nil
	}

	switch op {
	case domain.OpGet, domain.OpGets, domain.OpMetaget, domain.OpLeaseGet:
		if it == nil {
			return domain.NewReply(domain.ResultNotFound), nil
		}
		return domain.Reply{
			Result: domain.ResultFound,
			Value:  append([]byte(nil), it.value...),
			Flags:  it.flags,
			Cas:    it.cas,
		}, nil

	case domain.OpSet, domain.OpLeaseSet:
		c.store(req, now)
		return domain.NewReply(domain.ResultStored), nil

	case domain.OpAdd:
		if it != nil {
			return domain.NewReply(domain.ResultNotStored), nil
		}
		c.store(req, now)
		return domain.NewReply(domain.ResultStored), nil

	case domain.OpReplace:
		if it == nil {
			return domain.NewReply(domain.ResultNotStored), nil
		}
		c.store(req, now)
		return domain.NewReply(domain.ResultStored), nil

	case domain.OpCas:
		if it == nil {
			return domain.NewReply(domain.ResultNotFound), nil
		}
		if it.cas != req.Cas {
			return domain.NewReply(domain.ResultExists), nil
		}
		c.store(req, now)
		return domain.NewReply(domain.ResultStored), nil

	case domain.OpAppend, domain.OpPrepend:
		if it == nil {
			return domain.NewReply(domain.ResultNotStored), nil
		}
		if op == domain.OpAppend {
			it.value = append(append([]byte(nil), it.value...), req.Value...)
		} else {
			it.value = append(append([]byte(nil), req.Value...), it.value...)
		}
		c.nextCas++
		it.cas = c.nextCas
		return domain.NewReply(domain.ResultStored), nil

	case domain.OpDelete:
		if it == nil {
			return domain.NewReply(domain.ResultNotFound), nil
		}
		delete(c.items, req.Key)
		return domain.NewReply(domain.ResultDeleted), nil

	case domain.OpIncr, domain.OpDecr:
		if it == nil {
			return domain.NewReply(domain.ResultNotFound), nil
		}
		cur, err := strconv.ParseUint(string(it.value), 10, 64)
		if err != nil {
			return domain.NewErrorReply(domain.ResultRemoteError,
				"cannot increment or decrement non-numeric value"), nil
		}
		if op == domain.OpIncr {
			cur += req.Delta
		} else if req.Delta > cur {
			cur = 0
		} else {
			cur -= req.Delta
		}
		it.value = []byte(strconv.FormatUint(cur, 10))
		c.nextCas++
		it.cas = c.nextCas
		return domain.Reply{Result: domain.ResultStored, Delta: cur}, nil

	case domain.OpTouch:
		if it == nil {
			return domain.NewReply(domain.ResultNotFound), nil
		}
		it.expiresAt = expiresAt(req.Exptime, now)
		return domain.NewReply(domain.ResultTouched), nil

	case domain.OpVersion:
		return domain.NewValueReply(domain.ResultOK, []byte("mcroute-memory")), nil

	case domain.OpFlushAll:
		c.items = make(map[string]*item)
		return domain.NewReply(domain.ResultOK), nil

	default:
		return domain.Reply{}, ErrUnsupported
	}
}

func (c *MemoryClient) store(req domain.Request, now time.Time) {
	c.nextCas++
	c.items[req.Key] = &item{
		value:     append([]byte(nil), req.Value...),
		flags:     req.Flags,
		cas:       c.nextCas,
		expiresAt: expiresAt(req.Exptime, now),
	}
}
