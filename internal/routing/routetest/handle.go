// Package routetest provides recording handles for routing tests.
package routetest

import (
	"context"
	"sync"

	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/routing"
)

// Handle is a terminal route that answers with a fixed reply and records
// every request it receives.
type Handle struct {
	name  string
	reply domain.Reply

	mu       sync.Mutex
	keys     []string
	exptimes []uint32
	ops      []domain.Operation
}

// NewHandle returns a handle answering result with value.
func NewHandle(name string, result domain.Result, value string) *Handle {
	reply := domain.NewReply(result)
	if value != "" {
		reply.Value = []byte(value)
	}
	return &Handle{name: name, reply: reply}
}

func (h *Handle) Name() string { return h.name }

func (h *Handle) Route(_ context.Context, req domain.Request, op domain.Operation) domain.Reply {
	h.mu.Lock()
	h.keys = append(h.keys, req.Key)
	h.exptimes = append(h.exptimes, req.Exptime)
	h.ops = append(h.ops, op)
	h.mu.Unlock()
	return h.reply
}

func (h *Handle) CouldRouteTo(domain.Request, domain.Operation) []routing.Handle {
	return nil
}

// Handles converts test handles to routing handles.
func Handles(hs ...*Handle) []routing.Handle {
	out := make([]routing.Handle, len(hs))
	for i, h := range hs {
		out[i] = h
	}
	return out
}

// Calls returns how many requests the handle received.
func (h *Handle) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.keys)
}

// SawKeys returns the keys received, in order.
func (h *Handle) SawKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.keys...)
}

// SawExptimes returns the expirations received, in order.
func (h *Handle) SawExptimes() []uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]uint32(nil), h.exptimes...)
}

// SawOperations returns the operations received, in order.
func (h *Handle) SawOperations() []domain.Operation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Operation(nil), h.ops...)
}
