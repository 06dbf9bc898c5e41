// Package routing implements the routing tree of the proxy.
//
// This package contains:
//   - Handle: the contract every routing strategy implements
//   - NullRoute, ErrorRoute, DestinationRoute: terminal nodes
//   - LoggingRoute: single-child decorator recording each reply
//   - FailoverWithExptimeRoute: failover with an expiration override
//   - Factory: builds a tree from a route descriptor
//
// A tree is built once and never mutated; handles may be shared by several
// parents and are safe for concurrent use.
package routing

import (
	"context"

	"github.com/vietddude/mcroute/internal/core/domain"
)

// Handle is a node of the routing tree.
type Handle interface {
	// Name identifies the node in dry-run output and metrics
	Name() string

	// Route sends req down the tree and returns exactly one reply. Backend
	// unavailability is reported through the reply's result code.
	Route(ctx context.Context, req domain.Request, op domain.Operation) domain.Reply

	// CouldRouteTo returns the children Route could contact for req and op.
	// It performs no I/O.
	CouldRouteTo(req domain.Request, op domain.Operation) []Handle
}

// Traverse walks every handle req could reach from root, depth first.
// A handle already on the current path is not revisited.
func Traverse(root Handle, req domain.Request, op domain.Operation, visit func(depth int, h Handle)) {
	onPath := make(map[Handle]bool)

	var walk func(h Handle, depth int)
	walk = func(h Handle, depth int) {
		if h == nil || onPath[h] {
			return
		}
		visit(depth, h)

		onPath[h] = true
		for _, child := range h.CouldRouteTo(req, op) {
			walk(child, depth+1)
		}
		delete(onPath, h)
	}
	walk(root, 0)
}

// Destinations returns the distinct terminal handles reachable from root.
func Destinations(root Handle, req domain.Request, op domain.Operation) []Handle {
	seen := make(map[Handle]bool)
	var out []Handle
	Traverse(root, req, op, func(_ int, h Handle) {
		if len(h.CouldRouteTo(req, op)) == 0 && !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	})
	return out
}
