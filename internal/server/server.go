package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/routing"
)

// Status values reported by /health.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// PoolStatus is the health of one backend pool.
type PoolStatus struct {
	Name string `json:"name"`
	Tko  bool   `json:"tko"`
}

// StatusSource exposes the running routing tree and its pools.
type StatusSource interface {
	// Root returns the routing tree currently serving requests
	Root() routing.Handle

	// Pools returns the current pools and their TKO state
	Pools() []PoolStatus
}

// Node is one entry of a dry-run routing tree.
type Node struct {
	Name     string  `json:"name"`
	Children []*Node `json:"children,omitempty"`
}

// Server provides HTTP endpoints for health, metrics and route introspection.
type Server struct {
	source StatusSource
	server *http.Server
}

// NewServer creates a new debug server.
func NewServer(source StatusSource, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/route", s.handleRoute)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pools := s.source.Pools()
	tko := make([]string, 0)
	for _, p := range pools {
		if p.Tko {
			tko = append(tko, p.Name)
		}
	}

	// Aggregate status (worst case wins)
	status := StatusHealthy
	switch {
	case len(pools) > 0 && len(tko) == len(pools):
		status = StatusCritical
	case len(tko) > 0:
		status = StatusDegraded
	}

	response := map[string]any{
		"status": status,
		"root":   s.source.Root().Name(),
		"pools":  len(pools),
		"tko":    tko,
	}
	w.Header().Set("Content-Type", "application/json")

	if status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// handleRoute answers which handles a key and operation could reach,
// without sending anything to a backend.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}
	opName := r.URL.Query().Get("op")
	if opName == "" {
		opName = "get"
	}
	op, err := domain.ParseOperation(opName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tree := BuildTree(s.source.Root(), domain.NewRequest(key), op)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"key":       key,
		"operation": op.String(),
		"tree":      tree,
	})
}

// BuildTree renders the handles reachable from root for req and op.
func BuildTree(root routing.Handle, req domain.Request, op domain.Operation) *Node {
	var stack []*Node
	var top *Node
	routing.Traverse(root, req, op, func(depth int, h routing.Handle) {
		n := &Node{Name: h.Name()}
		stack = stack[:depth]
		if depth == 0 {
			top = n
		} else {
			parent := stack[depth-1]
			parent.Children = append(parent.Children, n)
		}
		stack = append(stack, n)
	})
	return top
}
