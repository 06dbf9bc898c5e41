package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/mcroute/internal/core/domain"
	"github.com/vietddude/mcroute/internal/infra/sink"
	"github.com/vietddude/mcroute/internal/routing"
	"github.com/vietddude/mcroute/internal/routing/routetest"
)

type staticSource struct {
	root  routing.Handle
	pools []PoolStatus
}

func (s *staticSource) Root() routing.Handle { return s.root }

func (s *staticSource) Pools() []PoolStatus { return s.pools }

func newTestServer() (*Server, *routetest.Handle, *routetest.Handle) {
	s, _, a, b := newTestServerWithSource()
	return s, a, b
}

func newTestServerWithSource() (*Server, *staticSource, *routetest.Handle, *routetest.Handle) {
	a := routetest.NewHandle("Pool|a", domain.ResultFound, "")
	b := routetest.NewHandle("Pool|b", domain.ResultFound, "")
	root := routing.NewFailoverWithExptimeRoute(
		routing.NewLoggingRoute(a, sink.NewBufferSink()),
		[]routing.Handle{b},
		60,
		routing.DefaultFailoverSettings(),
	)
	source := &staticSource{
		root:  root,
		pools: []PoolStatus{{Name: "a"}, {Name: "b"}},
	}
	return NewServer(source, 0), source, a, b
}

func TestHandleRoute(t *testing.T) {
	s, a, b := newTestServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/route?key=user:1&op=get", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Key       string `json:"key"`
		Operation string `json:"operation"`
		Tree      Node   `json:"tree"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "user:1", body.Key)
	assert.Equal(t, "FailoverWithExptimeRoute", body.Tree.Name)
	require.Len(t, body.Tree.Children, 2)
	assert.Equal(t, "LoggingRoute", body.Tree.Children[0].Name)
	assert.Equal(t, "Pool|a", body.Tree.Children[0].Children[0].Name)
	assert.Equal(t, "Pool|b", body.Tree.Children[1].Name)

	// Introspection generates no backend load
	assert.Zero(t, a.Calls())
	assert.Zero(t, b.Calls())
}

func TestHandleRouteArithmetic(t *testing.T) {
	s, _, _ := newTestServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/route?key=n&op=incr", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tree Node `json:"tree"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tree.Children, 1)
	assert.Equal(t, "LoggingRoute", body.Tree.Children[0].Name)
}

func TestHandleRouteBadRequest(t *testing.T) {
	s, _, _ := newTestServer()

	for _, target := range []string{"/route", "/route?key=k&op=frob"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandleHealth(t *testing.T) {
	s, source, _, _ := newTestServerWithSource()

	get := func() (int, map[string]any) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := get()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, body["status"])
	assert.Equal(t, float64(2), body["pools"])
	assert.Equal(t, "FailoverWithExptimeRoute", body["root"])

	source.pools = []PoolStatus{{Name: "a", Tko: true}, {Name: "b"}}
	code, body = get()
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, body["status"])
	assert.Equal(t, []any{"a"}, body["tko"])

	source.pools = []PoolStatus{{Name: "a", Tko: true}, {Name: "b", Tko: true}}
	code, body = get()
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusCritical, body["status"])

	// Pool count follows the source, not a value captured at startup
	source.pools = []PoolStatus{{Name: "a"}}
	_, body = get()
	assert.Equal(t, float64(1), body["pools"])
}
