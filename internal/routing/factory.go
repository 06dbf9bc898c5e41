package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/vietddude/mcroute/internal/infra/sink"
)

// ErrMissingField is wrapped by BuildError when a required descriptor
// field is absent.
var ErrMissingField = errors.New("missing required field")

// BuildError reports an invalid route descriptor.
type BuildError struct {
	Route string
	Field string
	Err   error
}

func (e *BuildError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("route %s: %v", e.Route, e.Err)
	}
	return fmt.Sprintf("route %s: %s: %v", e.Route, e.Field, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Constructor builds a handle from a descriptor argument. arg is the whole
// object for map descriptors, the text after "|" for "Type|arg" strings, or
// nil for a bare type name.
type Constructor func(f *Factory, arg any) (Handle, error)

// Factory builds routing trees from descriptors. Pools are resolved to
// shared handles, so every reference to a pool aliases one destination.
// A Factory is used while loading configuration, never while routing.
type Factory struct {
	constructors map[string]Constructor
	pools        map[string]Handle
	sink         sink.Sink
	log          *slog.Logger
}

// NewFactory creates a factory with the built-in route types registered.
func NewFactory(pools map[string]Handle, s sink.Sink) *Factory {
	if s == nil {
		s = sink.NewSlogSink(nil)
	}
	f := &Factory{
		constructors: make(map[string]Constructor),
		pools:        make(map[string]Handle, len(pools)),
		sink:         s,
		log:          slog.Default().With("component", "route-factory"),
	}
	for name, h := range pools {
		f.pools[name] = h
	}

	f.Register("NullRoute", newNullRoute)
	f.Register("ErrorRoute", newErrorRoute)
	f.Register("Pool", newPoolRoute)
	f.Register("PoolRoute", newPoolRoute)
	f.Register("LoggingRoute", newLoggingRoute)
	f.Register("FailoverWithExptimeRoute", newFailoverWithExptimeRoute)
	return f
}

// Register associates name with c. Empty names and nil constructors are ignored.
func (f *Factory) Register(name string, c Constructor) {
	name = strings.TrimSpace(name)
	if name == "" || c == nil {
		return
	}
	f.constructors[name] = c
}

// Types returns the registered route type names, sorted.
func (f *Factory) Types() []string {
	out := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Create builds the handle described by v.
func (f *Factory) Create(v any) (Handle, error) {
	switch d := v.(type) {
	case string:
		return f.createFromString(d)
	case map[string]any, map[any]any:
		m, err := toStringMap(d)
		if err != nil {
			return nil, &BuildError{Route: "?", Err: err}
		}
		typ, ok := m["type"].(string)
		if !ok || typ == "" {
			return nil, &BuildError{Route: "?", Field: "type", Err: ErrMissingField}
		}
		c, ok := f.constructors[typ]
		if !ok {
			return nil, &BuildError{Route: typ, Err: errors.New("unknown route type")}
		}
		return c(f, m)
	case nil:
		return nil, &BuildError{Route: "?", Err: errors.New("empty route descriptor")}
	default:
		return nil, &BuildError{Route: "?", Err: fmt.Errorf("unsupported descriptor %T", v)}
	}
}

// CreateList builds a handle for each element of v. A single descriptor is
// treated as a one-element list.
func (f *Factory) CreateList(v any) ([]Handle, error) {
	var items []any
	switch d := v.(type) {
	case nil:
		return nil, nil
	case []any:
		items = d
	case []string:
		for _, s := range d {
			items = append(items, s)
		}
	default:
		items = []any{d}
	}

	out := make([]Handle, 0, len(items))
	for _, item := range items {
		h, err := f.Create(item)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (f *Factory) createFromString(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if typ, arg, ok := strings.Cut(s, "|"); ok {
		c, found := f.constructors[typ]
		if !found {
			return nil, &BuildError{Route: typ, Err: errors.New("unknown route type")}
		}
		return c(f, arg)
	}
	if c, ok := f.constructors[s]; ok {
		return c(f, nil)
	}
	if h, ok := f.pools[s]; ok {
		return h, nil
	}
	return nil, &BuildError{Route: s, Err: errors.New("unknown route type or pool")}
}

func newNullRoute(*Factory, any) (Handle, error) {
	return NullRoute, nil
}

func newErrorRoute(_ *Factory, arg any) (Handle, error) {
	switch a := arg.(type) {
	case string:
		return NewErrorRoute(a), nil
	case map[string]any:
		msg, _ := a["response"].(string)
		return NewErrorRoute(msg), nil
	default:
		return NewErrorRoute(""), nil
	}
}

func newPoolRoute(f *Factory, arg any) (Handle, error) {
	name, _ := arg.(string)
	if m, ok := arg.(map[string]any); ok {
		name, _ = m["pool"].(string)
	}
	if name == "" {
		return nil, &BuildError{Route: "Pool", Field: "pool", Err: ErrMissingField}
	}
	h, ok := f.pools[name]
	if !ok {
		return nil, &BuildError{Route: "Pool", Field: "pool", Err: fmt.Errorf("unknown pool %q", name)}
	}
	return h, nil
}

// newLoggingRoute accepts a bare child reference or an object with a
// "target" field. A missing target is not an error.
func newLoggingRoute(f *Factory, arg any) (Handle, error) {
	var target any
	switch a := arg.(type) {
	case map[string]any:
		target = a["target"]
	case string:
		if a != "" {
			target = a
		}
	}

	if target == nil {
		f.log.Debug("LoggingRoute has no target, requests will reach NullRoute")
		return NewLoggingRoute(nil, f.sink), nil
	}
	child, err := f.Create(target)
	if err != nil {
		return nil, &BuildError{Route: "LoggingRoute", Field: "target", Err: err}
	}
	return NewLoggingRoute(child, f.sink), nil
}

func newFailoverWithExptimeRoute(f *Factory, arg any) (Handle, error) {
	const route = "FailoverWithExptimeRoute"

	m, ok := arg.(map[string]any)
	if !ok {
		return nil, &BuildError{Route: route, Err: errors.New("descriptor must be an object")}
	}

	normalDesc, ok := m["normal"]
	if !ok || normalDesc == nil {
		return nil, &BuildError{Route: route, Field: "normal", Err: ErrMissingField}
	}
	normal, err := f.Create(normalDesc)
	if err != nil {
		return nil, &BuildError{Route: route, Field: "normal", Err: err}
	}

	failover, err := f.CreateList(m["failover"])
	if err != nil {
		return nil, &BuildError{Route: route, Field: "failover", Err: err}
	}

	exptime := DefaultFailoverExptime
	if v, ok := m["failover_exptime"]; ok {
		exptime, err = toUint32(v)
		if err != nil {
			return nil, &BuildError{Route: route, Field: "failover_exptime", Err: err}
		}
	}

	settings, err := parseFailoverSettings(m["settings"])
	if err != nil {
		return nil, &BuildError{Route: route, Field: "settings", Err: err}
	}

	name, _ := m["name"].(string)
	f.log.Debug("Built failover route",
		"name", name,
		"failover_targets", len(failover),
		"failover_exptime", exptime,
		"settings", settings,
	)
	return NewFailoverWithExptimeRoute(normal, failover, exptime, settings).WithName(name), nil
}

// parseFailoverSettings overlays the cells present in v on the defaults.
func parseFailoverSettings(v any) (FailoverSettings, error) {
	settings := DefaultFailoverSettings()
	if v == nil {
		return settings, nil
	}

	m, err := toStringMap(v)
	if err != nil {
		return settings, err
	}

	for class, rowDesc := range m {
		var row *OperationSettings
		switch class {
		case "data_timeout":
			row = &settings.DataTimeout
		case "connect_timeout":
			row = &settings.ConnectTimeout
		case "tko":
			row = &settings.Tko
		default:
			return settings, fmt.Errorf("unknown failure class %q", class)
		}

		cells, err := toStringMap(rowDesc)
		if err != nil {
			return settings, fmt.Errorf("%s: %w", class, err)
		}
		for opClass, val := range cells {
			b, ok := val.(bool)
			if !ok {
				return settings, fmt.Errorf("%s.%s: expected bool, got %T", class, opClass, val)
			}
			switch opClass {
			case "gets":
				row.Gets = b
			case "updates":
				row.Updates = b
			case "deletes":
				row.Deletes = b
			default:
				return settings, fmt.Errorf("%s: unknown operation class %q", class, opClass)
			}
		}
	}
	return settings, nil
}

// toStringMap normalizes YAML (map[any]any) and JSON (map[string]any)
// objects, recursively.
func toStringMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = normalize(val)
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			out[ks] = normalize(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected object, got %T", v)
	}
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		if m, err := toStringMap(t); err == nil {
			return m
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func toUint32(v any) (uint32, error) {
	var n float64
	switch t := v.(type) {
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case uint64:
		n = float64(t)
	case float64:
		n = t
	default:
		return 0, fmt.Errorf("expected unsigned integer, got %T", v)
	}
	if n < 0 || n > math.MaxUint32 || n != math.Trunc(n) {
		return 0, fmt.Errorf("value %v out of range", v)
	}
	return uint32(n), nil
}
