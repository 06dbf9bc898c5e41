package sink

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/mcroute/internal/metrics"
)

const defaultStreamMaxLen = 100000

// RedisStreamConfig holds settings for the Redis stream sink.
type RedisStreamConfig struct {
	URL     string        `yaml:"url"`
	Stream  string        `yaml:"stream"`
	MaxLen  int64         `yaml:"max_len"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedisStreamSink appends entries to a capped Redis stream. Delivery errors
// are logged and counted; the route never sees them.
type RedisStreamSink struct {
	rdb     redis.Cmdable
	stream  string
	maxLen  int64
	timeout time.Duration
	log     *slog.Logger
}

// NewRedisStreamSink connects to cfg.URL and returns a sink for cfg.Stream.
func NewRedisStreamSink(cfg RedisStreamConfig) (*RedisStreamSink, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	return NewRedisStreamSinkWithClient(redis.NewClient(opts), cfg), nil
}

// NewRedisStreamSinkWithClient wraps an existing client.
func NewRedisStreamSinkWithClient(rdb redis.Cmdable, cfg RedisStreamConfig) *RedisStreamSink {
	if cfg.Stream == "" {
		cfg.Stream = "mcroute:requests"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = defaultStreamMaxLen
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	return &RedisStreamSink{
		rdb:     rdb,
		stream:  cfg.Stream,
		maxLen:  cfg.MaxLen,
		timeout: cfg.Timeout,
		log:     slog.Default().With("component", "redis-sink"),
	}
}

func (s *RedisStreamSink) Record(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"request_id": e.RequestID,
			"route":      e.Route,
			"key":        e.Key,
			"operation":  e.Operation,
			"result":     e.Result,
			"length":     strconv.Itoa(e.Length),
		},
	}).Err()
	if err != nil {
		metrics.SinkErrorsTotal.WithLabelValues("redis").Inc()
		s.log.Warn("Failed to append request record", "stream", s.stream, "error", err)
	}
}

// Close closes the underlying client when it supports closing.
func (s *RedisStreamSink) Close() error {
	if c, ok := s.rdb.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
