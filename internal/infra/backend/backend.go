// Package backend implements the clients that terminal routes use to reach
// memcache-compatible storage.
//
// This package contains:
//   - Client interface: core abstraction for a backend pool
//   - MemoryClient: in-process store with memcache semantics
//   - RedisClient: Redis-backed store
//   - Health: consecutive-failure TKO tracking
package backend

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/vietddude/mcroute/internal/core/domain"
)

// Client executes one request against a backend. Transport failures are
// returned as errors; protocol answers (misses included) are replies.
type Client interface {
	// Name returns the pool identifier
	Name() string

	// Execute performs op for req
	Execute(ctx context.Context, req domain.Request, op domain.Operation) (domain.Reply, error)

	// Close releases resources
	Close() error
}

var (
	// ErrUnsupported is returned for operations a client cannot serve.
	ErrUnsupported = errors.New("operation not supported by backend")
	// ErrClosed is returned by a client used after Close.
	ErrClosed = errors.New("backend client is closed")
)

// ResultForError determines the result code for a transport error.
func ResultForError(err error) domain.Result {
	if err == nil {
		return domain.ResultOK
	}

	if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrClosed) {
		return domain.ResultLocalError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return domain.ResultConnectTimeout
		}
		return domain.ResultConnectError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ResultTimeout
	}
	if errors.Is(err, context.Canceled) {
		return domain.ResultAborted
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ResultTimeout
	}

	return domain.ResultRemoteError
}

// expiresAt converts a memcache exptime to an absolute deadline. Values up to
// 30 days are relative seconds; larger values are unix timestamps.
func expiresAt(exptime uint32, now time.Time) time.Time {
	const relativeLimit = 60 * 60 * 24 * 30
	switch {
	case exptime == 0:
		return time.Time{}
	case exptime <= relativeLimit:
		return now.Add(time.Duration(exptime) * time.Second)
	default:
		return time.Unix(int64(exptime), 0)
	}
}

// ttlFor returns the relative TTL for exptime, zero meaning no expiry.
func ttlFor(exptime uint32, now time.Time) time.Duration {
	at := expiresAt(exptime, now)
	if at.IsZero() {
		return 0
	}
	ttl := at.Sub(now)
	if ttl <= 0 {
		// Already expired; smallest positive TTL.
		return time.Millisecond
	}
	return ttl
}
