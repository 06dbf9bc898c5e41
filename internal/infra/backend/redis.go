package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/mcroute/internal/core/domain"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"` // per-request budget of the pool
}

// maxRedisCounter is the largest counter the arithmetic script handles
// exactly; Lua numbers are doubles.
const maxRedisCounter = 1<<53 - 1

const errCounterRange = "counter out of range for redis pool"

var (
	appendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('APPEND', KEYS[1], ARGV[1])
return 1`)

	prependScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
redis.call('SET', KEYS[1], ARGV[1] .. v, 'KEEPTTL')
return 1`)

	// Returns -1 on a miss, -2 for a value that is not an unsigned decimal
	// and -3 when the counter would leave the exact range of a Lua number.
	// Decrement floors at 0.
	arithScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return -1 end
if not string.match(v, '^%d+$') then return -2 end
if #v > 16 then return -3 end
local n = tonumber(v)
local d = tonumber(ARGV[1])
if n > 9007199254740991 then return -3 end
if ARGV[2] == 'decr' then
  if d > n then n = 0 else n = n - d end
else
  n = n + d
  if n > 9007199254740991 then return -3 end
end
redis.call('SET', KEYS[1], string.format('%d', n), 'KEEPTTL')
return n`)
)

// RedisClient serves memcache operations from Redis. Flags and cas tokens
// are not persisted.
type RedisClient struct {
	name string
	rdb  redis.Cmdable
	conn *redis.Client
	now  func() time.Time
}

// NewRedisClient creates a client for cfg.URL. The connection is established
// lazily so a down backend surfaces as connect errors at request time.
func NewRedisClient(name string, cfg RedisConfig) (*RedisClient, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	applyTimeouts(opts, cfg.Timeout)

	rdb := redis.NewClient(opts)
	return &RedisClient{name: name, rdb: rdb, conn: rdb, now: time.Now}, nil
}

// applyTimeouts disables go-redis retries and keeps the dial budget below
// the request budget, so a failed connect reports as connect_error or
// connect_timeout and every command is sent at most once.
func applyTimeouts(opts *redis.Options, timeout time.Duration) {
	opts.MaxRetries = -1
	if timeout <= 0 {
		return
	}
	opts.DialTimeout = timeout / 2
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	opts.PoolTimeout = timeout
}

// NewRedisClientWithCmdable wraps an existing go-redis client.
func NewRedisClientWithCmdable(name string, rdb redis.Cmdable) *RedisClient {
	return &RedisClient{name: name, rdb: rdb, now: time.Now}
}

func (c *RedisClient) Name() string {
	return c.name
}

// Close closes the Redis connection if this client owns it.
func (c *RedisClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *RedisClient) Execute(
	ctx context.Context,
	req domain.Request,
	op domain.Operation,
) (domain.Reply, error) {
	ttl := ttlFor(req.Exptime, c.now())

	switch op {
	case domain.OpGet, domain.OpGets, domain.OpMetaget, domain.OpLeaseGet:
		val, err := c.rdb.Get(ctx, req.Key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.NewReply(domain.ResultNotFound), nil
		}
		if err != nil {
			return domain.Reply{}, err
		}
		return domain.NewValueReply(domain.ResultFound, val), nil

	case domain.OpSet, domain.OpLeaseSet:
		if err := c.rdb.Set(ctx, req.Key, req.Value, ttl).Err(); err != nil {
			return domain.Reply{}, err
		}
		return domain.NewReply(domain.ResultStored), nil

	case domain.OpAdd, domain.OpReplace:
		var ok bool
		var err error
		if op == domain.OpAdd {
			ok, err = c.rdb.SetNX(ctx, req.Key, req.Value, ttl).Result()
		} else {
			ok, err = c.rdb.SetXX(ctx, req.Key, req.Value, ttl).Result()
		}
		if err != nil {
			return domain.Reply{}, err
		}
		return storedReply(ok), nil

	case domain.OpAppend, domain.OpPrepend:
		script := appendScript
		if op == domain.OpPrepend {
			script = prependScript
		}
		n, err := script.Run(ctx, c.rdb, []string{req.Key}, req.Value).Int64()
		if err != nil {
			return domain.Reply{}, err
		}
		return storedReply(n == 1), nil

	case domain.OpDelete:
		n, err := c.rdb.Del(ctx, req.Key).Result()
		if err != nil {
			return domain.Reply{}, err
		}
		if n == 0 {
			return domain.NewReply(domain.ResultNotFound), nil
		}
		return domain.NewReply(domain.ResultDeleted), nil

	case domain.OpIncr, domain.OpDecr:
		if req.Delta > maxRedisCounter {
			return domain.NewErrorReply(domain.ResultLocalError, errCounterRange), nil
		}
		n, err := arithScript.Run(ctx, c.rdb, []string{req.Key}, req.Delta, op.String()).Int64()
		if err != nil {
			return domain.Reply{}, err
		}
		switch n {
		case -1:
			return domain.NewReply(domain.ResultNotFound), nil
		case -2:
			return domain.NewErrorReply(domain.ResultRemoteError,
				"cannot increment or decrement non-numeric value"), nil
		case -3:
			return domain.NewErrorReply(domain.ResultRemoteError, errCounterRange), nil
		}
		return domain.Reply{Result: domain.ResultStored, Delta: uint64(n)}, nil

	case domain.OpTouch:
		var ok bool
		var err error
		if ttl == 0 {
			ok, err = c.rdb.Persist(ctx, req.Key).Result()
			if err == nil && !ok {
				// PERSIST reports false for keys without a TTL too.
				var exists int64
				exists, err = c.rdb.Exists(ctx, req.Key).Result()
				ok = exists == 1
			}
		} else {
			ok, err = c.rdb.Expire(ctx, req.Key, ttl).Result()
		}
		if err != nil {
			return domain.Reply{}, err
		}
		if !ok {
			return domain.NewReply(domain.ResultNotFound), nil
		}
		return domain.NewReply(domain.ResultTouched), nil

	case domain.OpVersion:
		return domain.NewValueReply(domain.ResultOK, []byte("mcroute-redis")), nil

	default:
		return domain.Reply{}, ErrUnsupported
	}
}

func storedReply(ok bool) domain.Reply {
	if ok {
		return domain.NewReply(domain.ResultStored)
	}
	return domain.NewReply(domain.ResultNotStored)
}
