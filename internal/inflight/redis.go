package inflight

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/R3E-Network/lotterybets/pkg/logger"
)

// DefaultTTL bounds how long a crashed holder can block a key.
const DefaultTTL = 30 * time.Second

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Redis is a cross-process guard built on SET NX PX.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedis creates a guard storing markers under prefix with the given ttl.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration, log *logger.Logger) *Redis {
	if prefix == "" {
		prefix = "lotterybets:inflight:"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewDefault("inflight")
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, log: log}
}

// NewRedisFromURL parses a redis:// URL and builds a guard over a new client.
func NewRedisFromURL(rawURL string, log *logger.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), "", DefaultTTL, log), nil
}

// Ping checks connectivity.
func (g *Redis) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (g *Redis) Close() error {
	return g.client.Close()
}

// Acquire sets the marker for key if absent. ok is false when another holder owns it.
func (g *Redis) Acquire(ctx context.Context, key string) (func(), bool, error) {
	redisKey := g.prefix + key
	token := uuid.New().String()

	ok, err := g.client.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		res, err := releaseScript.Run(ctx, g.client, []string{redisKey}, token).Result()
		if err != nil {
			g.log.WithError(err).WithField("key", key).Warn("release in-flight marker failed")
			return
		}
		if n, _ := res.(int64); n == 0 {
			g.log.WithField("key", key).Warn("in-flight marker expired before release")
		}
	}
	return release, true, nil
}
