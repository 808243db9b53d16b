package guard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "starboard:handling:"

// releaseScript deletes the mark only if it still carries our token, so an
// expired-and-reacquired mark held by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a guard shared by every bot instance pointed at the same server.
// Marks expire after ttl so a crashed holder cannot block an entry forever.
type Redis struct {
	cli *redis.Client
	ttl time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// ConnectRedis connects to the Redis server and pings it to ensure the
// connection is working.
func ConnectRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(cli, ttl), nil
}

func NewRedis(cli *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		cli:    cli,
		ttl:    ttl,
		tokens: make(map[string]string),
	}
}

func redisKey(key string) string {
	return keyPrefix + key
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (r *Redis) TryAcquire(ctx context.Context, key string) (bool, error) {
	token, err := newToken()
	if err != nil {
		return false, fmt.Errorf("generate guard token: %w", err)
	}
	ok, err := r.cli.SetNX(ctx, redisKey(key), token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire guard for %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	r.mu.Lock()
	r.tokens[key] = token
	r.mu.Unlock()
	return true, nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	token, ok := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, r.cli, []string{redisKey(key)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release guard for %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.cli.Close()
}
