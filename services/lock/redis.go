package locksvc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/memoraid/memoraid/core"
	"github.com/memoraid/memoraid/core/dispatch"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-instance Redis lock shared by every scheduler process.
// The TTL bounds how long a crashed holder keeps it.
type RedisLock struct {
	client  redis.UniversalClient
	key     string
	ttl     time.Duration
	timeout time.Duration
}

var _ dispatch.Locker = (*RedisLock)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: conf.Scheduler.RedisAddress,
		DB:   conf.Scheduler.RedisDB,
	})
}

func NewRedisLock(client redis.UniversalClient, key string, ttl, timeout time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl, timeout: timeout}
}

func (l *RedisLock) Acquire(ctx context.Context) (func() error, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.timeout)

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "redis SETNX")
		}
		if ok {
			break
		}
		if time.Now().Add(retryDelay).After(deadline) {
			return nil, dispatch.ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	release := func() error {
		// the caller's ctx may be done by now
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(), "releasing redis lock")
	}
	return release, nil
}
