package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/tutorial-pipeline/internal/core/domain"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *goredis.Cmd
}

// Locker grants one advancing worker per submission. Each lease carries a
// random token so an expired holder cannot release a newer lease.
type Locker struct {
	rdb    client
	prefix string
}

func New(ctx context.Context, addr, password string, db int) (*Locker, *goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb), rdb, nil
}

func NewWithClient(rdb client) *Locker {
	return &Locker{rdb: rdb, prefix: "tutorial-pipeline:lease:"}
}

func (l *Locker) Acquire(ctx context.Context, submissionID string, ttl time.Duration) (func(context.Context) error, error) {
	key := l.prefix + submissionID
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "acquire submission lease", err)
	}
	if !ok {
		return nil, domain.WrapError(domain.ErrLeaseHeld, "acquire submission lease", fmt.Errorf("id=%s", submissionID))
	}

	release := func(ctx context.Context) error {
		if err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release submission lease: %w", err)
		}
		return nil
	}
	return release, nil
}
