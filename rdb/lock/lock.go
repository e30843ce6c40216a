// Package lock 同步运行锁，避免多个实例同时对同一个库执行 DDL
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld 锁被其他实例持有
var ErrLockHeld = errors.New("lock is held by another run")

// Locker 获取一个命名锁，返回释放函数
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NopLocker 不加锁，单实例部署时使用
type NopLocker struct{}

func (NopLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

type RedisLockerOptions struct {
	// host:port 地址
	Endpoint string `cfg:"endpoint" validate:"required"`
	Username string `cfg:"username"`
	Password string `cfg:"password"`
	DB       int    `cfg:"db" def:"0"`

	// 锁的过期时间，应大于一次同步的最长耗时
	TTL time.Duration `cfg:"ttl" def:"10m"`
	// 锁被占用时最多等待多久，0 表示不等待
	WaitTimeout time.Duration `cfg:"waitTimeout" def:"0s"`
	// 等待期间的重试间隔
	RetryInterval time.Duration `cfg:"retryInterval" def:"200ms"`
	DialTimeout   time.Duration `cfg:"dialTimeout" def:"5s"`
}

// RedisLocker 基于 SET NX PX 的锁，释放时只删除自己持有的值
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	waitTimeout   time.Duration
	retryInterval time.Duration
}

// 值匹配时才删除，避免锁过期后删掉其他实例的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLockerWithOptions(options *RedisLockerOptions) (*RedisLocker, error) {
	if options == nil {
		return nil, errors.New("options is nil")
	}
	if options.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        options.Endpoint,
		Username:    options.Username,
		Password:    options.Password,
		DB:          options.DB,
		DialTimeout: options.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}

	ttl := options.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	retryInterval := options.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 200 * time.Millisecond
	}

	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		waitTimeout:   options.WaitTimeout,
		retryInterval: retryInterval,
	}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()

	var deadline time.Time
	if l.waitTimeout > 0 {
		deadline = time.Now().Add(l.waitTimeout)
	}

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "redis setnx %s failed", key)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		if deadline.IsZero() || time.Now().After(deadline) {
			return nil, errors.WithMessage(ErrLockHeld, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

// release 使用独立的 context，调用方的 context 取消后仍然能释放锁
func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
