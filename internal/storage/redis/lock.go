package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	xerrors "Snowz-Migrator/internal/errors"
	"Snowz-Migrator/internal/lock"
)

// DefaultLockPrefix 是迁移锁在 Redis 中的键前缀。
const DefaultLockPrefix = "snowz:lock:"

// 只有持有相同令牌的客户端才能删除锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SET NX PX 实现跨进程的迁移锁。
type Locker struct {
	client redis.UniversalClient
	prefix string
}

// NewLocker 使用已有客户端创建锁，prefix 为空时使用 DefaultLockPrefix。
func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	if prefix == "" {
		prefix = DefaultLockPrefix
	}
	return &Locker{client: client, prefix: prefix}
}

// Acquire 实现 lock.Locker。
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Lease, error) {
	if key == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "lock key is empty")
	}
	if ttl <= 0 {
		ttl = lock.DefaultTTL
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("acquire lock %s", key))
	}
	if !ok {
		return nil, lock.Held(key)
	}
	return &lease{locker: l, key: key, token: token}, nil
}

type lease struct {
	locker *Locker
	key    string
	token  string
}

func (l *lease) Key() string { return l.key }

func (l *lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.locker.client, []string{l.locker.prefix + l.key}, l.token).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("release lock %s", l.key))
	}
	return nil
}
