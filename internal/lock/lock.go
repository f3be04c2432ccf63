// Package lock 为迁移提供互斥：同一数据库方言与项目组同时只允许一次迁移运行。
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	xerrors "Snowz-Migrator/internal/errors"
)

// DefaultTTL 是未配置时迁移锁的有效期。
const DefaultTTL = 5 * time.Minute

// Lease 表示一把已经获得的锁。
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// Locker 抽象迁移锁的获取。锁已被持有时返回 LOCK_HELD。
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Held 构造锁已被占用的错误。
func Held(key string) error {
	return xerrors.New(xerrors.CodeLockHeld, fmt.Sprintf("lock %s is held by another run", key),
		xerrors.WithMetadata("key", key))
}

// MemoryLocker 是进程内的锁实现，过期的锁可以被重新获取。
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	seq  uint64
	now  func() time.Time
}

type memoryEntry struct {
	token   uint64
	expires time.Time
}

// NewMemoryLocker 创建进程内锁。
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), now: time.Now}
}

// Acquire 实现 Locker。
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "lock key is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if entry, ok := m.held[key]; ok && now.Before(entry.expires) {
		return nil, Held(key)
	}
	m.seq++
	m.held[key] = memoryEntry{token: m.seq, expires: now.Add(ttl)}
	return &memoryLease{locker: m, key: key, token: m.seq}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  uint64
}

func (l *memoryLease) Key() string { return l.key }

// Release 只释放自己持有的锁，过期后被他人重新获取的锁保持不变。
func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if entry, ok := l.locker.held[l.key]; ok && entry.token == l.token {
		delete(l.locker.held, l.key)
	}
	return nil
}
