package lock

import (
	"context"
	"testing"
	"time"

	xerrors "Snowz-Migrator/internal/errors"
)

func TestMemoryLockerExcludesConcurrentRuns(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "migrate:sqlite:com.snowz", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if lease.Key() != "migrate:sqlite:com.snowz" {
		t.Fatalf("unexpected key: %s", lease.Key())
	}

	_, err = locker.Acquire(ctx, "migrate:sqlite:com.snowz", time.Minute)
	if xerrors.CodeOf(err) != xerrors.CodeLockHeld {
		t.Fatalf("expected LOCK_HELD, got %v", err)
	}
	if !xerrors.RetryableError(err) {
		t.Fatalf("LOCK_HELD should be retryable")
	}

	if _, err := locker.Acquire(ctx, "migrate:mysql:com.snowz", time.Minute); err != nil {
		t.Fatalf("other keys must not be blocked: %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "migrate:sqlite:com.snowz", time.Minute); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestMemoryLockerExpiry(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	locker := NewMemoryLocker()
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	now = now.Add(2 * time.Second)

	fresh, err := locker.Acquire(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("expired lock should be reusable: %v", err)
	}

	// 过期的持有者释放时不能影响新的持有者。
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release failed: %v", err)
	}
	if _, err := locker.Acquire(ctx, "k", time.Minute); xerrors.CodeOf(err) != xerrors.CodeLockHeld {
		t.Fatalf("fresh lease must still be held, got %v", err)
	}
	_ = fresh.Release(ctx)
}

func TestMemoryLockerValidatesInput(t *testing.T) {
	t.Parallel()

	locker := NewMemoryLocker()
	if _, err := locker.Acquire(context.Background(), "", time.Second); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locker.Acquire(ctx, "k", time.Second); err == nil {
		t.Fatalf("expected context error")
	}
}
