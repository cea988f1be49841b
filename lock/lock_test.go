package lock_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habedi/sparkdoor/db"
	"github.com/habedi/sparkdoor/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLockRepo(t *testing.T) db.LockRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locks.db")
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db.NewLockRepository(gdb)
}

// exerciseLocker checks the contract shared by every Locker implementation.
// a and b must be two lockers contending for the same keys.
func exerciseLocker(t *testing.T, a, b lock.Locker) {
	t.Helper()
	ctx := context.Background()

	ok, err := a.TryAcquire(ctx, "refresh_access_token", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "first acquire should succeed")

	ok, err = b.TryAcquire(ctx, "refresh_access_token", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be acquired again")

	ok, err = b.TryAcquire(ctx, "other_key", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different keys are independent")

	require.NoError(t, a.Release(ctx, "refresh_access_token"))

	ok, err = b.TryAcquire(ctx, "refresh_access_token", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "released lock can be taken")

	require.NoError(t, b.Release(ctx, "refresh_access_token"))
	require.NoError(t, b.Release(ctx, "other_key"))
	require.NoError(t, a.Release(ctx, "never_held"))
}

func TestMemoryLocker(t *testing.T) {
	m := lock.NewMemory()
	exerciseLocker(t, m, m)
}

func TestMemoryLocker_RejectsInvalidTTL(t *testing.T) {
	_, err := lock.NewMemory().TryAcquire(context.Background(), "k", 0)
	assert.Error(t, err)
}

func TestMemoryLocker_Expires(t *testing.T) {
	m := lock.NewMemory()
	ctx := context.Background()

	ok, err := m.TryAcquire(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		ok, err := m.TryAcquire(ctx, "k", time.Minute)
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
}

func TestDBLocker(t *testing.T) {
	repo := setupLockRepo(t)
	a := lock.NewDBLocker(repo, nil)
	b := lock.NewDBLocker(repo, nil)
	require.NotEqual(t, a.Owner(), b.Owner())

	exerciseLocker(t, a, b)
}

func TestDBLocker_ReleaseByOtherOwnerKeepsLock(t *testing.T) {
	repo := setupLockRepo(t)
	a := lock.NewDBLocker(repo, nil)
	b := lock.NewDBLocker(repo, nil)
	ctx := context.Background()

	ok, err := a.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Release(ctx, "k"))
	ok, err = b.TryAcquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDBLocker_ConcurrentAcquireHasOneWinner(t *testing.T) {
	repo := setupLockRepo(t)
	ctx := context.Background()

	const workers = 8
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := lock.NewDBLocker(repo, nil)
			ok, err := l.TryAcquire(ctx, "refresh_access_token", time.Minute)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&wins))
}
