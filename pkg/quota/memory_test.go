package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetAbsent(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	record, found, err := store.Get(ctx, "user:alice")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(0), record.Count)
	assert.Equal(t, "user:alice", record.Identity)
}

func TestMemoryStoreIncrement(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		record, err := store.Increment(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, i, record.Count)
	}

	record, found, err := store.Get(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(5), record.Count)

	// Other identities are unaffected
	_, found, err = store.Get(ctx, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreWindowReset(t *testing.T) {
	store := NewMemoryStore(24 * time.Hour)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		_, err := store.Increment(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
	}

	// Advance past the window: the stale count must read as zero
	now = now.Add(24*time.Hour + time.Minute)

	record, found, err := store.Get(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(0), record.Count)

	// And the next increment starts a fresh window at 1
	record, err = store.Increment(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), record.Count)
	assert.Equal(t, now, record.WindowStart)
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.Increment(ctx, "user:shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	record, found, err := store.Get(ctx, "user:shared")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(workers), record.Count, "no increments may be lost")
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	_, err := store.Increment(ctx, "ip:old")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = store.Increment(ctx, "ip:fresh")
	require.NoError(t, err)

	store.sweep()

	assert.Equal(t, 1, store.Len(), "sweep drops only expired records")
	_, found, err := store.Get(ctx, "ip:fresh")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Increment(ctx, "ip:1.2.3.4")
	assert.Error(t, err)

	_, _, err = store.Get(ctx, "ip:1.2.3.4")
	assert.Error(t, err)
}

func TestPolicyLimitFor(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t, int64(20), policy.LimitFor(true))
	assert.Equal(t, int64(5), policy.LimitFor(false))
	assert.Equal(t, 24*time.Hour, policy.Window)
}
