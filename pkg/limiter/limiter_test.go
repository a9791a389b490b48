package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagdown/pkg/quota"
)

func testPolicy() quota.Policy {
	return quota.Policy{
		AuthenticatedLimit: 20,
		AnonymousLimit:     5,
		Window:             24 * time.Hour,
	}
}

// failingStore simulates an unreachable backend
type failingStore struct{}

func (failingStore) Get(ctx context.Context, identity string) (quota.Record, bool, error) {
	return quota.Record{}, false, errors.New("store unavailable")
}

func (failingStore) Increment(ctx context.Context, identity string) (quota.Record, error) {
	return quota.Record{}, errors.New("store unavailable")
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, testPolicy())
	assert.Error(t, err)

	_, err = New(quota.NewMemoryStore(time.Hour), quota.Policy{})
	assert.Error(t, err)

	_, err = New(quota.NewMemoryStore(time.Hour), testPolicy())
	assert.NoError(t, err)
}

func TestAllowProgression(t *testing.T) {
	l, err := New(quota.NewMemoryStore(24*time.Hour), testPolicy())
	require.NoError(t, err)
	ctx := context.Background()
	id := Identity{Key: "ip:1.2.3.4"}

	// Five anonymous calls count down 4,3,2,1,0
	for i := int64(1); i <= 5; i++ {
		decision, err := l.Allow(ctx, id)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, int64(5), decision.Limit)
		assert.Equal(t, i, decision.Used)
		assert.Equal(t, 5-i, decision.Remaining)
	}

	// The sixth is denied and used stays at the limit
	decision, err := l.Allow(ctx, id)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(5), decision.Used)
	assert.Equal(t, int64(0), decision.Remaining)

	status, err := l.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.Used)
	assert.Equal(t, int64(0), status.Remaining)
}

func TestAuthenticatedLimit(t *testing.T) {
	l, err := New(quota.NewMemoryStore(24*time.Hour), testPolicy())
	require.NoError(t, err)
	ctx := context.Background()
	id := Identity{Key: "user:alice", Authenticated: true}

	for i := int64(1); i <= 20; i++ {
		decision, err := l.Allow(ctx, id)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "call %d should be allowed", i)
		assert.Equal(t, int64(20), decision.Limit)
	}

	decision, err := l.Allow(ctx, id)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestDistinctIdentities(t *testing.T) {
	l, err := New(quota.NewMemoryStore(24*time.Hour), testPolicy())
	require.NoError(t, err)
	ctx := context.Background()

	// Same caller with and without the user header tracks separately
	anon := Identity{Key: "ip:1.2.3.4"}
	auth := Identity{Key: "user:alice", Authenticated: true}

	for i := 0; i < 5; i++ {
		decision, err := l.Allow(ctx, anon)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
	decision, err := l.Allow(ctx, anon)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	decision, err = l.Allow(ctx, auth)
	require.NoError(t, err)
	assert.True(t, decision.Allowed, "authenticated identity has its own counter")
	assert.Equal(t, int64(1), decision.Used)
}

func TestStatusFreshIdentity(t *testing.T) {
	l, err := New(quota.NewMemoryStore(24*time.Hour), testPolicy())
	require.NoError(t, err)

	status, err := l.Status(context.Background(), Identity{Key: "ip:9.9.9.9"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.Used)
	assert.Equal(t, int64(5), status.Remaining)
	assert.Equal(t, int64(5), status.Limit)
	assert.True(t, status.Allowed)
}

func TestStatusDoesNotIncrement(t *testing.T) {
	store := quota.NewMemoryStore(24 * time.Hour)
	l, err := New(store, testPolicy())
	require.NoError(t, err)
	ctx := context.Background()
	id := Identity{Key: "ip:1.2.3.4"}

	for i := 0; i < 10; i++ {
		_, err := l.Status(ctx, id)
		require.NoError(t, err)
	}

	status, err := l.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.Used, "status reads must not consume quota")
}

func TestFailClosedOnStoreError(t *testing.T) {
	l, err := New(failingStore{}, testPolicy())
	require.NoError(t, err)

	_, err = l.Allow(context.Background(), Identity{Key: "ip:1.2.3.4"})
	assert.Error(t, err, "store failure must surface, not grant access")

	_, err = l.Status(context.Background(), Identity{Key: "ip:1.2.3.4"})
	assert.Error(t, err)
}
