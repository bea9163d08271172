package unread

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb)
}

func TestStoreIncrementAndCounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Increment(ctx, 1, 7))
	require.NoError(t, store.Increment(ctx, 1, 7))
	require.NoError(t, store.Increment(ctx, 1, 9))

	counts, err := store.Counts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{7: 2, 9: 1}, counts)

	// Other participants are untouched.
	counts, err = store.Counts(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestStoreResetClearsConversation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Increment(ctx, 1, 7))
	require.NoError(t, store.Increment(ctx, 1, 9))
	require.NoError(t, store.Reset(ctx, 1, 7))

	counts, err := store.Counts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{9: 1}, counts)

	// Resetting an absent counter is a no-op.
	require.NoError(t, store.Reset(ctx, 1, 7))
}

func TestStoreSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ch, cancel := store.Subscribe(1)
	defer cancel()

	require.NoError(t, store.Increment(ctx, 1, 7))

	select {
	case counts := <-ch:
		assert.Equal(t, map[int]int{7: 1}, counts)
	default:
		t.Fatal("expected a snapshot after increment")
	}

	// Unconsumed snapshots are replaced, not queued.
	require.NoError(t, store.Increment(ctx, 1, 7))
	require.NoError(t, store.Increment(ctx, 1, 7))
	select {
	case counts := <-ch:
		assert.Equal(t, map[int]int{7: 3}, counts)
	default:
		t.Fatal("expected the latest snapshot")
	}
}

func TestStoreSubscribeCancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ch, cancel := store.Subscribe(1)
	cancel()

	require.NoError(t, store.Increment(ctx, 1, 7))

	select {
	case <-ch:
		t.Fatal("cancelled subscriber must not receive snapshots")
	default:
	}
}
