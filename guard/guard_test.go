package guard

import (
	"context"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guard interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

func exerciseGuard(t *testing.T, g guard, key string) {
	other := key + "-other"
	ctx := context.Background()

	ok, err := g.TryAcquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.TryAcquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	ok, err = g.TryAcquire(ctx, other)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	require.NoError(t, g.Release(ctx, key))
	require.NoError(t, g.Release(ctx, key), "double release is a no-op")

	ok, err = g.TryAcquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "released key can be acquired again")

	require.NoError(t, g.Release(ctx, key))
	require.NoError(t, g.Release(ctx, other))
}

func TestMemory_AcquireRelease(t *testing.T) {
	g := NewMemory()
	exerciseGuard(t, g, "42")
	assert.False(t, g.Held("42"))
}

func TestMemory_SingleHolderUnderContention(t *testing.T) {
	g := NewMemory()
	var winners atomic.Int32

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := g.TryAcquire(context.Background(), "7")
			assert.NoError(t, err)
			if ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.True(t, g.Held("7"))
}

func TestRedis_AcquireRelease(t *testing.T) {
	addr := os.Getenv("STARBOARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("STARBOARD_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	g, err := ConnectRedis(ctx, addr, 5*time.Second)
	require.NoError(t, err)
	defer g.Close()

	key := strconv.FormatInt(time.Now().UnixNano(), 10)
	exerciseGuard(t, g, key)

	// A second instance sharing the server sees the mark.
	other := NewRedis(g.cli, 5*time.Second)
	ok, err := g.TryAcquire(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = other.TryAcquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// Releasing from an instance that never held it leaves the mark alone.
	require.NoError(t, other.Release(ctx, key))
	ok, err = other.TryAcquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, g.Release(ctx, key))
}
