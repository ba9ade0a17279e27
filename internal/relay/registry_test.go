package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateConcurrentFirstAccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32
	reg := NewRegistry(ctx, testLogger(t), WithObserver(func(ctx context.Context, r *Relay) {
		started.Add(1)
	}))

	const n = 64
	got := make([]*Relay, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.GetOrCreate("lobby")
		}(i)
	}
	wg.Wait()

	for _, r := range got {
		assert.Same(t, got[0], r)
	}
	assert.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"lobby"}, reg.Rooms())
}

func TestLookupDoesNotCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := NewRegistry(ctx, testLogger(t))

	_, ok := reg.Lookup("nowhere")
	assert.False(t, ok)
	assert.Empty(t, reg.Rooms())

	created := reg.GetOrCreate("b")
	reg.GetOrCreate("a")
	found, ok := reg.Lookup("b")
	require.True(t, ok)
	assert.Same(t, created, found)
	assert.Equal(t, "b", found.Name())
	assert.Equal(t, []string{"a", "b"}, reg.Rooms())
}

func TestWithQueueSize(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := NewRegistry(ctx, testLogger(t), WithQueueSize(3))
	assert.Equal(t, 3, cap(reg.GetOrCreate("r").commands))

	reg = NewRegistry(ctx, testLogger(t), WithQueueSize(0))
	assert.Equal(t, DefaultQueueSize, cap(reg.GetOrCreate("r").commands))
}
