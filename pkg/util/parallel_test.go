package util

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelVisitsAll(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]bool{}
	err := Parallel(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(_ context.Context, n int) error {
		mu.Lock()
		seen[n] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 5)
}

func TestParallelRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	err := Parallel(context.Background(), make([]struct{}, 20), 3, func(context.Context, struct{}) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestParallelFirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")
	err := Parallel(context.Background(), []string{"fail", "wait"}, 2, func(ctx context.Context, s string) error {
		if s == "fail" {
			return boom
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("not cancelled")
		}
	})
	require.ErrorIs(t, err, boom)
}

func TestParallelEmpty(t *testing.T) {
	require.NoError(t, Parallel(context.Background(), nil, 0, func(context.Context, int) error {
		t.Fatal("must not be called")
		return nil
	}))
}
