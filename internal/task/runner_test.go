package task

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

func TestSubmitSuppressesDuplicate(t *testing.T) {
	r := NewRunner(nil)
	release := make(chan struct{})
	var calls atomic.Int32

	key := Key{Image: "cases/V0001.jpg", Op: OpLocate}
	body := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	first, started := r.Submit(key, body)
	require.True(t, started)
	assert.True(t, r.InFlight(key))

	second, started := r.Submit(key, body)
	assert.False(t, started)
	assert.Same(t, first, second)

	close(release)
	v, err := first.Result()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	r.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, r.InFlight(key))
}

func TestDistinctKeysRunIndependently(t *testing.T) {
	r := NewRunner(nil)
	release := make(chan struct{})
	body := func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	}

	_, a := r.Submit(Key{Image: "a.jpg", Op: OpLocate}, body)
	_, b := r.Submit(Key{Image: "a.jpg", Op: OpSegment}, body)
	_, c := r.Submit(Key{Image: "b.jpg", Op: OpLocate}, body)
	assert.True(t, a && b && c)

	close(release)
	r.Wait()
}

func TestResubmitAfterCompletion(t *testing.T) {
	r := NewRunner(nil)
	key := Key{Image: "a.jpg", Op: OpSegment}

	t1, _ := r.Submit(key, func(ctx context.Context) (any, error) { return 1, nil })
	<-t1.Done()
	r.Wait()

	t2, started := r.Submit(key, func(ctx context.Context) (any, error) { return 2, nil })
	require.True(t, started)
	v, err := t2.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCompletionNotifiedOnce(t *testing.T) {
	r := NewRunner(nil)
	var mu sync.Mutex
	seen := map[Key]int{}
	r.OnComplete(func(t *Task) {
		mu.Lock()
		seen[t.Key()]++
		mu.Unlock()
	})

	failing := errors.New("no blob")
	k1 := Key{Image: "a.jpg", Op: OpLocate}
	k2 := Key{Image: "b.jpg", Op: OpLocate}
	t1, _ := r.Submit(k1, func(ctx context.Context) (any, error) { return nil, failing })
	t2, _ := r.Submit(k2, func(ctx context.Context) (any, error) { return "ok", nil })
	r.Wait()

	_, err := t1.Result()
	assert.ErrorIs(t, err, failing)
	v, err := t2.Result()
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[Key]int{k1: 1, k2: 1}, seen)
}

func TestKeyInFlightDuringCompletion(t *testing.T) {
	r := NewRunner(nil)
	key := Key{Image: "a.jpg", Op: OpLocate}
	var calls atomic.Int32
	body := func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, nil
	}

	var (
		inFlight bool
		started  bool
		same     bool
	)
	var first *Task
	ready := make(chan struct{})
	r.OnComplete(func(tk *Task) {
		<-ready
		inFlight = r.InFlight(key)
		var again *Task
		again, started = r.Submit(key, body)
		same = again == tk && tk == first
	})

	first, _ = r.Submit(key, body)
	close(ready)
	r.Wait()

	assert.True(t, inFlight)
	assert.False(t, started, "resubmit from the completion callback must be suppressed")
	assert.True(t, same)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, r.InFlight(key))
}

func TestPanicBecomesError(t *testing.T) {
	r := NewRunner(nil)
	tk, _ := r.Submit(Key{Image: "a.jpg", Op: OpSegment}, func(ctx context.Context) (any, error) {
		panic("boom")
	})

	select {
	case <-tk.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not complete")
	}
	_, err := tk.Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
