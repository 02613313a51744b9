package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskd/internal/fsops"
	"taskd/internal/interp"
	"taskd/internal/obslog"
	"taskd/internal/regfile"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	vm := interp.New(fsops.New(obslog.Discard()), obslog.Discard(), 1)
	q := New(vm, obslog.Discard(), 4)
	t.Cleanup(q.Close)
	return q
}

func TestSubmitReturnsOutcome(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	out, err := q.Submit(ctx, []regfile.Instruction{
		{Op: regfile.OpReturn, Inline: 7},
	}, nil)
	require.NoError(t, err)
	require.True(t, out.ReturnedViaOpcode)
	require.Equal(t, int64(7), out.ReturnValue)
}

func TestConcurrentSubmitsAllComplete(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Submit(ctx, []regfile.Instruction{
				{Op: regfile.OpReturn, Inline: int64(i)},
			}, nil)
			require.NoError(t, err)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, order, 5)
}

func TestSubmitAfterCloseFails(t *testing.T) {
	vm := interp.New(fsops.New(obslog.Discard()), obslog.Discard(), 1)
	q := New(vm, obslog.Discard(), 1)
	q.Close()

	_, err := q.Submit(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSubmitRespectsContextCancellation(t *testing.T) {
	q := newTestQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := q.Submit(ctx, []regfile.Instruction{{Op: regfile.OpReturn}}, nil)
	require.Error(t, err)
}
