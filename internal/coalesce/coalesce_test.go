package coalesce

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

func TestDo_RunsOncePerKey(t *testing.T) {
	var (
		g       Group
		calls   int32
		started sync.WaitGroup
		done    sync.WaitGroup
		release = make(chan struct{})
	)

	const k = 10
	errs := make([]error, k)

	started.Add(k)
	done.Add(k)
	for i := 0; i < k; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			_, errs[i] = g.Do(context.Background(), "ACME|annual", func(ctx context.Context) error {
				atomic.AddInt32(&calls, 1)
				<-release
				return nil
			})
		}(i)
	}

	started.Wait()
	time.Sleep(100 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestDo_SharesError(t *testing.T) {
	var g Group
	boom := errors.New("transport down")
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = g.Do(context.Background(), "k", func(ctx context.Context) error {
				<-release
				return boom
			})
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range results {
		assert.ErrorIs(t, err, boom)
	}
}

func TestDo_RerunsAfterCompletion(t *testing.T) {
	var g Group
	calls := 0
	fn := func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	}

	_, err := g.Do(context.Background(), "k", fn)
	require.Error(t, err)
	_, err = g.Do(context.Background(), "k", fn)
	require.Error(t, err)

	assert.Equal(t, 2, calls)
	assert.Zero(t, g.InFlight())
}

func TestDo_WaiterCancellation(t *testing.T) {
	var g Group
	release := make(chan struct{})
	defer close(release)

	go g.Do(context.Background(), "k", func(ctx context.Context) error {
		<-release
		return nil
	})
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Do(ctx, "k", func(ctx context.Context) error {
		t.Error("waiter must not run fn")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_OwnerCancellationReleasesWaiters(t *testing.T) {
	var g Group
	ctx, cancel := context.WithCancel(context.Background())

	ownerErr := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, "k", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		ownerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	waiterErr := make(chan error, 1)
	go func() {
		_, err := g.Do(context.Background(), "k", func(ctx context.Context) error { return nil })
		waiterErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()

	assert.ErrorIs(t, <-ownerErr, context.Canceled)
	select {
	case err := <-waiterErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
}
