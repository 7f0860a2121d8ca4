package asset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, d *Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = d.Serve(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return cancel
}

func TestDispatcherDoRunsOnDispatcher(t *testing.T) {
	d := NewDispatcher(0)
	serve(t, d)

	ctx := context.Background()
	assert.False(t, d.OnDispatcher(ctx))
	err := d.Do(ctx, func(ctx context.Context) error {
		if !d.OnDispatcher(ctx) {
			return errors.New("not on dispatcher")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestDispatcherRunNestedFastPath(t *testing.T) {
	d := NewDispatcher(1)
	serve(t, d)

	inner := false
	err := d.Run(context.Background(), func(ctx context.Context) error {
		// Queuing here would wait on ourselves.
		return d.Run(ctx, func(context.Context) error {
			inner = true
			return nil
		})
	})
	require.NoError(t, err)
	assert.True(t, inner)
}

func TestDispatcherPostKeepsOrder(t *testing.T) {
	d := NewDispatcher(8)
	serve(t, d)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, d.Post(func(context.Context) { got = append(got, i) }))
	}
	// Do is queued after the posts, so they have all run when it returns.
	require.NoError(t, d.Do(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestDispatcherStopped(t *testing.T) {
	d := NewDispatcher(0)
	cancel := serve(t, d)
	cancel()

	require.Eventually(t, func() bool {
		return errors.Is(d.Post(func(context.Context) {}), ErrDispatcherStopped)
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, d.Do(context.Background(), func(context.Context) error { return nil }), ErrDispatcherStopped)
	assert.Error(t, d.Serve(context.Background()), "serving twice")
}

func TestDispatcherTickOn(t *testing.T) {
	d := NewDispatcher(0)
	serve(t, d)
	e := rockEngine()
	drv := NewDriver(newFacade(e), DriverConfig{Cooker: fastCooker()})
	inst := rockInstance()

	state, err := d.TickOn(context.Background(), drv, inst)
	require.NoError(t, err)
	assert.Equal(t, StatePreInstantiation, state)
}
