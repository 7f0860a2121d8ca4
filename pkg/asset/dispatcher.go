package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDispatcherStopped is returned for work handed to a dispatcher that is not serving.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

type dispatcherKey struct{}

// Dispatcher runs closures on the single goroutine that calls Serve. Engine calls and
// host updates that must not interleave are funneled through it.
type Dispatcher struct {
	queue chan func(ctx context.Context)

	mu      sync.Mutex
	serving bool
	done    chan struct{}
}

// NewDispatcher returns a dispatcher with room for size queued closures.
func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	return &Dispatcher{
		queue: make(chan func(ctx context.Context), size),
		done:  make(chan struct{}),
	}
}

// Serve runs queued closures until ctx is done. The closures receive a context that
// marks them as running on the dispatcher, so nested Run calls execute inline.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.mu.Lock()
	if d.serving {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher is already serving")
	}
	d.serving = true
	d.mu.Unlock()
	defer close(d.done)

	ctx = context.WithValue(ctx, dispatcherKey{}, d)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-d.queue:
			fn(ctx)
		}
	}
}

// OnDispatcher reports whether ctx belongs to a closure running on d.
func (d *Dispatcher) OnDispatcher(ctx context.Context) bool {
	owner, _ := ctx.Value(dispatcherKey{}).(*Dispatcher)
	return owner == d
}

// Post queues fn without waiting for it.
func (d *Dispatcher) Post(fn func(ctx context.Context)) error {
	select {
	case <-d.done:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.queue <- fn:
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	}
}

// Do queues fn and waits for it to finish. Waiting ends early when ctx is done; fn may
// still run afterwards.
func (d *Dispatcher) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	result := make(chan error, 1)
	job := func(dctx context.Context) { result <- fn(dctx) }
	select {
	case d.queue <- job:
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run calls fn directly when ctx already runs on d, and goes through Do otherwise.
func (d *Dispatcher) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if d.OnDispatcher(ctx) {
		return fn(ctx)
	}
	return d.Do(ctx, fn)
}

// TickOn advances inst by one step on the dispatcher goroutine.
func (d *Dispatcher) TickOn(ctx context.Context, drv *Driver, inst *Instance) (State, error) {
	var state State
	err := d.Run(ctx, func(ctx context.Context) error {
		var err error
		state, err = drv.Tick(ctx, inst)
		return err
	})
	return state, err
}
