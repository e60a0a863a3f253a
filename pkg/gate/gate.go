package gate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting semaphore that limits the number of in-flight tasks.
// Waiters are woken in FIFO order.
//
// A caller that acquires a permit and never releases it leaks that permit for the
// lifetime of the Gate.
type Gate struct {
	capacity int64
	sem      *semaphore.Weighted

	lock sync.Mutex
	held int64
}

// New creates Gate with fixed capacity. Capacity cannot be changed later.
func New(capacity int) (*Gate, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("gate capacity must be greater than zero, got %d", capacity)
	}

	return &Gate{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}, nil
}

// MustNew is like New but panics on invalid capacity.
func MustNew(capacity int) *Gate {
	g, err := New(capacity)
	if err != nil {
		panic(err)
	}

	return g
}

// Acquire blocks until a permit is available.
// It only returns error when ctx is done before the permit is granted.
func (g *Gate) Acquire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("gate acquire: %w", err)
	}

	g.lock.Lock()
	g.held++
	g.lock.Unlock()
	return nil
}

// Release returns a permit. The longest waiting caller, if any, gets it first.
// Releasing more permits than were acquired is ignored, so the available count never exceeds capacity.
func (g *Gate) Release() {
	g.lock.Lock()
	if g.held <= 0 {
		g.lock.Unlock()
		return
	}

	g.held--
	g.lock.Unlock()

	g.sem.Release(1)
}

// Do runs fn while holding a permit.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}

	defer g.Release()
	return fn(ctx)
}

// Capacity is the fixed number of permits.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}

// InFlight is the number of permits currently held.
func (g *Gate) InFlight() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return int(g.held)
}
