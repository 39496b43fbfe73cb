// Package pool implements a bounded pool of reusable resources with lazy
// growth between a minimum and maximum size and FIFO delivery to queued
// acquirers.
//
// The pool's bookkeeping lives in a single coordinating process and is
// guarded by an ordinary mutex; it is the single-process consumer layer on
// top of the cross-context primitives in the parent package, not a shared
// structure itself.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"gosuda.org/shmsync/internal/logging"
)

// Error definitions for pool operations.
var (
	ErrClosed      = errors.New("shmsync: pool is closed")
	ErrNilResource = errors.New("shmsync: nil resource released")
	ErrBadOptions  = errors.New("shmsync: invalid pool options")
)

// A Resource is one pooled instance handed to exactly one acquirer at a
// time. The pool owns it between Release and the next Acquire.
type Resource[T any] struct {
	ID        uuid.UUID // Unique identity, assigned at creation
	Value     T         // The caller's resource instance
	CreatedAt time.Time
	usedAt    time.Time
}

// UsedAt returns when the resource was last handed out or returned.
func (r *Resource[T]) UsedAt() time.Time {
	return r.usedAt
}

// Options configures a pool.
type Options[T any] struct {
	// Factory constructs one resource instance. Required.
	Factory func() (T, error)

	// Close tears down a resource instance when the pool is closed or a
	// resource is released into a closed pool. Optional.
	Close func(T) error

	// Min is the idle floor: the pool grows whenever fewer than Min
	// instances are idle and the allocation cap has not been reached.
	// An empty idle list always triggers growth, even with Min 0.
	Min int

	// Norm is the growth target: a growth step creates up to Norm new
	// instances beyond the currently idle ones. It must be at least 1.
	Norm int

	// Max caps the total number of instances ever created. It must be
	// positive, and Min <= Norm <= Max must hold.
	Max int
}

func (o *Options[T]) validate() error {
	if o.Factory == nil {
		return ErrBadOptions
	}
	if o.Max <= 0 || o.Min < 0 || o.Norm < 1 || o.Min > o.Norm || o.Norm > o.Max {
		return ErrBadOptions
	}
	return nil
}

// Stats contains pool state information and accumulated counters.
type Stats struct {
	Requests uint32 // number of Acquire calls
	Hits     uint32 // number of times an idle resource was found
	Waits    uint32 // number of times an acquirer had to queue
	Grown    uint32 // number of resources created by growth steps

	Allocated uint32 // resources created so far, never exceeds Max
	Idle      uint32 // resources currently idle in the pool
}

// A Pool hands out and recycles a bounded set of interchangeable resources.
// Resources are created lazily: nothing is allocated until the first
// acquire finds the idle list below the minimum.
type Pool[T any] struct {
	opts Options[T]

	mu        sync.Mutex
	idle      []*Resource[T] // Reused most-recently-released first
	allocated int
	waiters   []*waiter[T] // FIFO queue of blocked acquirers
	closed    bool

	requests uint32
	hits     uint32
	waits    uint32
	grown    uint32
}

// New creates a pool from opts. No resources are created yet.
func New[T any](opts Options[T]) (*Pool[T], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Pool[T]{opts: opts}, nil
}

// Acquire returns an idle resource, grows the pool if it is below its
// bounds, or queues behind earlier acquirers until a Release frees an
// instance. Queued acquirers are served strictly in FIFO order.
//
// A factory failure during growth fails only this call; instances created
// before the failure stay in the pool and the failed slot does not count
// toward the allocation cap.
func (p *Pool[T]) Acquire(ctx context.Context) (*Resource[T], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.requests++

	// Earlier acquirers are already queued; joining the queue keeps the
	// FIFO contract even if a cancelled waiter put an instance back.
	if len(p.waiters) == 0 {
		// Restore the idle floor before serving, so handing out this
		// instance does not leave the pool below its minimum.
		hit := len(p.idle) > 0
		growErr := p.growLocked()
		if res := p.popIdleLocked(); res != nil {
			if hit {
				p.hits++
			}
			p.mu.Unlock()
			return res, nil
		}
		if growErr != nil {
			p.mu.Unlock()
			return nil, growErr
		}
	}

	w := newWaiter[T]()
	p.waiters = append(p.waiters, w)
	p.waits++
	p.mu.Unlock()

	select {
	case r, ok := <-w.result:
		if !ok {
			return nil, ErrClosed
		}
		return r.res, r.err

	case <-ctx.Done():
		if res := w.cancel(); res != nil {
			// Delivery raced with the cancellation; put the instance back
			// so it is not leaked.
			p.Release(res)
		}
		p.removeWaiter(w)
		return nil, ctx.Err()
	}
}

// TryAcquire returns an idle resource or grows the pool, but never queues.
// It returns nil with no error when the pool is exhausted.
func (p *Pool[T]) TryAcquire() (*Resource[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	p.requests++

	if len(p.waiters) == 0 {
		hit := len(p.idle) > 0
		growErr := p.growLocked()
		if res := p.popIdleLocked(); res != nil {
			if hit {
				p.hits++
			}
			return res, nil
		}
		if growErr != nil {
			return nil, growErr
		}
	}
	return nil, nil
}

// Release returns a resource to the pool. The oldest queued acquirer, if
// any, receives it directly; otherwise it joins the idle list. Releasing
// into a closed pool destroys the resource.
func (p *Pool[T]) Release(res *Resource[T]) error {
	if res == nil {
		return ErrNilResource
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return p.destroy(res)
	}
	res.usedAt = time.Now()

	for len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		if w.tryDeliver(res, nil) {
			p.mu.Unlock()
			return nil
		}
		// The waiter was cancelled before delivery; try the next one.
	}

	p.idle = append(p.idle, res)
	p.mu.Unlock()
	return nil
}

// Len returns the total number of resources created so far.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// IdleLen returns the number of idle resources.
func (p *Pool[T]) IdleLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Stats returns a snapshot of pool state and counters.
func (p *Pool[T]) Stats() *Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &Stats{
		Requests:  p.requests,
		Hits:      p.hits,
		Waits:     p.waits,
		Grown:     p.grown,
		Allocated: uint32(p.allocated),
		Idle:      uint32(len(p.idle)),
	}
}

// Close marks the pool closed, fails every queued acquirer with ErrClosed
// and destroys the idle resources. Resources currently held by acquirers
// are destroyed when they are released.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	waiters := p.waiters
	idle := p.idle
	p.waiters = nil
	p.idle = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w.tryDeliver(nil, ErrClosed)
	}

	var firstErr error
	for _, res := range idle {
		if err := p.destroy(res); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// popIdleLocked takes the most recently released resource, or nil.
func (p *Pool[T]) popIdleLocked() *Resource[T] {
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	res := p.idle[n-1]
	p.idle = p.idle[:n-1]
	res.usedAt = time.Now()
	return res
}

// growLocked creates min(Max-allocated, Norm-idle) new instances when the
// idle list is below the minimum, or empty, and the allocation cap leaves
// room. The first factory error stops the step; instances created before it
// are kept.
func (p *Pool[T]) growLocked() error {
	if p.allocated >= p.opts.Max {
		return nil
	}
	if idle := len(p.idle); idle > 0 && idle >= p.opts.Min {
		return nil
	}
	n := p.opts.Max - p.allocated
	if m := p.opts.Norm - len(p.idle); m < n {
		n = m
	}
	for i := 0; i < n; i++ {
		v, err := p.opts.Factory()
		if err != nil {
			logging.Logf("pool: factory failed: %v", err)
			return err
		}
		p.allocated++
		p.grown++
		now := time.Now()
		p.idle = append(p.idle, &Resource[T]{
			ID:        uuid.New(),
			Value:     v,
			CreatedAt: now,
			usedAt:    now,
		})
	}
	return nil
}

func (p *Pool[T]) removeWaiter(w *waiter[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, x := range p.waiters {
		if x == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *Pool[T]) destroy(res *Resource[T]) error {
	if p.opts.Close == nil {
		return nil
	}
	return p.opts.Close(res.Value)
}
