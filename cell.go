package shmsync

import (
	"sync/atomic"
	"time"
	"unsafe"
)

// pollInterval is how often a parked waiter re-reads its cell. Polling is
// the fallback wake path for value changes made by contexts that cannot
// reach this mapping's waiter table, such as another process writing the
// same file-backed region.
const pollInterval = time.Millisecond

// Word is the set of integer widths a cell can occupy.
type Word interface {
	~uint32 | ~uint64
}

// A Cell is a view onto one fixed-width integer slot inside a region,
// identified by its byte offset into the payload. Constructing a cell
// allocates nothing in the region; any number of contexts may hold views
// onto the same slot.
//
// All access to the slot must go through the cell's atomic operations.
// Reading or writing the underlying bytes directly breaks every guarantee
// the primitives built on top of it rely on.
type Cell[T Word] struct {
	region *Region
	offset uintptr
	addr   uintptr
}

// NewCell creates a view onto the slot at the given payload offset. The
// offset must be a multiple of the cell width and the slot must lie fully
// inside the region.
func NewCell[T Word](r *Region, offset uintptr) (*Cell[T], error) {
	width := unsafe.Sizeof(*new(T))
	if offset%width != 0 {
		return nil, ErrMisaligned
	}
	// Reject out-of-range offsets before the addition so a huge offset
	// cannot wrap around the bounds check.
	if offset >= uintptr(r.size) || offset+width > uintptr(r.size) {
		return nil, ErrCellRange
	}
	return &Cell[T]{region: r, offset: offset, addr: r.base + offset}, nil
}

// Offset returns the cell's byte offset into the region payload.
func (c *Cell[T]) Offset() uintptr {
	return c.offset
}

func (c *Cell[T]) is32() bool {
	return unsafe.Sizeof(*new(T)) == 4
}

func (c *Cell[T]) p32() *uint32 {
	return (*uint32)(unsafe.Pointer(c.addr))
}

func (c *Cell[T]) p64() *uint64 {
	return (*uint64)(unsafe.Pointer(c.addr))
}

// Load atomically reads the slot.
func (c *Cell[T]) Load() T {
	if c.is32() {
		return T(atomic.LoadUint32(c.p32()))
	}
	return T(atomic.LoadUint64(c.p64()))
}

// Store atomically writes v and returns the value the slot held before.
func (c *Cell[T]) Store(v T) T {
	return c.Exchange(v)
}

// Exchange atomically swaps v into the slot and returns the prior value.
func (c *Cell[T]) Exchange(v T) T {
	if c.is32() {
		return T(atomic.SwapUint32(c.p32(), uint32(v)))
	}
	return T(atomic.SwapUint64(c.p64(), uint64(v)))
}

// Add atomically adds delta to the slot and returns the value before the
// addition.
func (c *Cell[T]) Add(delta T) T {
	if c.is32() {
		d := uint32(delta)
		return T(atomic.AddUint32(c.p32(), d) - d)
	}
	d := uint64(delta)
	return T(atomic.AddUint64(c.p64(), d) - d)
}

// Sub atomically subtracts delta from the slot and returns the value before
// the subtraction.
func (c *Cell[T]) Sub(delta T) T {
	if c.is32() {
		d := uint32(delta)
		return T(atomic.AddUint32(c.p32(), -d) + d)
	}
	d := uint64(delta)
	return T(atomic.AddUint64(c.p64(), -d) + d)
}

// CompareExchange atomically replaces the slot's value with replacement if
// it currently equals expected. It always returns the value the slot held
// before the attempt, so the caller distinguishes success (the returned
// value equals expected) from failure (it does not).
func (c *Cell[T]) CompareExchange(expected, replacement T) T {
	for {
		cur := c.Load()
		if cur != expected {
			return cur
		}
		if c.is32() {
			if atomic.CompareAndSwapUint32(c.p32(), uint32(expected), uint32(replacement)) {
				return expected
			}
		} else {
			if atomic.CompareAndSwapUint64(c.p64(), uint64(expected), uint64(replacement)) {
				return expected
			}
		}
		// Lost a race between the load and the swap; re-read and re-decide.
	}
}

// Wait blocks the calling context until the slot's value differs from
// expected, a Notify wakes it, or the timeout elapses. A timeout of 0 waits
// forever.
//
// WaitNotEqual is returned without blocking when the value already differs.
// While parked, the waiter wakes on a Notify (WaitOK) or when a poll tick
// observes the value changed without a notify reaching this mapping, which
// is also reported as WaitOK. A notify that arrives together with the
// timeout counts as a wake, never as WaitTimedOut.
func (c *Cell[T]) Wait(expected T, timeout time.Duration) WaitResult {
	if c.Load() != expected {
		return WaitNotEqual
	}

	w := c.region.waiters.Add(c.offset)

	// Re-check after registering. A change between the first load and the
	// registration would otherwise be a lost wake-up: the notifier saw an
	// empty table, and we would park forever.
	if c.Load() != expected {
		c.region.waiters.Remove(c.offset, w)
		return WaitNotEqual
	}

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-w.C:
			return WaitOK

		case <-timeoutC:
			if !c.region.waiters.Remove(c.offset, w) {
				// A notify claimed this waiter at the same moment; the
				// wake wins so it is not lost.
				return WaitOK
			}
			return WaitTimedOut

		case <-poll.C:
			if c.Load() != expected {
				c.region.waiters.Remove(c.offset, w)
				return WaitOK
			}
		}
	}
}

// Notify wakes up to maxWoken contexts currently blocked in Wait on this
// cell and returns the number actually woken. Which waiters wake is
// unspecified.
func (c *Cell[T]) Notify(maxWoken int) int {
	return c.region.waiters.Wake(c.offset, maxWoken)
}
