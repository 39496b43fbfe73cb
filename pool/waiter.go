package pool

import "sync"

// A waiter is one queued acquirer. Delivery and cancellation race for the
// waiter; whichever marks it done first wins, and a resource delivered to
// an already-cancelled waiter is recovered by cancel and returned to the
// pool by the caller.
type waiter[T any] struct {
	mu     sync.Mutex // protects done and sending on result
	done   bool
	result chan waitResult[T]
}

type waitResult[T any] struct {
	res *Resource[T]
	err error
}

func newWaiter[T any]() *waiter[T] {
	return &waiter[T]{result: make(chan waitResult[T], 1)}
}

// tryDeliver hands the waiter a resource or an error. It reports false when
// the waiter was already delivered to or cancelled.
func (w *waiter[T]) tryDeliver(res *Resource[T], err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false
	}
	w.done = true
	w.result <- waitResult[T]{res: res, err: err}
	close(w.result)
	return true
}

// cancel marks the waiter done and returns the resource that was delivered
// concurrently, if any, so the caller can put it back.
func (w *waiter[T]) cancel() *Resource[T] {
	w.mu.Lock()
	defer w.mu.Unlock()

	var res *Resource[T]
	if w.done {
		select {
		case r := <-w.result:
			res = r.res
		default:
		}
	} else {
		w.done = true
		close(w.result)
	}
	return res
}
