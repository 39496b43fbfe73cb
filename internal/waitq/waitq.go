// Package waitq implements the waiter parking table behind Cell.Wait and
// Cell.Notify. Waiters are keyed by their cell's payload offset, so one
// table per region serves every cell inside it.
//
// The table is process-local state: it coordinates contexts that share a
// Region value. Contexts in other processes mapping the same memory are
// reached through value polling at the cell layer, not through this table.
package waitq

import "sync"

// Waiter is one parked context. C receives exactly one signal when the
// waiter is woken; after that the waiter is no longer in the table.
type Waiter struct {
	C chan struct{}
}

// Table holds the parked waiters of one region, keyed by cell offset.
// The zero Table is not usable; call New.
type Table struct {
	mu      sync.Mutex
	waiters map[uintptr][]*Waiter
}

// New creates an empty parking table.
func New() *Table {
	return &Table{
		waiters: make(map[uintptr][]*Waiter),
	}
}

// Add registers a new waiter under key and returns it. The caller must
// either receive from the waiter's channel or call Remove before dropping
// the waiter.
func (t *Table) Add(key uintptr) *Waiter {
	w := &Waiter{C: make(chan struct{}, 1)}
	t.mu.Lock()
	t.waiters[key] = append(t.waiters[key], w)
	t.mu.Unlock()
	return w
}

// Remove unregisters w from key. It reports whether w was still parked:
// false means a Wake already claimed w, and a signal is (or will be)
// available on w.C. The caller must treat that case as a wake so the
// signal is never lost.
func (t *Table) Remove(key uintptr, w *Waiter) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.waiters[key]
	for i, x := range list {
		if x != w {
			continue
		}
		copy(list[i:], list[i+1:])
		list = list[:len(list)-1]
		if len(list) == 0 {
			delete(t.waiters, key)
		} else {
			t.waiters[key] = list
		}
		return true
	}
	return false
}

// Wake signals up to max waiters parked under key and returns the number
// actually woken. Which waiters are woken is unspecified. Waiters are
// unlinked from the table before they are signalled, so each waiter
// receives at most one signal in its lifetime.
func (t *Table) Wake(key uintptr, max int) int {
	if max <= 0 {
		return 0
	}

	t.mu.Lock()
	list := t.waiters[key]
	n := max
	if n > len(list) {
		n = len(list)
	}
	woken := list[:n]
	rest := list[n:]
	if len(rest) == 0 {
		delete(t.waiters, key)
	} else {
		t.waiters[key] = rest
	}
	t.mu.Unlock()

	// Each channel has capacity 1 and the waiter has been unlinked, so
	// these sends cannot block.
	for _, w := range woken {
		w.C <- struct{}{}
	}
	return n
}

// Pending returns the number of waiters currently parked under key.
func (t *Table) Pending(key uintptr) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters[key])
}
