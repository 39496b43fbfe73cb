package shmsync

// A Mutex is a binary semaphore that additionally tracks ownership and
// refuses release by a context that does not hold it.
//
// The lock flag is shared state in the region; the ownership flag is local
// state inside this Mutex value. The two must never be conflated: sharing
// one Mutex value between contexts destroys the ownership tracking, so each
// context attaches its own view onto the same slot.
type Mutex struct {
	cell *Cell[uint32]
	held bool
}

// NewMutex creates a mutex over the slot at offset and writes its initial
// state. Only one context should initialize a given slot; others attach
// with AttachMutex.
func NewMutex(r *Region, offset uintptr, unlocked bool) (*Mutex, error) {
	m, err := AttachMutex(r, offset)
	if err != nil {
		return nil, err
	}
	v := lockLocked
	if unlocked {
		v = lockUnlocked
	}
	m.cell.Store(v)
	return m, nil
}

// AttachMutex creates this context's view onto a mutex initialized
// elsewhere, without touching the shared lock flag. The new view starts
// out not holding the mutex.
func AttachMutex(r *Region, offset uintptr) (*Mutex, error) {
	cell, err := NewCell[uint32](r, offset)
	if err != nil {
		return nil, err
	}
	return &Mutex{cell: cell}, nil
}

// Enter blocks until the calling context holds the mutex, then records the
// ownership locally. The retry loop is the same exchange-after-every-wake
// loop as BinarySemaphore.Enter.
func (m *Mutex) Enter() {
	for {
		if m.cell.Exchange(lockLocked) == lockUnlocked {
			m.held = true
			return
		}
		m.cell.Wait(lockLocked, 0)
	}
}

// TryEnter attempts to take the mutex without blocking and reports whether
// it succeeded.
func (m *Mutex) TryEnter() bool {
	if m.cell.Exchange(lockLocked) == lockUnlocked {
		m.held = true
		return true
	}
	return false
}

// Leave releases the mutex and wakes one waiter. A context that does not
// hold the mutex gets ErrNotOwner and the shared lock flag is left
// untouched, even if it currently reads locked.
func (m *Mutex) Leave() error {
	if !m.held {
		return ErrNotOwner
	}
	m.held = false
	m.cell.Store(lockUnlocked)
	m.cell.Notify(1)
	return nil
}

// Held reports whether this context's view currently holds the mutex.
func (m *Mutex) Held() bool {
	return m.held
}
