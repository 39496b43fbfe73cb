package shmsync

// Lock flag values shared by BinarySemaphore and Mutex.
const (
	lockLocked   uint32 = 0
	lockUnlocked uint32 = 1
)

// A BinarySemaphore provides mutual exclusion over a critical section
// shared by any number of contexts, using one 32-bit cell as the lock flag.
//
// Any context may release the semaphore, not only the one that entered it.
// Use Mutex when releases must be restricted to the holder.
type BinarySemaphore struct {
	cell *Cell[uint32]
}

// NewBinarySemaphore creates a binary semaphore over the slot at offset and
// writes its initial state. unlocked true means the first Enter succeeds
// immediately. Only one context should initialize a given slot; others
// attach with AttachBinarySemaphore.
func NewBinarySemaphore(r *Region, offset uintptr, unlocked bool) (*BinarySemaphore, error) {
	s, err := AttachBinarySemaphore(r, offset)
	if err != nil {
		return nil, err
	}
	v := lockLocked
	if unlocked {
		v = lockUnlocked
	}
	s.cell.Store(v)
	return s, nil
}

// AttachBinarySemaphore creates a view onto a binary semaphore initialized
// elsewhere, without touching its state.
func AttachBinarySemaphore(r *Region, offset uintptr) (*BinarySemaphore, error) {
	cell, err := NewCell[uint32](r, offset)
	if err != nil {
		return nil, err
	}
	return &BinarySemaphore{cell: cell}, nil
}

// Enter blocks until the calling context holds the semaphore.
//
// The exchange is re-attempted after every wake: another context may have
// re-locked between the wake and the retry, so a single wait-then-set is
// not sufficient.
func (s *BinarySemaphore) Enter() {
	for {
		if s.cell.Exchange(lockLocked) == lockUnlocked {
			return
		}
		s.cell.Wait(lockLocked, 0)
	}
}

// TryEnter attempts to take the semaphore without blocking and reports
// whether it succeeded.
func (s *BinarySemaphore) TryEnter() bool {
	return s.cell.Exchange(lockLocked) == lockUnlocked
}

// Leave releases the semaphore and wakes one waiter. Releasing a semaphore
// that is already unlocked is a programmer error reported as ErrNotLocked;
// the shared state is left untouched so other contexts' view of the lock
// stays consistent.
func (s *BinarySemaphore) Leave() error {
	if s.cell.Load() == lockUnlocked {
		return ErrNotLocked
	}
	s.cell.Store(lockUnlocked)
	// Wake exactly one waiter; waking more only causes the losers to
	// re-lock nothing and park again.
	s.cell.Notify(1)
	return nil
}

// A CountingSemaphore bounds concurrent access to a set of interchangeable
// permits. The cell value is the number of permits currently available;
// zero means every permit is taken.
type CountingSemaphore struct {
	cell *Cell[uint32]
}

// NewCountingSemaphore creates a counting semaphore over the slot at offset
// and writes its initial permit count. Only one context should initialize a
// given slot; others attach with AttachCountingSemaphore.
func NewCountingSemaphore(r *Region, offset uintptr, initial uint32) (*CountingSemaphore, error) {
	s, err := AttachCountingSemaphore(r, offset)
	if err != nil {
		return nil, err
	}
	s.cell.Store(initial)
	return s, nil
}

// AttachCountingSemaphore creates a view onto a counting semaphore
// initialized elsewhere, without touching its count.
func AttachCountingSemaphore(r *Region, offset uintptr) (*CountingSemaphore, error) {
	cell, err := NewCell[uint32](r, offset)
	if err != nil {
		return nil, err
	}
	return &CountingSemaphore{cell: cell}, nil
}

// Enter blocks until the calling context has taken one permit.
//
// The decrement is a compare-exchange verified against the value the
// context read, looped until it lands. Waiting for a non-zero count and
// then subtracting unconditionally is unsafe: a second context can take the
// last permit between the wait returning and the subtraction, pushing the
// count below zero.
func (s *CountingSemaphore) Enter() {
	for {
		s.cell.Wait(0, 0)
		n := s.cell.Load()
		if n == 0 {
			continue
		}
		if s.cell.CompareExchange(n, n-1) == n {
			return
		}
	}
}

// TryEnter attempts to take one permit without blocking and reports whether
// it succeeded.
func (s *CountingSemaphore) TryEnter() bool {
	n := s.cell.Load()
	return n > 0 && s.cell.CompareExchange(n, n-1) == n
}

// Leave returns one permit and wakes one waiter.
func (s *CountingSemaphore) Leave() {
	s.cell.Add(1)
	s.cell.Notify(1)
}

// Permits returns the number of permits currently available.
func (s *CountingSemaphore) Permits() uint32 {
	return s.cell.Load()
}
