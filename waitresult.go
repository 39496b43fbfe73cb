package shmsync

//go:generate go tool stringer -type=WaitResult

// WaitResult reports why Cell.Wait returned. A timeout is a normal result,
// not an error.
type WaitResult int

const (
	// WaitOK means the waiter was woken, either by a matching Notify or by
	// observing that the cell's value changed while parked.
	WaitOK WaitResult = iota

	// WaitNotEqual means the cell's value already differed from the
	// expected value, so the call returned without blocking.
	WaitNotEqual

	// WaitTimedOut means the timeout elapsed before any wake arrived.
	WaitTimedOut
)
