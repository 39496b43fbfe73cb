package shmsync

import "errors"

// Error definitions for region and primitive operations.
// All of these are recoverable by the caller; the library never terminates
// the process on its own.
var (
	ErrRegionSize  = errors.New("shmsync: invalid region size")
	ErrRegionTag   = errors.New("shmsync: region name does not match attached memory")
	ErrFailedInit  = errors.New("shmsync: timed out waiting for region initialization")
	ErrMisaligned  = errors.New("shmsync: cell offset is not aligned to its width")
	ErrCellRange   = errors.New("shmsync: cell does not fit inside the region")
	ErrNotLocked   = errors.New("shmsync: semaphore released while unlocked")
	ErrNotOwner    = errors.New("shmsync: mutex released by a context that does not hold it")
	ErrUnsupported = errors.New("shmsync: file-backed regions are not supported on this platform")
)
