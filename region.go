package shmsync

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"gosuda.org/shmsync/internal/layout"
	"gosuda.org/shmsync/internal/waitq"
)

// attachTimeout bounds how long an attaching context spins waiting for the
// primary to finish writing the region header.
const attachTimeout = time.Second

// A Region is a contiguous block of memory shared by multiple execution
// contexts. It is allocated once, never resized, and jointly owned for its
// entire lifetime: close it only after every context using it has finished.
//
// All cross-context coordination inside a region goes through Cell views;
// no other mutation path is permitted while cells are live.
type Region struct {
	name    string // Identifier of the region, hashed into the header tag
	size    int    // Payload size in bytes
	base    uintptr
	data    []byte // Full backing memory including the header, keeps it alive
	primary bool
	waiters *waitq.Table
	closeFn func() error // Releases the backing memory, nil for heap regions
}

// NewRegion allocates a heap-backed region with at least size payload bytes
// (rounded up to an 8-byte multiple) and initializes its header. The region
// is shared by handing the *Region value to other goroutines.
//
// For memory shared between independent processes, use OpenFileRegion.
func NewRegion(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrRegionSize
	}
	payload := layout.Align(uintptr(size), 8)
	total := layout.HeaderSize + payload

	// A uint64 slab guarantees the 8-byte alignment the atomic primitives
	// require; the byte view is reconstructed over it.
	slab := make([]uint64, total/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&slab[0])), total)

	r := &Region{
		name:    name,
		size:    int(payload),
		base:    uintptr(unsafe.Pointer(&slab[0])) + layout.HeaderSize,
		data:    data,
		waiters: waitq.New(),
	}

	primary, err := initOrAttach(uintptr(unsafe.Pointer(&slab[0])), r.size, xxhash.Sum64String(name), attachTimeout)
	if err != nil {
		return nil, err
	}
	r.primary = primary
	return r, nil
}

// Name returns the identifier the region was created with.
func (r *Region) Name() string {
	return r.name
}

// Size returns the payload size in bytes.
func (r *Region) Size() int {
	return r.size
}

// Primary reports whether this context initialized the region header, as
// opposed to attaching to one initialized elsewhere.
func (r *Region) Primary() bool {
	return r.primary
}

// Bytes returns the payload as a byte slice. Memory covered by live cells
// must only be touched through the cell's atomic operations.
func (r *Region) Bytes() []byte {
	return r.data[layout.HeaderSize:]
}

// Close releases the backing memory. For file-backed regions this unmaps
// the file; heap-backed regions are reclaimed by the garbage collector.
// Cells created from the region must not be used afterwards.
func (r *Region) Close() error {
	if r.closeFn == nil {
		return nil
	}
	fn := r.closeFn
	r.closeFn = nil
	r.data = nil
	return fn()
}

// initOrAttach claims or joins the region header at base. The first context
// to compare-and-swap the magic number becomes the primary and writes the
// remaining header fields; every other context spins until the readiness
// flag appears, then validates the tag and size. Returns whether this
// context is the primary.
func initOrAttach(base uintptr, size int, tag uint64, timeout time.Duration) (bool, error) {
	h := (*layout.Header)(unsafe.Pointer(base))

	magic := atomic.LoadUint64(&h.Magic)
	if magic != layout.Magic && atomic.CompareAndSwapUint64(&h.Magic, magic, layout.Magic) {
		atomic.StoreUint64(&h.Tag, tag)
		atomic.StoreUint64(&h.Size, uint64(size))
		atomic.StoreUint64(&h.Flag, uint64(layout.FlagReady))
		return true, nil
	}

	// Another context won the race to initialize; wait for it to finish.
	start := time.Now()
	for {
		flag := layout.Flag(atomic.LoadUint64(&h.Flag))
		if atomic.LoadUint64(&h.Magic) == layout.Magic && flag&layout.FlagReady != 0 {
			if atomic.LoadUint64(&h.Tag) != tag {
				return false, ErrRegionTag
			}
			if atomic.LoadUint64(&h.Size) != uint64(size) {
				return false, ErrRegionSize
			}
			return false, nil
		}
		if timeout > 0 && time.Since(start) >= timeout {
			return false, ErrFailedInit
		}
		runtime.Gosched()
	}
}
