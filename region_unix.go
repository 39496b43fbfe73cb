//go:build unix

package shmsync

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/unix"

	"gosuda.org/shmsync/internal/layout"
	"gosuda.org/shmsync/internal/waitq"
)

// pagesize stores the system page size for mapping alignment
var pagesize = uintptr(unix.Getpagesize())

// OpenFileRegion creates or joins a shared region backed by the file at
// path. The file is grown to the required length and mapped MAP_SHARED, so
// every process (or every independent mapping within one process) that
// opens the same path sees the same payload.
//
// The first opener initializes the region header and reports Primary; later
// openers attach and validate that the header carries the tag derived from
// path. Note that wake-ups via Notify only reach waiters on the same
// mapping; waiters on other mappings observe value changes through polling.
func OpenFileRegion(path string, size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrRegionSize
	}
	payload := layout.Align(uintptr(size), 8)
	total := int(layout.Align(layout.HeaderSize+payload, pagesize))

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o644)
	if err != nil {
		return nil, err
	}

	// Only ever grow the backing file. Shrinking it would pull pages out
	// from under the mappings of regions already attached to this path;
	// a size mismatch is caught against the header during attach instead.
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if st.Size < int64(total) {
		if err := unix.Ftruncate(fd, int64(total)); err != nil {
			unix.Close(fd)
			return nil, err
		}
	}

	data, err := unix.Mmap(fd, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	r := &Region{
		name:    path,
		size:    int(payload),
		base:    uintptr(unsafe.Pointer(&data[0])) + layout.HeaderSize,
		data:    data,
		waiters: waitq.New(),
		closeFn: func() error {
			if err := unix.Munmap(data); err != nil {
				unix.Close(fd)
				return err
			}
			return unix.Close(fd)
		},
	}

	primary, err := initOrAttach(uintptr(unsafe.Pointer(&data[0])), r.size, xxhash.Sum64String(path), attachTimeout)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.primary = primary
	return r, nil
}
