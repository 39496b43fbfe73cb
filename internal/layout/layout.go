// Package layout defines the on-memory format of a shared region header.
// The header is the only structure this module imposes on shared memory;
// everything after it belongs to the caller. All header fields are accessed
// atomically because multiple contexts may race to initialize the region.
package layout

// Magic identifies a region header that has been claimed by a primary
// context. It is a random 64-bit value used to detect initialization.
const Magic uint64 = 0xa4c1f30b5d97e602

// Flag carries region readiness bits.
type Flag uint64

const (
	FlagReserved Flag = 1 << iota // Reserved for future use
	FlagReady                     // Header fully written, payload usable
)

// Header sits at the very start of every shared region, before the payload.
//
// The memory layout is:
//
//	[Header (64 bytes)][Payload]
//
// The first context to compare-and-swap Magic into place becomes the
// primary and fills in the remaining fields; attaching contexts spin until
// FlagReady is set and then verify Tag against the region name they expect.
type Header struct {
	Magic uint64    // Initialization marker, CAS-claimed by the primary
	Tag   uint64    // xxhash of the region name, verified on attach
	Size  uint64    // Payload size in bytes
	Flag  uint64    // Readiness flags
	_     [4]uint64 // Padding up to HeaderSize
}

// HeaderSize is the number of bytes reserved for the header. The payload
// starts at this offset from the region base.
const HeaderSize = 64

// Align rounds n up to the next multiple of a. a must be a power of 2.
func Align(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}
