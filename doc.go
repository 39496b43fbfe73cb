// Package shmsync provides shared-memory synchronization primitives:
// atomic cells with blocking wait/notify semantics, binary and counting
// semaphores, and an ownership-tracking mutex, all operating on slots
// inside a jointly owned memory region.
//
// # Layering
//
// The package is built in layers, each depending only on the one below it:
//
//   - Region: a contiguous block of memory shared by N execution contexts,
//     heap-backed (NewRegion) or file-backed via mmap (OpenFileRegion).
//   - Cell: a view onto one 32- or 64-bit slot inside a region, exposing
//     atomic load/store/add/sub/exchange/compare-exchange plus a blocking
//     Wait and a Notify that wakes parked waiters.
//   - BinarySemaphore, CountingSemaphore, Mutex: mutual exclusion and
//     permit counting built on a single cell each, with retry loops that
//     re-attempt their atomic transition after every wake.
//
// The separate pool subpackage layers a bounded resource pool on top for
// single-process consumers.
//
// # Contexts
//
// An execution context is whatever runs concurrently against the region:
// goroutines sharing a *Region value, or processes mapping the same
// file-backed region. Notify reaches waiters registered on the same Region
// value directly; waiters on other mappings of the same file observe value
// changes through a short poll while parked, so no busy-waiting occurs in
// either case.
//
// # Initialization protocol
//
// Every region starts with a small header. The first context to claim it
// (by compare-and-swap on a magic number) becomes the primary and
// initializes the header; later contexts attach, wait for the readiness
// flag, and verify a hash of the region name. The same primary/attach split
// applies to the primitives: New* constructors write the initial value,
// Attach* constructors build a view without writing.
//
// # Errors
//
// Contention timeouts are ordinary WaitResult values, not errors. Protocol
// violations (releasing an unlocked semaphore, releasing a mutex the caller
// does not hold) are reported as sentinel errors and leave the shared state
// untouched. Nothing in this package terminates the process.
package shmsync
