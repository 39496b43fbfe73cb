//go:build !unix

package shmsync

// OpenFileRegion requires mmap support and is only available on unix
// platforms. Heap-backed regions from NewRegion work everywhere.
func OpenFileRegion(path string, size int) (*Region, error) {
	return nil, ErrUnsupported
}
