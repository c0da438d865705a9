//go:build unix

package heap

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// NewMapped creates a heap backed by an anonymous, page-aligned memory
// mapping. Production heaps use this; the mapping is sized and zeroed up
// front because the heap's maximum size is fixed at process start.
func NewMapped(cfg Config) (*Heap, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	size := cfg.Pages * cfg.PageBytes
	if size > int64(^uint(0)>>1) {
		return nil, fmt.Errorf("heap: %d bytes too large to map", size)
	}
	data, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("heap: map %d bytes: %w", size, err)
	}
	unmap := func() error {
		err := unix.Munmap(data)
		if errors.Is(err, unix.EINVAL) {
			// Double unmap is a no-op for callers.
			return nil
		}
		return err
	}
	return newHeap(cfg, data, unmap), nil
}
