//go:build !unix

package heap

// NewMapped falls back to a slice-backed heap on platforms without an
// anonymous mmap path.
func NewMapped(cfg Config) (*Heap, error) {
	return New(cfg)
}
