package heap

import (
	"errors"
	"fmt"
)

const (
	// DefaultPageBytes is the production page size.
	DefaultPageBytes = 32768

	// DefaultCardBytes is the production card granule for the card-mark
	// bitmap.
	DefaultCardBytes = 512

	// DefaultGenerations is the number of normal generations. The
	// scratch generation is one extra slot on top of these.
	DefaultGenerations = 6
)

// ErrBadConfig indicates an invalid heap configuration.
var ErrBadConfig = errors.New("heap: invalid configuration")

// Config sizes a heap. All values are runtime configuration; zero fields
// take the package defaults.
type Config struct {
	// PageBytes is the size of one page. Must be a multiple of WordBytes.
	PageBytes int64

	// Pages is the number of pages in the heap. Required.
	Pages int64

	// Generations is the number of normal generations (0..Generations-1).
	// One extra transient slot, the scratch generation, is always added.
	Generations int

	// CardBytes is the card-mark granule. Must be a power of two no
	// larger than PageBytes.
	CardBytes int64
}

func (c *Config) applyDefaults() {
	if c.PageBytes == 0 {
		c.PageBytes = DefaultPageBytes
	}
	if c.CardBytes == 0 {
		c.CardBytes = DefaultCardBytes
	}
	if c.Generations == 0 {
		c.Generations = DefaultGenerations
	}
}

func (c *Config) validate() error {
	if c.Pages <= 0 {
		return fmt.Errorf("%w: page count must be positive, got %d", ErrBadConfig, c.Pages)
	}
	if c.PageBytes <= 0 || c.PageBytes%WordBytes != 0 {
		return fmt.Errorf("%w: page size %d is not a positive multiple of %d",
			ErrBadConfig, c.PageBytes, WordBytes)
	}
	if c.CardBytes <= 0 || c.CardBytes&(c.CardBytes-1) != 0 || c.CardBytes > c.PageBytes {
		return fmt.Errorf("%w: card size %d must be a power of two no larger than a page",
			ErrBadConfig, c.CardBytes)
	}
	if c.Generations < 1 || c.Generations > 254 {
		return fmt.Errorf("%w: generation count %d out of range", ErrBadConfig, c.Generations)
	}
	return nil
}

// Heap is the managed heap: its backing memory, its page table, and the
// generation byte counters.
//
// Counter and page-table mutation is not internally synchronized; the
// alloc package owns the locking discipline (see alloc.Allocator).
type Heap struct {
	cfg       Config
	data      []byte
	unmap     func() error // nil for slice-backed heaps
	table     []PTE
	gens      []Generation
	allocated int64

	pageBytes int64
	size      int64
}

// New creates a slice-backed heap. Test harnesses use this to stand up
// small heaps (a 20-page table is plenty) without touching real memory
// mapping; it is also the fallback on platforms without mmap support.
func New(cfg Config) (*Heap, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	size := cfg.Pages * cfg.PageBytes
	return newHeap(cfg, make([]byte, size), nil), nil
}

func newHeap(cfg Config, data []byte, unmap func() error) *Heap {
	return &Heap{
		cfg:       cfg,
		data:      data,
		unmap:     unmap,
		table:     make([]PTE, cfg.Pages),
		gens:      make([]Generation, cfg.Generations+1),
		pageBytes: cfg.PageBytes,
		size:      cfg.Pages * cfg.PageBytes,
	}
}

// Close releases the heap's backing memory. The heap must not be used
// afterward.
func (h *Heap) Close() error {
	h.data = nil
	h.table = nil
	if h.unmap != nil {
		unmap := h.unmap
		h.unmap = nil
		return unmap()
	}
	return nil
}

// Bytes returns the heap's backing memory. Offset 0 is the heap base.
func (h *Heap) Bytes() []byte { return h.data }

// Size returns the heap's total size in bytes.
func (h *Heap) Size() int64 { return h.size }

// PageBytes returns the configured page size.
func (h *Heap) PageBytes() int64 { return h.pageBytes }

// Pages returns the number of pages in the table.
func (h *Heap) Pages() int64 { return h.cfg.Pages }

// CardBytes returns the configured card granule.
func (h *Heap) CardBytes() int64 { return h.cfg.CardBytes }

// Config returns the configuration the heap was created with, with
// defaults applied.
func (h *Heap) Config() Config { return h.cfg }
