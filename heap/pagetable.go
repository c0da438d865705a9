package heap

import "fmt"

// WordBytes is the size of one heap word. Object lengths are measured in
// words; page usage is measured in bytes.
const WordBytes = 8

// PageIndex addresses one page-table entry. NoPage is the sentinel
// returned for addresses outside the heap.
type PageIndex = int64

// NoPage is returned by FindPageIndex for out-of-heap offsets.
const NoPage PageIndex = -1

// PageType packs a page's base type together with two orthogonal flag
// bits. The base type says what kind of data the page holds; the flags
// say how the page is currently being used.
//
// Layout (low to high):
//
//	bits 0-2  base type (Free, Boxed, Unboxed, Mixed, Code)
//	bit  3    SingleObject - page holds exactly one object, which may
//	          span onto following pages
//	bit  4    OpenRegion - page is part of a live allocation region and
//	          must not be treated as free or scanned as if closed
type PageType uint8

const (
	Free    PageType = 0
	Boxed   PageType = 1
	Unboxed PageType = 2
	Mixed   PageType = 3
	Code    PageType = 4

	// SingleObject marks a page holding exactly one (possibly
	// page-spanning) object.
	SingleObject PageType = 1 << 3

	// OpenRegion marks a page currently claimed by a live region.
	OpenRegion PageType = 1 << 4

	baseTypeMask PageType = 0x07
)

// NumBaseTypes is the number of distinct base page types, including Free.
const NumBaseTypes = 5

// Base strips the flag bits and returns the page's base type.
func (t PageType) Base() PageType { return t & baseTypeMask }

// IsSingleObject reports whether the page holds a single spanning object.
func (t PageType) IsSingleObject() bool { return t&SingleObject != 0 }

// IsOpenRegion reports whether the page belongs to a live region.
func (t PageType) IsOpenRegion() bool { return t&OpenRegion != 0 }

// IsCode reports whether the page holds executable code objects. A
// scanner interprets code pages differently from data pages.
func (t PageType) IsCode() bool { return t.Base() == Code }

func (t PageType) String() string {
	var base string
	switch t.Base() {
	case Free:
		base = "free"
	case Boxed:
		base = "boxed"
	case Unboxed:
		base = "unboxed"
	case Mixed:
		base = "mixed"
	case Code:
		base = "code"
	default:
		base = fmt.Sprintf("type%d", uint8(t.Base()))
	}
	if t.IsSingleObject() {
		base += "+single"
	}
	if t.IsOpenRegion() {
		base += "+open"
	}
	return base
}

// PTE is one page-table entry. The zero value describes a free page.
type PTE struct {
	// ScanStart is the backward distance, in pages, to the page where
	// the object overlapping this page begins. Zero means the page
	// starts its own object (or is free).
	ScanStart uint32

	// BytesUsed is the number of bytes of valid data on the page.
	// Always zero for free pages, never more than the page size.
	BytesUsed uint32

	// Type is the page's base type plus flags.
	Type PageType

	// Gen is the generation the page's data belongs to. Meaningless
	// while Type is Free.
	Gen uint8
}

// PTE returns a pointer to page i's table entry. The caller may mutate
// it; the alloc package is the only writer outside of tests.
func (h *Heap) PTE(i PageIndex) *PTE {
	return &h.table[i]
}

// PageFree reports whether page i's type is Free.
func (h *Heap) PageFree(i PageIndex) bool {
	return h.table[i].Type == Free
}

// FindPageIndex maps a heap offset to the index of the page containing
// it, or NoPage if the offset is outside the heap.
func (h *Heap) FindPageIndex(off int64) PageIndex {
	if off < 0 || off >= h.size {
		return NoPage
	}
	return off / h.pageBytes
}

// PageStart returns the heap offset of the first byte of page i.
func (h *Heap) PageStart(i PageIndex) int64 { return i * h.pageBytes }

// PageEnd returns the heap offset one past the last byte of page i.
func (h *Heap) PageEnd(i PageIndex) int64 { return (i + 1) * h.pageBytes }

// ScanStartPage resolves page i's scan-start offset to the index of the
// page where the overlapping object begins.
func (h *Heap) ScanStartPage(i PageIndex) PageIndex {
	return i - int64(h.table[i].ScanStart)
}
