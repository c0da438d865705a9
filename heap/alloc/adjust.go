package alloc

import (
	"fmt"

	"github.com/joshuapare/genheap/heap"
)

// AdjustPTEs shrinks the object beginning on firstPage to newWords
// words, reassigns it to newGen and newType, frees the trailing pages,
// and returns the number of bytes freed.
//
// The collector calls this after measuring or relocating an object. The
// resulting page-table contents are bit-for-bit identical to what a
// direct allocation of a newWords-word object at newType/newGen would
// have produced, regardless of the original size and of whether the
// shrink lands on a page boundary.
//
// Counters move exactly: the old generation is debited the object's
// entire previous footprint, the new generation is credited the bytes
// that remain, and the global counter drops by the difference.
//
// Growing is not supported; a newWords larger than the object's current
// length panics rather than corrupting metadata.
func (a *Allocator) AdjustPTEs(firstPage heap.PageIndex, newWords int64, newGen int, newType heap.PageType) (int64, error) {
	h := a.h
	if firstPage < 0 || firstPage >= h.Pages() {
		return 0, fmt.Errorf("%w: page %d out of bounds", ErrBadPage, firstPage)
	}
	if h.PTE(firstPage).Type == heap.Free {
		return 0, fmt.Errorf("%w: page %d is free", ErrBadPage, firstPage)
	}
	if h.PTE(firstPage).ScanStart != 0 {
		return 0, fmt.Errorf("%w: page %d is not the start of an object", ErrBadPage, firstPage)
	}
	if newGen < 0 || newGen > h.Scratch() {
		panic(fmt.Sprintf("alloc: generation %d out of range", newGen))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pageBytes := h.PageBytes()

	// Walk the object's current extent. Pages belong to it while their
	// scan-start keeps pointing back at firstPage; a partial page ends
	// the object.
	oldBytes := int64(0)
	last := firstPage
	for i := firstPage; i < h.Pages(); i++ {
		pte := h.PTE(i)
		if i > firstPage && (pte.Type == heap.Free || int64(pte.ScanStart) != i-firstPage) {
			break
		}
		oldBytes += int64(pte.BytesUsed)
		last = i
		if int64(pte.BytesUsed) < pageBytes {
			break
		}
	}

	newBytes := newWords * heap.WordBytes
	if newBytes > oldBytes {
		panic(fmt.Sprintf("alloc: grow-in-place unsupported: object on page %d is %d bytes, requested %d",
			firstPage, oldBytes, newBytes))
	}
	oldGen := int(h.PTE(firstPage).Gen)
	freed := oldBytes - newBytes

	newPages := (newBytes + pageBytes - 1) / pageBytes
	remaining := newBytes
	for k := int64(0); k < newPages; k++ {
		pte := h.PTE(firstPage + k)
		pte.Type = newType
		pte.Gen = uint8(newGen)
		pte.ScanStart = uint32(k)
		if remaining >= pageBytes {
			pte.BytesUsed = uint32(pageBytes)
		} else {
			pte.BytesUsed = uint32(remaining)
		}
		remaining -= int64(pte.BytesUsed)
	}
	for i := firstPage + newPages; i <= last; i++ {
		*h.PTE(i) = heap.PTE{}
	}

	h.AddAllocated(oldGen, -oldBytes)
	h.AddAllocated(newGen, newBytes)
	return freed, nil
}
