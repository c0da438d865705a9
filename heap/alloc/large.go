package alloc

import (
	"fmt"

	"github.com/joshuapare/genheap/heap"
)

// AllocLarge claims a contiguous run of whole pages for an object of
// nbytes that exceeds a single bump step. Every page in the run is
// marked SingleObject with the requested base type and generation, and
// every page's scan-start points back at the run's first page. The
// bytes are credited to gen and the global counter exactly, not rounded
// to page granularity.
//
// The region argument is the caller's active region for this page type;
// it is closed first so the claimed run cannot overlap pages the region
// still holds open. On an otherwise empty heap with rewound cursors the
// returned offset is 0, the heap base.
func (a *Allocator) AllocLarge(nbytes int64, pt heap.PageType, r *Region, gen int) (int64, error) {
	if nbytes <= 0 {
		panic(fmt.Sprintf("alloc: bad large-object size %d", nbytes))
	}
	if gen < 0 || gen > a.h.Scratch() {
		panic(fmt.Sprintf("alloc: generation %d out of range", gen))
	}
	a.CloseRegion(r, pt)

	a.mu.Lock()
	defer a.mu.Unlock()

	h := a.h
	pageBytes := h.PageBytes()
	base := pt.Base()
	npages := (nbytes + pageBytes - 1) / pageBytes

	first, err := a.findFreeRun(npages, base)
	if err != nil {
		return 0, err
	}

	remaining := nbytes
	for k := int64(0); k < npages; k++ {
		pte := h.PTE(first + k)
		pte.Type = base | heap.SingleObject
		pte.Gen = uint8(gen)
		pte.ScanStart = uint32(k)
		if remaining >= pageBytes {
			pte.BytesUsed = uint32(pageBytes)
		} else {
			pte.BytesUsed = uint32(remaining)
		}
		remaining -= int64(pte.BytesUsed)
	}

	h.AddAllocated(gen, nbytes)

	// Keep the small-allocation cursor consistent: the next search for
	// this type starts past the run.
	a.allocStart[base] = first + npages
	return h.PageStart(first), nil
}

// findFreeRun locates npages contiguous free pages for base type pt,
// searching from the per-type cursor. Caller holds a.mu.
func (a *Allocator) findFreeRun(npages int64, pt heap.PageType) (heap.PageIndex, error) {
	h := a.h
	pages := h.Pages()
	run := int64(0)
	for i := a.allocStart[pt.Base()]; i < pages; i++ {
		if h.PTE(i).Type != heap.Free {
			run = 0
			continue
		}
		run++
		if run == npages {
			return i - npages + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: no run of %d contiguous free pages", ErrHeapExhausted, npages)
}
