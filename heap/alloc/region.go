package alloc

import (
	"fmt"
	"sync"

	"github.com/joshuapare/genheap/heap"
)

// Region is a bump-pointer allocator bound to one page, or a short run
// of pages, for the duration of one allocation burst. Each mutator
// thread (and the collector) owns its own regions, one per page type it
// is actively allocating into, so the bump fast path needs no
// synchronization.
//
// A freshly created or Reset region is unbound: LastPage is NoPage and
// the offsets are meaningless until NewRegion binds it.
type Region struct {
	// Start is the heap offset at which the region began handing out
	// bytes. The page containing Start is the first page carrying the
	// OpenRegion flag for this region.
	Start int64

	// Free is the bump pointer: the next allocation begins here.
	Free int64

	// End is one past the last byte the region may hand out, always a
	// page boundary.
	End int64

	// LastPage is the index of the region's tail page, or NoPage while
	// the region is unbound.
	LastPage heap.PageIndex

	// Type is the base page type the region was opened with.
	Type heap.PageType
}

// Reset returns the region to the unbound state. A region must be
// either Reset or closed before a global heap operation runs.
func (r *Region) Reset() {
	r.Start = 0
	r.Free = 0
	r.End = 0
	r.LastPage = heap.NoPage
	r.Type = heap.Free
}

// Bound reports whether the region currently holds pages.
func (r *Region) Bound() bool { return r.LastPage != heap.NoPage }

// Remaining returns the unused capacity on the region's current pages.
func (r *Region) Remaining() int64 {
	if !r.Bound() {
		return 0
	}
	return r.End - r.Free
}

// Allocator hands out pages from a heap. It owns the per-type
// alloc-start cursors and the one lock in the system: claiming pages
// (and any other page-table or counter mutation) is serialized on mu;
// bump allocation within an already-bound region is not.
type Allocator struct {
	h *heap.Heap

	mu         sync.Mutex
	gen        int
	allocStart [heap.NumBaseTypes]heap.PageIndex

	ctxRegistry sync.Mutex
	ctxs        map[*Context]struct{}
}

// New creates an allocator over h, allocating into generation 0.
func New(h *heap.Heap) *Allocator {
	return &Allocator{
		h:    h,
		ctxs: make(map[*Context]struct{}),
	}
}

// Heap returns the heap the allocator serves.
func (a *Allocator) Heap() *heap.Heap { return a.h }

// Generation returns the generation new allocations are attributed to.
func (a *Allocator) Generation() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

// SetGeneration switches the target generation for subsequent
// allocations. The collector points this at the scratch generation while
// relocating objects.
func (a *Allocator) SetGeneration(g int) {
	if g < 0 || g > a.h.Scratch() {
		panic(fmt.Sprintf("alloc: generation %d out of range", g))
	}
	a.mu.Lock()
	a.gen = g
	a.mu.Unlock()
}

// ResetAllocStartPages rewinds every per-type cursor to page 0, so the
// next freeish-page search scans from the start of the heap. Called
// between independent allocation bursts, e.g. at the start of a
// collection pass.
func (a *Allocator) ResetAllocStartPages() {
	a.mu.Lock()
	for i := range a.allocStart {
		a.allocStart[i] = 0
	}
	a.mu.Unlock()
}

// findRun locates the next run of pages able to hold nbytes for base
// type pt, starting at the remembered cursor. The run's first page is
// either free or a partially filled page of the same type and
// generation; pages after the first must be wholly free.
//
// A page with zero bytes of remaining capacity is never selected as the
// start: the region's start address would land on the following page,
// and CloseRegion would then clear OpenRegion from the wrong range.
//
// Caller holds a.mu.
func (a *Allocator) findRun(nbytes int64, pt heap.PageType) (heap.PageIndex, heap.PageIndex, error) {
	h := a.h
	pageBytes := h.PageBytes()
	base := pt.Base()
	pages := h.Pages()

	for first := a.allocStart[base]; first < pages; first++ {
		pte := h.PTE(first)

		if pte.Type != heap.Free {
			// A partially filled page of the right type and generation
			// may be restarted, but only if the request fits in its own
			// remainder: a region never spans from a used page onto a
			// fresh one, so the single-open-page postcondition holds.
			// Pages open in a live region belong to that region alone;
			// its owner extends them through the region itself, never
			// through the search.
			if pte.Type.Base() != base || pte.Type.IsSingleObject() ||
				pte.Type.IsOpenRegion() ||
				int(pte.Gen) != a.gen || int64(pte.BytesUsed) >= pageBytes {
				continue
			}
			if pageBytes-int64(pte.BytesUsed) >= nbytes {
				return first, first, nil
			}
			continue
		}

		// Fresh page; extend with following free pages for requests
		// larger than one page.
		avail := pageBytes
		end := first
		for avail < nbytes && end+1 < pages && h.PTE(end+1).Type == heap.Free {
			end++
			avail += pageBytes
		}
		if avail >= nbytes {
			return first, end, nil
		}
		// Run too short; resume scanning past the pages just rejected.
		first = end
	}
	return 0, 0, fmt.Errorf("%w: no freeish page run for %d bytes of %v",
		ErrHeapExhausted, nbytes, pt)
}

// NewRegion ensures r can satisfy an allocation of nbytes for page type
// pt and returns the heap offset at which that allocation begins. If the
// region's current pages already have room (and wantNewPage is false)
// they are reused; otherwise the region is closed and rebound to the
// next freeish run, every page of which is marked OpenRegion with the
// requested type and the current allocation generation.
//
// A bound region serves exactly the base type it was opened with;
// asking it for a different type panics rather than handing out bytes
// on pages of the wrong type.
func (a *Allocator) NewRegion(nbytes int64, pt heap.PageType, r *Region, wantNewPage bool) (int64, error) {
	if r.Bound() && pt.Base() != r.Type {
		panic(fmt.Sprintf("alloc: region is bound for %v, requested %v", r.Type, pt.Base()))
	}
	if r.Bound() && !wantNewPage && r.Remaining() >= nbytes {
		return r.Free, nil
	}
	// Current pages cannot satisfy the request; fold them back into the
	// page table before claiming new ones.
	a.CloseRegion(r, pt)

	a.mu.Lock()
	defer a.mu.Unlock()

	first, end, err := a.findRun(nbytes, pt)
	if err != nil {
		return 0, err
	}

	h := a.h
	base := pt.Base()
	for i := first; i <= end; i++ {
		pte := h.PTE(i)
		if pte.Type == heap.Free {
			pte.Gen = uint8(a.gen)
			pte.ScanStart = uint32(i - first)
			pte.BytesUsed = 0
		}
		pte.Type = base | heap.OpenRegion
	}

	r.Start = h.PageStart(first) + int64(h.PTE(first).BytesUsed)
	r.Free = r.Start
	r.End = h.PageEnd(end)
	r.LastPage = end
	r.Type = base
	a.allocStart[base] = end
	return r.Free, nil
}

// Alloc bump-allocates nbytes of page type pt from r, rebinding the
// region when its pages are exhausted. Requests of a full page or more
// are routed to AllocLarge under the current allocation generation.
func (a *Allocator) Alloc(r *Region, nbytes int64, pt heap.PageType) (int64, error) {
	if nbytes <= 0 {
		panic(fmt.Sprintf("alloc: bad allocation size %d", nbytes))
	}
	if nbytes >= a.h.PageBytes() {
		return a.AllocLarge(nbytes, pt, r, a.Generation())
	}
	if r.Bound() && r.Remaining() >= nbytes {
		off := r.Free
		r.Free += nbytes
		return off, nil
	}
	if _, err := a.NewRegion(nbytes, pt, r, false); err != nil {
		return 0, err
	}
	off := r.Free
	r.Free += nbytes
	return off, nil
}

// CloseRegion writes the true per-page usage for every page the region
// touched, clears OpenRegion from the region's first page through
// LastPage, credits the bytes consumed to the pages' generation and the
// global counter, and resets the region. Closing an unbound region is a
// no-op, so a double close never double-counts.
func (a *Allocator) CloseRegion(r *Region, pt heap.PageType) {
	if !r.Bound() {
		return
	}
	h := a.h
	first := h.FindPageIndex(r.Start)
	if first == heap.NoPage || first > r.LastPage {
		panic(fmt.Sprintf("alloc: closing region with corrupt start offset %#x", r.Start))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	gen := int(h.PTE(r.LastPage).Gen)
	consumed := r.Free - r.Start

	for i := first; i <= r.LastPage; i++ {
		pte := h.PTE(i)
		switch {
		case r.Free >= h.PageEnd(i):
			pte.BytesUsed = uint32(h.PageBytes())
		case r.Free > h.PageStart(i):
			pte.BytesUsed = uint32(r.Free - h.PageStart(i))
		default:
			// Page past the bump pointer; it was claimed but never used.
			pte.BytesUsed = 0
		}
		pte.Type &^= heap.OpenRegion
		if pte.BytesUsed == 0 {
			*pte = heap.PTE{}
		}
	}

	if consumed > 0 {
		h.AddAllocated(gen, consumed)
	}
	r.Reset()
}
