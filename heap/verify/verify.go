// Package verify validates heap structural invariants. The collector
// runs these checks under stop-the-world; tests run them after every
// interesting mutation.
//
// Every check is fatal when it fires: a failed invariant means the page
// table can no longer be trusted, so callers abort rather than recover.
package verify

import (
	"fmt"

	"github.com/joshuapare/genheap/heap"
)

// ValidationError describes one failed invariant check.
type ValidationError struct {
	Check   string
	Message string
	Page    heap.PageIndex // -1 when not page-specific
}

func (e *ValidationError) Error() string {
	if e.Page >= 0 {
		return fmt.Sprintf("%s at page %d: %s", e.Check, e.Page, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// AllInvariants runs every heap invariant check and returns the first
// failure, or nil.
func AllInvariants(h *heap.Heap) error {
	if err := FreePagesEmpty(h); err != nil {
		return err
	}
	if err := NoOpenRegions(h); err != nil {
		return err
	}
	if err := ScanStartsInRange(h); err != nil {
		return err
	}
	if err := GenerationAccounting(h); err != nil {
		return err
	}
	return nil
}

// FreePagesEmpty checks that every free page reports zero bytes used,
// and that no page claims more bytes than it holds.
func FreePagesEmpty(h *heap.Heap) error {
	for i := int64(0); i < h.Pages(); i++ {
		pte := h.PTE(i)
		if pte.Type == heap.Free && pte.BytesUsed != 0 {
			return &ValidationError{
				Check:   "FreePagesEmpty",
				Message: fmt.Sprintf("free page reports %d bytes used", pte.BytesUsed),
				Page:    i,
			}
		}
		if int64(pte.BytesUsed) > h.PageBytes() {
			return &ValidationError{
				Check:   "FreePagesEmpty",
				Message: fmt.Sprintf("page reports %d bytes used, page size is %d",
					pte.BytesUsed, h.PageBytes()),
				Page: i,
			}
		}
	}
	return nil
}

// NoOpenRegions checks that no page carries the OpenRegion flag. Valid
// only with the world stopped: the stop-the-world sequencing guarantees
// this, the scanner does not defend against it.
func NoOpenRegions(h *heap.Heap) error {
	for i := int64(0); i < h.Pages(); i++ {
		if h.PTE(i).Type.IsOpenRegion() {
			return &ValidationError{
				Check:   "NoOpenRegions",
				Message: fmt.Sprintf("page is open (%v) during a global operation", h.PTE(i).Type),
				Page:    i,
			}
		}
	}
	return nil
}

// ScanStartsInRange checks that every page's scan-start offset resolves
// to an in-heap, non-free page.
func ScanStartsInRange(h *heap.Heap) error {
	for i := int64(0); i < h.Pages(); i++ {
		pte := h.PTE(i)
		if pte.Type == heap.Free {
			continue
		}
		start := h.ScanStartPage(i)
		if start < 0 {
			return &ValidationError{
				Check:   "ScanStartsInRange",
				Message: fmt.Sprintf("scan start %d points before the heap", pte.ScanStart),
				Page:    i,
			}
		}
		if h.PTE(start).Type == heap.Free {
			return &ValidationError{
				Check:   "ScanStartsInRange",
				Message: fmt.Sprintf("scan start resolves to free page %d", start),
				Page:    i,
			}
		}
	}
	return nil
}

// GenerationAccounting recomputes per-generation byte totals from the
// page table and checks them against the live counters, including the
// global counter.
func GenerationAccounting(h *heap.Heap) error {
	totals := make([]int64, h.Generations()+1)
	var global int64
	for i := int64(0); i < h.Pages(); i++ {
		pte := h.PTE(i)
		if pte.Type == heap.Free {
			continue
		}
		totals[pte.Gen] += int64(pte.BytesUsed)
		global += int64(pte.BytesUsed)
	}
	for g, want := range totals {
		if got := h.GenerationBytes(g); got != want {
			return &ValidationError{
				Check: "GenerationAccounting",
				Message: fmt.Sprintf("generation %d counter is %d, page table says %d",
					g, got, want),
				Page: -1,
			}
		}
	}
	if got := h.BytesAllocated(); got != global {
		return &ValidationError{
			Check:   "GenerationAccounting",
			Message: fmt.Sprintf("global counter is %d, page table says %d", got, global),
			Page:    -1,
		}
	}
	return nil
}
