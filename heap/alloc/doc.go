// Package alloc hands out heap memory page by page and keeps the page
// table and generation counters exact while doing it.
//
// # Overview
//
// Three operations cover all allocation traffic:
//
//   - Region allocation: a Region is a thread-owned bump pointer bound
//     to one page (occasionally a short run of pages). The fast path is
//     a pointer bump with no synchronization; only claiming a fresh page
//     takes the allocator's lock. NewRegion binds a region, Alloc bumps
//     it, CloseRegion writes the final usage back into the page table.
//   - Large objects: AllocLarge claims a contiguous run of whole pages,
//     marks them single-object, and points every page's scan-start back
//     at the run's first page.
//   - Shrink-in-place: AdjustPTEs shrinks an object already on the heap,
//     reassigns its generation and page type, frees the trailing pages,
//     and returns the bytes freed. The result is bit-for-bit identical
//     to allocating the object at the smaller size directly.
//
// # The full-page rule
//
// A region must never start on a page with zero bytes of remaining
// capacity. If it did, the region's start address would land on the
// following page, and closing the region would compute the wrong first
// page for clearing the OpenRegion flags, leaving a stale flag behind.
// The page search therefore skips exactly-full pages unconditionally.
//
// # Failure policy
//
// Heap exhaustion is a fatal allocation failure (ErrHeapExhausted), not
// a retryable condition: the heap's size is fixed at process start.
// Contract violations - growing via AdjustPTEs, reusing a bound region
// for a different page type, closing a region whose start no longer
// maps into the heap - panic, because they mean the page table can no
// longer be trusted.
package alloc
