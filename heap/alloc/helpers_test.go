package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/genheap/heap"
)

const (
	// testPages matches the historical GC unit tests: a 20-page table is
	// enough to exercise every allocator path.
	testPages = 20

	testPageBytes = 4096

	// consBytes is the smallest allocatable thing, two words; size fuzz
	// in the large-object and shrink tests is quantized to it.
	consBytes = 2 * heap.WordBytes
)

func newTestHeap(t testing.TB) *heap.Heap {
	t.Helper()
	h, err := heap.New(heap.Config{
		Pages:     testPages,
		PageBytes: testPageBytes,
		CardBytes: 256,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// countOpenPages returns how many pages currently carry the OpenRegion
// flag for the given base type.
func countOpenPages(h *heap.Heap, base heap.PageType) int {
	n := 0
	for i := int64(0); i < h.Pages(); i++ {
		typ := h.PTE(i).Type
		if typ.IsOpenRegion() && typ.Base() == base {
			n++
		}
	}
	return n
}

// capturePTEs snapshots the page table for later comparison.
func capturePTEs(h *heap.Heap) []heap.PTE {
	out := make([]heap.PTE, h.Pages())
	for i := int64(0); i < h.Pages(); i++ {
		out[i] = *h.PTE(i)
	}
	return out
}
