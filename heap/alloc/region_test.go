package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/genheap/heap"
)

// TestNewRegion_SingleOpenPage is the historical find-freeish test: over
// a long run of small allocations, exactly one page carries the
// OpenRegion flag between NewRegion and CloseRegion, and the byte
// counter tracks the burst exactly. A buggy page search that could land
// a region on an exactly-full page broke both.
func TestNewRegion_SingleOpenPage(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()

	chunk := int64(heap.WordBytes * 40)
	var totBytes int64
	for i := 0; i < 100; i++ {
		_, err := a.NewRegion(chunk, heap.Boxed, &r, false)
		require.NoError(t, err, "allocation %d", i)
		r.Free += chunk
		totBytes += chunk

		require.Equal(t, 1, countOpenPages(h, heap.Boxed),
			"allocation %d: exactly one page must be open", i)

		a.CloseRegion(&r, heap.Boxed)
		require.Equal(t, totBytes, h.BytesAllocated(),
			"allocation %d: byte accounting must be exact", i)
	}
}

func TestNewRegion_NeverStartsOnFullPage(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	// Interleave exactly-full pages with free ones.
	for _, i := range []int64{0, 2, 4} {
		*h.PTE(i) = heap.PTE{Type: heap.Boxed, BytesUsed: testPageBytes}
	}
	h.RecountGenerations()

	var r Region
	r.Reset()
	off, err := a.NewRegion(64, heap.Boxed, &r, false)
	require.NoError(t, err)

	start := h.FindPageIndex(off)
	assert.Equal(t, heap.PageIndex(1), start, "full page 0 must be skipped")
	assert.Zero(t, h.PTE(start).BytesUsed, "chosen page must have room")
	assert.Positive(t, r.Remaining())

	a.CloseRegion(&r, heap.Boxed)
	for _, i := range []int64{0, 2, 4} {
		assert.False(t, h.PTE(i).Type.IsOpenRegion(),
			"full page %d must never be claimed", i)
	}
}

func TestNewRegion_ReusesPartialPage(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()

	// First burst leaves page 0 partially used.
	_, err := a.NewRegion(512, heap.Boxed, &r, false)
	require.NoError(t, err)
	r.Free += 512
	a.CloseRegion(&r, heap.Boxed)
	require.Equal(t, uint32(512), h.PTE(0).BytesUsed)

	// Second burst restarts the same page after the existing data.
	off, err := a.NewRegion(512, heap.Boxed, &r, false)
	require.NoError(t, err)
	assert.Equal(t, int64(512), off)
	assert.Equal(t, heap.PageIndex(0), h.FindPageIndex(off))
	r.Free += 512
	a.CloseRegion(&r, heap.Boxed)
	assert.Equal(t, uint32(1024), h.PTE(0).BytesUsed)
}

func TestNewRegion_WantNewPage(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()
	_, err := a.NewRegion(64, heap.Boxed, &r, false)
	require.NoError(t, err)
	r.Free += 64
	require.Greater(t, r.Remaining(), int64(64))

	// Without the flag the region's own capacity is reused.
	off, err := a.NewRegion(64, heap.Boxed, &r, false)
	require.NoError(t, err)
	assert.Equal(t, r.Free, off)

	// With the flag the region is rebound even though it had room.
	off, err = a.NewRegion(64, heap.Boxed, &r, true)
	require.NoError(t, err)
	assert.Equal(t, heap.PageIndex(0), h.FindPageIndex(off),
		"page 0 still has room and is restarted as the fresh binding")
}

func TestNewRegion_DoesNotMixPageTypes(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var boxed, code Region
	boxed.Reset()
	code.Reset()

	_, err := a.NewRegion(128, heap.Boxed, &boxed, false)
	require.NoError(t, err)
	boxed.Free += 128
	a.CloseRegion(&boxed, heap.Boxed)

	// A code region must not restart the partially-used boxed page.
	off, err := a.NewRegion(128, heap.Code, &code, false)
	require.NoError(t, err)
	assert.Equal(t, heap.PageIndex(1), h.FindPageIndex(off))
	assert.Equal(t, heap.Code|heap.OpenRegion, h.PTE(1).Type)
	a.CloseRegion(&code, heap.Code)
}

func TestNewRegion_BoundTypeMismatchPanics(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()
	_, err := a.NewRegion(64, heap.Boxed, &r, false)
	require.NoError(t, err)
	require.True(t, r.Bound())

	// The region still has room, but it was opened for boxed pages;
	// reusing it for another type must fail loudly, never hand out
	// bytes on pages of the wrong type.
	assert.Panics(t, func() { _, _ = a.NewRegion(64, heap.Code, &r, false) })

	a.CloseRegion(&r, heap.Boxed)
}

func TestCloseRegion_Idempotent(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()
	_, err := a.NewRegion(256, heap.Boxed, &r, false)
	require.NoError(t, err)
	r.Free += 256

	a.CloseRegion(&r, heap.Boxed)
	require.Equal(t, int64(256), h.BytesAllocated())
	require.False(t, r.Bound())

	// A second close must not double-count.
	a.CloseRegion(&r, heap.Boxed)
	assert.Equal(t, int64(256), h.BytesAllocated())
}

func TestCloseRegion_UnusedFreshPageBecomesFree(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()
	_, err := a.NewRegion(64, heap.Boxed, &r, false)
	require.NoError(t, err)

	// Nothing allocated; closing must return the page to the free pool.
	a.CloseRegion(&r, heap.Boxed)
	assert.True(t, h.PageFree(0))
	assert.Equal(t, heap.PTE{}, *h.PTE(0))
	assert.Zero(t, h.BytesAllocated())
}

func TestAlloc_BumpFastPath(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()

	var offs []int64
	for i := 0; i < 10; i++ {
		off, err := a.Alloc(&r, 48, heap.Mixed)
		require.NoError(t, err)
		offs = append(offs, off)
	}
	for i := 1; i < len(offs); i++ {
		assert.Equal(t, offs[i-1]+48, offs[i], "bump allocation is contiguous")
	}

	a.CloseRegion(&r, heap.Mixed)
	assert.Equal(t, int64(480), h.BytesAllocated())
	assert.Equal(t, uint32(480), h.PTE(0).BytesUsed)
}

func TestAlloc_RoutesLargeRequests(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()
	off, err := a.Alloc(&r, 2*testPageBytes, heap.Unboxed)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)
	assert.True(t, h.PTE(0).Type.IsSingleObject())
	assert.False(t, r.Bound(), "large allocation does not bind the region")
}

func TestNewRegion_HeapExhaustion(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	for i := int64(0); i < h.Pages(); i++ {
		*h.PTE(i) = heap.PTE{Type: heap.Unboxed, BytesUsed: testPageBytes}
	}
	h.RecountGenerations()

	var r Region
	r.Reset()
	_, err := a.NewRegion(64, heap.Boxed, &r, false)
	require.ErrorIs(t, err, ErrHeapExhausted)
}

func TestSetGeneration_Range(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	a.SetGeneration(h.Scratch())
	assert.Equal(t, h.Scratch(), a.Generation())

	assert.Panics(t, func() { a.SetGeneration(-1) })
	assert.Panics(t, func() { a.SetGeneration(h.Scratch() + 1) })
}

func TestResetAllocStartPages(t *testing.T) {
	h := newTestHeap(t)
	a := New(h)

	var r Region
	r.Reset()
	_, err := a.NewRegion(512, heap.Boxed, &r, false)
	require.NoError(t, err)
	r.Free += 512
	a.CloseRegion(&r, heap.Boxed)

	// Force the cursor past page 0, then rewind it; the next search must
	// restart the partial page at the heap base.
	a.ResetAllocStartPages()
	off, err := a.NewRegion(64, heap.Boxed, &r, false)
	require.NoError(t, err)
	assert.Equal(t, heap.PageIndex(0), h.FindPageIndex(off))
	a.CloseRegion(&r, heap.Boxed)
}
