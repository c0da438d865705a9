package snapshot

import (
	"encoding/binary"

	"github.com/joshuapare/genheap/heap"
)

// RootScan counts the heap pointers found in thread stacks during a
// reload. A stack word that lands in the heap range either resolves to
// live data on a non-free page (a conservative root worth keeping) or
// points at freed or unused memory and is reported as dangling.
type RootScan struct {
	Valid    int
	Dangling int
}

// ScanRoots scans every word of every thread's control and binding
// stacks, interpreting values relative to baseAddr, the heap base
// recorded at save time.
func ScanRoots(h *heap.Heap, baseAddr uint64, threads []Thread) RootScan {
	var rs RootScan
	for _, t := range threads {
		scanStack(h, baseAddr, t.ControlStack, &rs)
		scanStack(h, baseAddr, t.BindingStack, &rs)
	}
	return rs
}

func scanStack(h *heap.Heap, baseAddr uint64, stack []byte, rs *RootScan) {
	for i := 0; i+heap.WordBytes <= len(stack); i += heap.WordBytes {
		word := binary.LittleEndian.Uint64(stack[i:])
		if word < baseAddr {
			continue
		}
		off := int64(word - baseAddr)
		page := h.FindPageIndex(off)
		if page == heap.NoPage {
			continue
		}
		if resolves(h, page, off) {
			rs.Valid++
		} else {
			rs.Dangling++
		}
	}
}

// resolves reports whether off points into live data: its page is not
// free, its scan start resolves to a live page, and the offset is below
// the page's used extent.
func resolves(h *heap.Heap, page heap.PageIndex, off int64) bool {
	pte := h.PTE(page)
	if pte.Type == heap.Free {
		return false
	}
	start := h.ScanStartPage(page)
	if start < 0 || h.PTE(start).Type == heap.Free {
		return false
	}
	return off-h.PageStart(page) < int64(pte.BytesUsed)
}
