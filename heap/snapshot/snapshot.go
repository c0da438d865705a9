// Package snapshot serializes a quiesced heap to the crash-dump format
// and restores it into a freshly initialized process.
//
// A dump captures the fixed preamble (heap parameters and thread stack
// sizes), then verbatim copies of the heap bytes, the page table, the
// card-mark bitmap, and each thread's control and binding stacks. The
// loader validates the signature and parameters, rebuilds the page
// table, and re-derives generation byte totals by rescanning the
// restored table rather than trusting a stored total, so a corrupted
// dump is caught instead of silently accepted.
//
// Saving requires the world to be stopped: no open regions, no claims
// in flight. Run Save under alloc.Quiesce.
package snapshot

import (
	"fmt"

	"github.com/joshuapare/genheap/heap"
	"github.com/joshuapare/genheap/heap/card"
	"github.com/joshuapare/genheap/internal/format"
)

// Thread is one thread's stack state as captured in a dump.
type Thread struct {
	ControlStack []byte
	BindingStack []byte
}

// Save serializes the heap, its card marks, and the given thread stacks
// into a single dump buffer. baseAddr is the heap base address recorded
// in the preamble; stack words are interpreted relative to it at load
// time.
func Save(h *heap.Heap, cards *card.Table, threads []Thread, baseAddr uint64) ([]byte, error) {
	if int64(cards.Cards())*cards.CardBytes() != h.Size() {
		return nil, fmt.Errorf("snapshot: card table covers %d bytes, heap is %d",
			int64(cards.Cards())*cards.CardBytes(), h.Size())
	}

	size := int64(format.PreambleSize)
	size += int64(len(threads)) * format.ThreadEntrySize
	size += h.Size()
	size += h.Pages() * format.PTESize
	size += int64(cards.Cards())
	for _, t := range threads {
		size += int64(len(t.ControlStack) + len(t.BindingStack))
	}

	buf := make([]byte, 0, size)
	buf = append(buf, format.EncodePreamble(format.Preamble{
		HeapBase:    baseAddr,
		PageBytes:   uint64(h.PageBytes()),
		PageCount:   uint64(h.Pages()),
		CardBytes:   uint64(cards.CardBytes()),
		Generations: uint32(h.Generations()),
		ThreadCount: uint32(len(threads)),
	})...)

	entry := make([]byte, format.ThreadEntrySize)
	for _, t := range threads {
		format.PutU64(entry, format.ThreadControlStackOffset, uint64(len(t.ControlStack)))
		format.PutU64(entry, format.ThreadBindingStackOffset, uint64(len(t.BindingStack)))
		buf = append(buf, entry...)
	}

	buf = append(buf, h.Bytes()...)

	pte := make([]byte, format.PTESize)
	for i := int64(0); i < h.Pages(); i++ {
		e := h.PTE(i)
		format.PutPTE(pte, 0, e.ScanStart, e.BytesUsed, uint8(e.Type), e.Gen)
		buf = append(buf, pte...)
	}

	buf = append(buf, cards.Bytes()...)

	for _, t := range threads {
		buf = append(buf, t.ControlStack...)
		buf = append(buf, t.BindingStack...)
	}
	return buf, nil
}

// Result is a restored dump: the rebuilt heap and card table, the
// captured thread stacks, the decoded preamble, and the conservative
// stack-root scan.
type Result struct {
	Heap     *heap.Heap
	Cards    *card.Table
	Threads  []Thread
	Preamble format.Preamble
	Roots    RootScan
}

// Load restores a dump into a fresh heap. The dump's parameters size
// the new page table; generation totals come from rescanning it, and
// the thread stacks are scanned for heap pointers (see RootScan).
func Load(b []byte) (*Result, error) {
	p, err := format.DecodePreamble(b)
	if err != nil {
		return nil, err
	}

	cfg := heap.Config{
		PageBytes:   int64(p.PageBytes),
		Pages:       int64(p.PageCount),
		Generations: int(p.Generations),
		CardBytes:   int64(p.CardBytes),
	}
	h, err := heap.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", format.ErrBadDump, err)
	}

	heapBytes := h.Size()
	cardCount := heapBytes / cfg.CardBytes

	off := int64(format.PreambleSize)
	stackBytes := int64(0)
	type stackSizes struct{ control, binding int64 }
	sizes := make([]stackSizes, p.ThreadCount)
	for i := range sizes {
		if off+format.ThreadEntrySize > int64(len(b)) {
			return nil, fmt.Errorf("%w: truncated thread table", format.ErrBadDump)
		}
		sizes[i].control = int64(format.ReadU64(b, int(off)+format.ThreadControlStackOffset))
		sizes[i].binding = int64(format.ReadU64(b, int(off)+format.ThreadBindingStackOffset))
		// A huge u64 size wraps negative here; two such entries can
		// cancel in the total-length check below, so each size is
		// bounded on its own before it reaches a slice expression.
		if sizes[i].control < 0 || sizes[i].control > int64(len(b)) ||
			sizes[i].binding < 0 || sizes[i].binding > int64(len(b)) {
			return nil, fmt.Errorf("%w: thread %d stack sizes out of range", format.ErrBadDump, i)
		}
		stackBytes += sizes[i].control + sizes[i].binding
		off += format.ThreadEntrySize
	}
	if stackBytes > int64(len(b)) {
		return nil, fmt.Errorf("%w: thread stacks claim %d bytes, dump is %d",
			format.ErrBadDump, stackBytes, len(b))
	}

	want := off + heapBytes + int64(p.PageCount)*format.PTESize + cardCount + stackBytes
	if int64(len(b)) != want {
		return nil, fmt.Errorf("%w: %d bytes, layout requires %d", format.ErrBadDump, len(b), want)
	}

	copy(h.Bytes(), b[off:off+heapBytes])
	off += heapBytes

	for i := int64(0); i < h.Pages(); i++ {
		scanStart, used, typ, gen := format.ReadPTE(b, int(off))
		off += format.PTESize
		pte := heap.PTE{ScanStart: scanStart, BytesUsed: used, Type: heap.PageType(typ), Gen: gen}
		if err := checkPTE(h, i, pte); err != nil {
			return nil, err
		}
		*h.PTE(i) = pte
	}

	cards, err := card.NewTable(heapBytes, cfg.CardBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", format.ErrBadDump, err)
	}
	copy(cards.Bytes(), b[off:off+cardCount])
	off += cardCount

	threads := make([]Thread, p.ThreadCount)
	for i := range threads {
		threads[i].ControlStack = append([]byte(nil), b[off:off+sizes[i].control]...)
		off += sizes[i].control
		threads[i].BindingStack = append([]byte(nil), b[off:off+sizes[i].binding]...)
		off += sizes[i].binding
	}

	// The dump carries no generation totals on purpose; recompute them
	// from the page table we just restored.
	h.RecountGenerations()

	return &Result{
		Heap:     h,
		Cards:    cards,
		Threads:  threads,
		Preamble: p,
		Roots:    ScanRoots(h, p.HeapBase, threads),
	}, nil
}

func checkPTE(h *heap.Heap, page int64, pte heap.PTE) error {
	if int64(pte.BytesUsed) > h.PageBytes() {
		return fmt.Errorf("%w: page %d claims %d bytes used", format.ErrBadDump, page, pte.BytesUsed)
	}
	if pte.Type == heap.Free && pte.BytesUsed != 0 {
		return fmt.Errorf("%w: free page %d claims %d bytes used", format.ErrBadDump, page, pte.BytesUsed)
	}
	if pte.Type != heap.Free && int(pte.Gen) > h.Scratch() {
		return fmt.Errorf("%w: page %d in generation %d, heap has %d", format.ErrBadDump,
			page, pte.Gen, h.Generations())
	}
	if int64(pte.ScanStart) > page {
		return fmt.Errorf("%w: page %d scan start %d points before the heap", format.ErrBadDump,
			page, pte.ScanStart)
	}
	return nil
}
