package heap

// Generation holds the per-generation byte accounting. The allocator
// operations are the only writers; collector statistics and
// heap-pressure triggers only read.
type Generation struct {
	// BytesAllocated is the cumulative count of live bytes attributed
	// to this generation.
	BytesAllocated int64
}

// Generations returns the number of normal generations. Valid generation
// indexes run 0..Generations()-1 plus the scratch slot.
func (h *Heap) Generations() int { return h.cfg.Generations }

// Scratch returns the index of the scratch generation, the transient
// slot objects occupy while they are mid-relocation during a collection
// pass.
func (h *Heap) Scratch() int { return h.cfg.Generations }

// BytesAllocated returns the global allocated-byte counter: the sum
// across all generations including scratch.
func (h *Heap) BytesAllocated() int64 { return h.allocated }

// GenerationBytes returns generation g's allocated-byte counter.
func (h *Heap) GenerationBytes(g int) int64 { return h.gens[g].BytesAllocated }

// AddAllocated credits delta bytes to generation g and to the global
// counter. Negative deltas debit both. Callers hold the allocator's
// page-claim lock.
func (h *Heap) AddAllocated(g int, delta int64) {
	h.gens[g].BytesAllocated += delta
	h.allocated += delta
}

// RecountGenerations re-derives every generation counter and the global
// counter from the page table, discarding the current values. The
// snapshot loader uses this instead of trusting a stored total.
func (h *Heap) RecountGenerations() {
	for g := range h.gens {
		h.gens[g].BytesAllocated = 0
	}
	h.allocated = 0
	for i := range h.table {
		pte := &h.table[i]
		if pte.Type == Free {
			continue
		}
		h.AddAllocated(int(pte.Gen), int64(pte.BytesUsed))
	}
}
