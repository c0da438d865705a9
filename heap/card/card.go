// Package card provides the card-mark bitmap: one mark byte per
// fixed-size granule of the heap, recording which cards have been
// written since the last collection. Generational scanning consults the
// marks to skip untouched memory; snapshots capture them verbatim.
package card

import "fmt"

// Mark byte values. A freshly created table is fully unmarked.
const (
	Unmarked byte = 0x00
	Marked   byte = 0x01
)

// Table is a byte-per-card mark array over a heap. Card granules are a
// power of two, so offset-to-card mapping is a shift.
//
// Not internally synchronized: mutators mark through the write barrier,
// which tolerates racy redundant stores; precise reads happen only
// inside stop-the-world windows.
type Table struct {
	marks     []byte
	shift     uint
	cardBytes int64
}

// NewTable creates a mark table covering heapBytes of memory at the
// given card granule. cardBytes must be a power of two dividing
// heapBytes.
func NewTable(heapBytes, cardBytes int64) (*Table, error) {
	if cardBytes <= 0 || cardBytes&(cardBytes-1) != 0 {
		return nil, fmt.Errorf("card: granule %d is not a power of two", cardBytes)
	}
	if heapBytes%cardBytes != 0 {
		return nil, fmt.Errorf("card: heap size %d not a multiple of granule %d",
			heapBytes, cardBytes)
	}
	shift := uint(0)
	for 1<<shift != cardBytes {
		shift++
	}
	return &Table{
		marks:     make([]byte, heapBytes/cardBytes),
		shift:     shift,
		cardBytes: cardBytes,
	}, nil
}

// Cards returns the number of cards in the table.
func (t *Table) Cards() int { return len(t.marks) }

// CardBytes returns the card granule.
func (t *Table) CardBytes() int64 { return t.cardBytes }

// Index maps a heap offset to its card index.
func (t *Table) Index(off int64) int { return int(off >> t.shift) }

// Mark records a write covering the card containing off.
func (t *Table) Mark(off int64) {
	t.marks[off>>t.shift] = Marked
}

// MarkRange records a write covering [off, off+n).
func (t *Table) MarkRange(off, n int64) {
	if n <= 0 {
		return
	}
	for c := off >> t.shift; c <= (off+n-1)>>t.shift; c++ {
		t.marks[c] = Marked
	}
}

// Marked reports whether the card containing off has been written.
func (t *Table) Marked(off int64) bool {
	return t.marks[off>>t.shift] != Unmarked
}

// MarkAll marks every card. Collection passes start from the fully
// marked state and clear as they scan.
func (t *Table) MarkAll() {
	for i := range t.marks {
		t.marks[i] = Marked
	}
}

// ClearAll resets every card to unmarked.
func (t *Table) ClearAll() {
	for i := range t.marks {
		t.marks[i] = Unmarked
	}
}

// Bytes exposes the raw mark array for snapshot capture and restore.
func (t *Table) Bytes() []byte { return t.marks }
