package snapshot

import (
	"fmt"
	"os"

	"github.com/joshuapare/genheap/heap"
	"github.com/joshuapare/genheap/heap/card"
	"github.com/joshuapare/genheap/internal/writer"
)

// SaveFile serializes the heap and writes the dump to path atomically.
func SaveFile(path string, h *heap.Heap, cards *card.Table, threads []Thread, baseAddr uint64) error {
	buf, err := Save(h, cards, threads, baseAddr)
	if err != nil {
		return err
	}
	w := writer.FileWriter{Path: path}
	if err := w.WriteDump(buf); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// LoadFile reads and restores a dump from path.
func LoadFile(path string) (*Result, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	return Load(buf)
}
