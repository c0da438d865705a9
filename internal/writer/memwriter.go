package writer

// MemWriter captures dump bytes in memory. Tests round-trip through it
// without touching the filesystem.
type MemWriter struct {
	Buf []byte
}

// WriteDump stores a copy of the provided buffer.
func (w *MemWriter) WriteDump(buf []byte) error {
	w.Buf = append(w.Buf[:0], buf...)
	return nil
}
