// Package format houses the binary layout of the heap crash-dump
// format. The goal is to keep the encoding focused and independent from
// the public API: the snapshot package orchestrates whole dumps, this
// package knows only field offsets and record sizes.
//
// A dump is, in order: the fixed preamble, a per-thread stack-size
// table, the raw heap bytes, the serialized page table, the card-mark
// bitmap, and each thread's control and binding stack bytes. All
// integers are little-endian. Layout drift between writer and reader is
// caught by the signature and version check plus the parameter match,
// never silently accepted.
package format

// Signature is the four-byte magic at the start of every heap dump.
var Signature = []byte{'g', 'h', 'c', 'd'}

// Version is the current dump format version. Bump on any layout change.
const Version = 1

const (
	// PreambleSize is the size of the fixed preamble in bytes.
	PreambleSize = 64

	// Preamble field offsets.
	SignatureOffset   = 0x00 // 4 bytes
	VersionOffset     = 0x04 // u32
	HeapBaseOffset    = 0x08 // u64: heap base address at save time
	PageBytesOffset   = 0x10 // u64
	PageCountOffset   = 0x18 // u64
	CardBytesOffset   = 0x20 // u64
	GenerationsOffset = 0x28 // u32: normal generation count
	ThreadCountOffset = 0x2C // u32
	// 0x30..0x40 reserved, zero

	// ThreadEntrySize is the size of one row of the per-thread table
	// that immediately follows the preamble.
	ThreadEntrySize = 16

	// Thread table field offsets, relative to the entry.
	ThreadControlStackOffset = 0x00 // u64: control stack size in bytes
	ThreadBindingStackOffset = 0x08 // u64: binding stack size in bytes

	// PTESize is the serialized size of one page-table entry:
	// scan-start u32, bytes-used u32, type u8, generation u8, 2 pad.
	PTESize = 12

	PTEScanStartOffset = 0x00
	PTEBytesUsedOffset = 0x04
	PTETypeOffset      = 0x08
	PTEGenOffset       = 0x09
)
