package format

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrBadDump indicates a dump whose signature, version, or structure
// does not match this build. Malformed dumps are rejected, never
// coerced.
var ErrBadDump = errors.New("format: malformed heap dump")

// Preamble is the decoded fixed header of a heap dump.
type Preamble struct {
	HeapBase    uint64
	PageBytes   uint64
	PageCount   uint64
	CardBytes   uint64
	Generations uint32
	ThreadCount uint32
}

// EncodePreamble writes the preamble, including signature and version,
// into a fresh PreambleSize buffer.
func EncodePreamble(p Preamble) []byte {
	b := make([]byte, PreambleSize)
	copy(b[SignatureOffset:], Signature)
	PutU32(b, VersionOffset, Version)
	PutU64(b, HeapBaseOffset, p.HeapBase)
	PutU64(b, PageBytesOffset, p.PageBytes)
	PutU64(b, PageCountOffset, p.PageCount)
	PutU64(b, CardBytesOffset, p.CardBytes)
	PutU32(b, GenerationsOffset, p.Generations)
	PutU32(b, ThreadCountOffset, p.ThreadCount)
	return b
}

// DecodePreamble validates the signature and version and decodes the
// fixed header fields.
func DecodePreamble(b []byte) (Preamble, error) {
	if len(b) < PreambleSize {
		return Preamble{}, fmt.Errorf("%w: %d bytes is smaller than the preamble", ErrBadDump, len(b))
	}
	if !bytes.Equal(b[SignatureOffset:SignatureOffset+len(Signature)], Signature) {
		return Preamble{}, fmt.Errorf("%w: bad signature %q", ErrBadDump,
			b[SignatureOffset:SignatureOffset+len(Signature)])
	}
	if v := ReadU32(b, VersionOffset); v != Version {
		return Preamble{}, fmt.Errorf("%w: version %d, this build reads %d", ErrBadDump, v, Version)
	}
	p := Preamble{
		HeapBase:    ReadU64(b, HeapBaseOffset),
		PageBytes:   ReadU64(b, PageBytesOffset),
		PageCount:   ReadU64(b, PageCountOffset),
		CardBytes:   ReadU64(b, CardBytesOffset),
		Generations: ReadU32(b, GenerationsOffset),
		ThreadCount: ReadU32(b, ThreadCountOffset),
	}
	if p.PageBytes == 0 || p.PageCount == 0 || p.CardBytes == 0 {
		return Preamble{}, fmt.Errorf("%w: zero-sized heap parameters", ErrBadDump)
	}
	return p, nil
}

// PutPTE serializes one page-table entry at off.
func PutPTE(b []byte, off int, scanStart, bytesUsed uint32, typ, gen uint8) {
	PutU32(b, off+PTEScanStartOffset, scanStart)
	PutU32(b, off+PTEBytesUsedOffset, bytesUsed)
	b[off+PTETypeOffset] = typ
	b[off+PTEGenOffset] = gen
	b[off+PTEGenOffset+1] = 0
	b[off+PTEGenOffset+2] = 0
}

// ReadPTE deserializes one page-table entry at off.
func ReadPTE(b []byte, off int) (scanStart, bytesUsed uint32, typ, gen uint8) {
	return ReadU32(b, off+PTEScanStartOffset),
		ReadU32(b, off+PTEBytesUsedOffset),
		b[off+PTETypeOffset],
		b[off+PTEGenOffset]
}
