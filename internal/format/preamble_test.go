package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreambleRoundTrip(t *testing.T) {
	p := Preamble{
		HeapBase:    0x8000000,
		PageBytes:   32768,
		PageCount:   640,
		CardBytes:   512,
		Generations: 6,
		ThreadCount: 3,
	}
	b := EncodePreamble(p)
	require.Len(t, b, PreambleSize)

	got, err := DecodePreamble(b)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodePreamble_Rejections(t *testing.T) {
	good := EncodePreamble(Preamble{
		HeapBase: 0x1000, PageBytes: 4096, PageCount: 20, CardBytes: 256,
		Generations: 6, ThreadCount: 0,
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := DecodePreamble(good[:10])
		require.ErrorIs(t, err, ErrBadDump)
	})

	t.Run("bad signature", func(t *testing.T) {
		b := append([]byte(nil), good...)
		b[SignatureOffset] = 'X'
		_, err := DecodePreamble(b)
		require.ErrorIs(t, err, ErrBadDump)
	})

	t.Run("future version", func(t *testing.T) {
		b := append([]byte(nil), good...)
		PutU32(b, VersionOffset, Version+1)
		_, err := DecodePreamble(b)
		require.ErrorIs(t, err, ErrBadDump)
	})

	t.Run("zero page size", func(t *testing.T) {
		b := append([]byte(nil), good...)
		PutU64(b, PageBytesOffset, 0)
		_, err := DecodePreamble(b)
		require.ErrorIs(t, err, ErrBadDump)
	})
}

func TestPTERoundTrip(t *testing.T) {
	b := make([]byte, 2*PTESize)
	PutPTE(b, PTESize, 7, 4095, 0x0A, 3)

	scanStart, used, typ, gen := ReadPTE(b, PTESize)
	assert.Equal(t, uint32(7), scanStart)
	assert.Equal(t, uint32(4095), used)
	assert.Equal(t, uint8(0x0A), typ)
	assert.Equal(t, uint8(3), gen)

	// The first entry was never written and stays zero.
	scanStart, used, typ, gen = ReadPTE(b, 0)
	assert.Zero(t, scanStart)
	assert.Zero(t, used)
	assert.Zero(t, typ)
	assert.Zero(t, gen)
}
