package snapshot

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/genheap/heap"
	"github.com/joshuapare/genheap/heap/alloc"
	"github.com/joshuapare/genheap/heap/card"
	"github.com/joshuapare/genheap/internal/format"
)

const (
	testPages     = 20
	testPageBytes = 4096
	testCardBytes = 256
	testBaseAddr  = uint64(0x8000000)
)

// populatedHeap builds a small heap with region and single-object
// allocations closed out, recognizable heap bytes, and a few card
// marks. Returns the offsets of the three allocations.
func populatedHeap(t *testing.T) (*heap.Heap, *card.Table, int64, int64, int64) {
	t.Helper()
	h, err := heap.New(heap.Config{
		PageBytes:   testPageBytes,
		Pages:       testPages,
		Generations: 6,
		CardBytes:   testCardBytes,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	a := alloc.New(h)
	ctx := a.NewContext()

	boxed, err := ctx.Alloc(64, heap.Boxed)
	require.NoError(t, err)
	unboxed, err := ctx.Alloc(128, heap.Unboxed)
	require.NoError(t, err)
	large, err := ctx.Alloc(2*testPageBytes+512, heap.Mixed)
	require.NoError(t, err)
	ctx.CloseAll()
	ctx.Release()

	for i := int64(0); i < 64; i++ {
		h.Bytes()[boxed+i] = byte(0xA0 + i%16)
	}
	for i := int64(0); i < 128; i++ {
		h.Bytes()[unboxed+i] = byte(i)
	}
	h.Bytes()[large] = 0xFE

	cards, err := card.NewTable(h.Size(), testCardBytes)
	require.NoError(t, err)
	cards.Mark(boxed)
	cards.MarkRange(large, 2*testPageBytes+512)

	return h, cards, boxed, unboxed, large
}

func putWord(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:], v)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	h, cards, boxed, unboxed, large := populatedHeap(t)

	control := make([]byte, 6*heap.WordBytes)
	putWord(control, 0, testBaseAddr+uint64(boxed))               // valid: object start
	putWord(control, 8, testBaseAddr+uint64(large)+testPageBytes) // valid: interior page of a single object
	putWord(control, 16, testBaseAddr+uint64(10*testPageBytes))   // dangling: free page
	putWord(control, 24, testBaseAddr+uint64(unboxed)+2048)       // dangling: past the used extent
	putWord(control, 32, 12345)                                   // below the heap, ignored
	putWord(control, 40, testBaseAddr+uint64(h.Size())+100)       // past the heap, ignored

	binding := make([]byte, 2*heap.WordBytes)
	putWord(binding, 0, testBaseAddr+uint64(unboxed))           // valid
	putWord(binding, 8, testBaseAddr+uint64(19*testPageBytes+8)) // dangling: free page

	threads := []Thread{{ControlStack: control, BindingStack: binding}}

	buf, err := Save(h, cards, threads, testBaseAddr)
	require.NoError(t, err)

	res, err := Load(buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Heap.Close() })

	require.Equal(t, h.Pages(), res.Heap.Pages())
	for i := int64(0); i < h.Pages(); i++ {
		assert.Equal(t, *h.PTE(i), *res.Heap.PTE(i), "page %d", i)
	}
	assert.Equal(t, h.Bytes(), res.Heap.Bytes(), "heap bytes must survive the round trip")
	assert.Equal(t, cards.Bytes(), res.Cards.Bytes(), "card marks must survive the round trip")
	require.Len(t, res.Threads, 1)
	assert.Equal(t, control, res.Threads[0].ControlStack)
	assert.Equal(t, binding, res.Threads[0].BindingStack)

	assert.Equal(t, h.BytesAllocated(), res.Heap.BytesAllocated(),
		"recounted total must match the saved heap")
	for g := 0; g <= h.Scratch(); g++ {
		assert.Equal(t, h.GenerationBytes(g), res.Heap.GenerationBytes(g), "generation %d", g)
	}

	assert.Equal(t, testBaseAddr, res.Preamble.HeapBase)
	assert.Equal(t, uint64(testPageBytes), res.Preamble.PageBytes)
	assert.Equal(t, uint32(1), res.Preamble.ThreadCount)

	assert.Equal(t, 3, res.Roots.Valid)
	assert.Equal(t, 3, res.Roots.Dangling)

	// The loader's scan and a direct scan of the original heap agree.
	ref := ScanRoots(h, testBaseAddr, threads)
	assert.Equal(t, ref, res.Roots)
}

func TestSaveLoad_NoThreads(t *testing.T) {
	h, cards, _, _, _ := populatedHeap(t)

	buf, err := Save(h, cards, nil, testBaseAddr)
	require.NoError(t, err)

	res, err := Load(buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Heap.Close() })

	assert.Empty(t, res.Threads)
	assert.Zero(t, res.Roots.Valid)
	assert.Zero(t, res.Roots.Dangling)
	assert.Equal(t, h.Bytes(), res.Heap.Bytes())
}

func TestSave_CardTableMismatch(t *testing.T) {
	h, _, _, _, _ := populatedHeap(t)

	small, err := card.NewTable(h.Size()/2, testCardBytes)
	require.NoError(t, err)

	_, err = Save(h, small, nil, testBaseAddr)
	require.Error(t, err)
}

func TestLoad_Rejections(t *testing.T) {
	h, cards, _, _, _ := populatedHeap(t)
	good, err := Save(h, cards, nil, testBaseAddr)
	require.NoError(t, err)

	pteBase := format.PreambleSize + int(h.Size())

	corrupt := func(mutate func(b []byte)) []byte {
		b := append([]byte(nil), good...)
		mutate(b)
		return b
	}

	t.Run("bad signature", func(t *testing.T) {
		_, err := Load(corrupt(func(b []byte) { b[format.SignatureOffset] ^= 0xFF }))
		require.ErrorIs(t, err, format.ErrBadDump)
	})

	t.Run("future version", func(t *testing.T) {
		_, err := Load(corrupt(func(b []byte) { format.PutU32(b, format.VersionOffset, 99) }))
		require.ErrorIs(t, err, format.ErrBadDump)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Load(good[:len(good)-1])
		require.ErrorIs(t, err, format.ErrBadDump)
	})

	t.Run("trailing garbage", func(t *testing.T) {
		_, err := Load(append(append([]byte(nil), good...), 0))
		require.ErrorIs(t, err, format.ErrBadDump)
	})

	t.Run("free page claims bytes used", func(t *testing.T) {
		_, err := Load(corrupt(func(b []byte) {
			off := pteBase + 19*format.PTESize // last page is free in this layout
			format.PutU32(b, off+format.PTEBytesUsedOffset, 8)
		}))
		require.ErrorIs(t, err, format.ErrBadDump)
	})

	t.Run("generation out of range", func(t *testing.T) {
		_, err := Load(corrupt(func(b []byte) {
			b[pteBase+format.PTEGenOffset] = 200 // page 0 is in use
		}))
		require.ErrorIs(t, err, format.ErrBadDump)
	})

	t.Run("negative stack size", func(t *testing.T) {
		threads := []Thread{{
			ControlStack: make([]byte, 24),
			BindingStack: make([]byte, 40),
		}}
		b, err := Save(h, cards, threads, testBaseAddr)
		require.NoError(t, err)

		// A wrapped-negative control size paired with an inflated
		// binding size keeps the total length consistent; each size
		// must still be rejected on its own.
		format.PutU64(b, format.PreambleSize+format.ThreadControlStackOffset, ^uint64(7)) // -8
		format.PutU64(b, format.PreambleSize+format.ThreadBindingStackOffset, 72)

		_, err = Load(b)
		require.ErrorIs(t, err, format.ErrBadDump)
	})

	t.Run("oversized stack size", func(t *testing.T) {
		threads := []Thread{{ControlStack: make([]byte, 24)}}
		b, err := Save(h, cards, threads, testBaseAddr)
		require.NoError(t, err)

		format.PutU64(b, format.PreambleSize+format.ThreadControlStackOffset,
			uint64(len(b))+1)

		_, err = Load(b)
		require.ErrorIs(t, err, format.ErrBadDump)
	})

	t.Run("scan start past page", func(t *testing.T) {
		_, err := Load(corrupt(func(b []byte) {
			off := pteBase + 0*format.PTESize
			format.PutU32(b, off+format.PTEScanStartOffset, 5)
		}))
		require.ErrorIs(t, err, format.ErrBadDump)
	})
}

func TestSaveLoadFile(t *testing.T) {
	h, cards, boxed, _, _ := populatedHeap(t)

	path := t.TempDir() + "/heap.ghcd"
	require.NoError(t, SaveFile(path, h, cards, nil, testBaseAddr))

	res, err := LoadFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Heap.Close() })

	assert.Equal(t, h.Bytes()[boxed], res.Heap.Bytes()[boxed])
	for i := int64(0); i < h.Pages(); i++ {
		assert.Equal(t, *h.PTE(i), *res.Heap.PTE(i), "page %d", i)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(t.TempDir() + "/absent.ghcd")
	require.Error(t, err)
}
