package entrywriter

import (
	"bytes"
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emberdb/internal/frame"
	"emberdb/internal/status"
	"emberdb/pkg/config"
)

type call struct {
	key                   []byte
	chunkFinal            []byte
	offsetChunkCompressed uint64
	sizeValue             uint64
	sizeValueCompressed   uint64
	crc32                 uint32
	isLastChunk           bool
}

type mockTarget struct {
	calls []call
}

func (m *mockTarget) PutChunk(key, chunkFinal []byte, offsetChunkCompressed, sizeValue, sizeValueCompressed uint64, crc32 uint32, isLastChunk bool) status.Status {
	cp := append([]byte{}, chunkFinal...)
	m.calls = append(m.calls, call{
		key:                   key,
		chunkFinal:            cp,
		offsetChunkCompressed: offsetChunkCompressed,
		sizeValue:             sizeValue,
		sizeValueCompressed:   sizeValueCompressed,
		crc32:                 crc32,
		isLastChunk:           isLastChunk,
	})
	return status.OK
}

func (m *mockTarget) onDiskBytes() []byte {
	var out []byte
	for _, c := range m.calls {
		out = append(out, c.chunkFinal...)
	}
	return out
}

func TestPutChunkUncompressedSingleChunk(t *testing.T) {
	opts := config.New(config.WithCompression(config.CompressionNone))
	w := New(opts)
	tgt := &mockTarget{}

	value := []byte("hello, world")
	st := w.PutChunk(tgt, []byte("k"), value, 0, uint64(len(value)))
	require.True(t, st.IsOK())

	require.Len(t, tgt.calls, 1)
	c := tgt.calls[0]
	assert.True(t, c.isLastChunk)
	assert.Equal(t, value, c.chunkFinal)
	assert.Equal(t, uint64(0), c.sizeValueCompressed)

	want := crc32.ChecksumIEEE(append(append([]byte{}, "k"...), value...))
	assert.Equal(t, want, c.crc32)
}

func TestPutChunkCompressedRoundTrips(t *testing.T) {
	opts := config.New(config.WithCompression(config.CompressionS2))
	w := New(opts)
	tgt := &mockTarget{}

	value := bytes.Repeat([]byte("compressible data "), 200)
	st := w.PutChunk(tgt, []byte("k"), value, 0, uint64(len(value)))
	require.True(t, st.IsOK())

	require.NotEmpty(t, tgt.calls)
	last := tgt.calls[len(tgt.calls)-1]
	assert.True(t, last.isLastChunk)
	assert.Greater(t, last.sizeValueCompressed, uint64(0))

	decoded, err := frame.DecodeStream(tgt.onDiskBytes())
	require.NoError(t, err)
	assert.Equal(t, value, decoded)
}

func TestPutChunkOversizeChunkIsSplit(t *testing.T) {
	opts := config.New(
		config.WithCompression(config.CompressionNone),
		config.WithMaximumChunkSize(16),
	)
	w := New(opts)
	tgt := &mockTarget{}

	value := bytes.Repeat([]byte("x"), 100)
	st := w.PutChunk(tgt, []byte("k"), value, 0, uint64(len(value)))
	require.True(t, st.IsOK())

	assert.Greater(t, len(tgt.calls), 1)
	assert.Equal(t, value, tgt.onDiskBytes())
	assert.True(t, tgt.calls[len(tgt.calls)-1].isLastChunk)

	var total int
	for _, c := range tgt.calls {
		total += len(c.chunkFinal)
	}
	assert.Equal(t, len(value), total)
}

func TestPutChunkMultiCallStreaming(t *testing.T) {
	opts := config.New(config.WithCompression(config.CompressionNone))
	w := New(opts)
	tgt := &mockTarget{}

	value := []byte("0123456789")
	st := w.PutChunk(tgt, []byte("k"), value[:4], 0, uint64(len(value)))
	require.True(t, st.IsOK())
	st = w.PutChunk(tgt, []byte("k"), value[4:], 4, uint64(len(value)))
	require.True(t, st.IsOK())

	require.Len(t, tgt.calls, 2)
	assert.False(t, tgt.calls[0].isLastChunk)
	assert.True(t, tgt.calls[1].isLastChunk)
	assert.Equal(t, value, tgt.onDiskBytes())
}

func TestPutChunkSpaceBudgetFallbackIsMonotonic(t *testing.T) {
	// Pick a value size whose padding budget (16 bytes) is too small for
	// the first chunk's frame, so the compressor's worst-case-remainder
	// check trips on incompressible data, then verify the fallback, once
	// engaged, never re-enables compression for later chunks of the same
	// entry.
	opts := config.New(config.WithCompression(config.CompressionS2))
	w := New(opts)
	tgt := &mockTarget{}

	randomish := make([]byte, 2032)
	rand.New(rand.NewSource(1)).Read(randomish)
	sizeValue := uint64(len(randomish))
	require.Equal(t, uint64(16), opts.Storage.Padding(sizeValue))

	st := w.putChunkValidSize(tgt, []byte("k"), randomish[:1024], 0, sizeValue)
	require.True(t, st.IsOK())
	assert.False(t, w.compressionEnabled)
	st = w.putChunkValidSize(tgt, []byte("k"), randomish[1024:], 1024, sizeValue)
	require.True(t, st.IsOK())
	assert.False(t, w.compressionEnabled)
	assert.Equal(t, randomish[1024:], tgt.calls[1].chunkFinal)

	decoded, err := frame.DecodeStream(tgt.onDiskBytes())
	require.NoError(t, err)
	assert.Equal(t, randomish, decoded)
}

func TestPutChunkCRCCoversKeyAndOnDiskBytes(t *testing.T) {
	opts := config.New(config.WithCompression(config.CompressionNone))
	w := New(opts)
	tgt := &mockTarget{}

	key := []byte("my-key")
	value := []byte("some value bytes")
	st := w.PutChunk(tgt, key, value, 0, uint64(len(value)))
	require.True(t, st.IsOK())

	want := crc32.ChecksumIEEE(append(append([]byte{}, key...), tgt.onDiskBytes()...))
	assert.Equal(t, want, tgt.calls[len(tgt.calls)-1].crc32)
}

func TestPutChunkStaysWithinSpaceBudget(t *testing.T) {
	opts := config.New(config.WithCompression(config.CompressionS2))
	w := New(opts)
	tgt := &mockTarget{}

	value := bytes.Repeat([]byte("z"), 777)
	st := w.PutChunk(tgt, []byte("k"), value, 0, uint64(len(value)))
	require.True(t, st.IsOK())

	budget := uint64(len(value)) + opts.Storage.Padding(uint64(len(value)))
	var emitted uint64
	for _, c := range tgt.calls {
		emitted = c.offsetChunkCompressed + uint64(len(c.chunkFinal))
	}
	assert.LessOrEqual(t, emitted, budget)
}
