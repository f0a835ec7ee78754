// Package entrywriter implements the chunk pipeline: the algorithm that
// accepts a value as a stream of chunks, splits oversize chunks, optionally
// compresses each chunk into a per-entry frame stream with a space-budget
// fallback to uncompressed framing, computes a streaming CRC32 over the key
// plus the final on-disk bytes, and dispatches the result to the write
// buffer.
//
// Per-entry streaming state is modeled as an explicit Writer handle rather
// than goroutine-local storage: a Writer is owned by exactly one call site
// for the lifetime of one entry's chunk sequence and must not be shared
// across entries or goroutines.
package entrywriter

import (
	"fmt"
	"log/slog"

	"emberdb/internal/bytesview"
	"emberdb/internal/checksum"
	"emberdb/internal/frame"
	"emberdb/internal/status"
	"emberdb/pkg/config"
)

// Target is the write buffer's chunked-put contract. The chunk pipeline
// dispatches every chunk, compressed or not, first or last, through this
// interface.
type Target interface {
	PutChunk(key, chunkFinal []byte, offsetChunkCompressed, sizeValue, sizeValueCompressed uint64, crc32 uint32, isLastChunk bool) status.Status
}

// Writer holds the per-entry streaming state that ties successive chunks of
// one entry together: the compression-enabled flag, the running
// uncompressed-fallback output offset, and the CRC and compressor state.
//
// A Writer is reset on the first chunk of a new entry (OffsetChunk == 0);
// its lifetime ends implicitly on the last chunk. There is no cross-entry
// carryover: calling PutChunk with OffsetChunk == 0 always begins a new
// entry, discarding whatever state a prior entry left behind.
type Writer struct {
	opts config.Options

	// compressionEnabled is true until the space-budget fallback engages
	// for this entry, at which point it becomes false for the remainder of
	// the entry's chunks and never re-enables.
	compressionEnabled bool
	// fallbackOffset is the running output offset once compressionEnabled
	// is false.
	fallbackOffset uint64

	crc        *checksum.Stream
	compressor *frame.Compressor
}

// New returns a Writer bound to opts. A single Writer may be reused across
// successive entries (each call with OffsetChunk == 0 resets it), but its
// chunks must arrive from one goroutine in increasing offset order for the
// duration of one entry.
func New(opts config.Options) *Writer {
	return &Writer{
		opts:       opts,
		crc:        checksum.New(),
		compressor: frame.New(),
	}
}

// PutChunk is the chunk pipeline entry point. It splits chunk if it and the
// declared sizeValue both exceed the configured maximum chunk size, then
// submits each resulting sub-chunk through the valid-size path in order. If
// any submission fails, the first error is returned and no further
// sub-chunks are submitted.
func (w *Writer) PutChunk(target Target, key, chunk []byte, offsetChunk, sizeValue uint64) status.Status {
	maxChunk := w.opts.Storage.MaximumChunkSize
	if sizeValue <= maxChunk || uint64(len(chunk)) <= maxChunk {
		return w.putChunkValidSize(target, key, chunk, offsetChunk, sizeValue)
	}

	// view is a non-owning window into chunk: each sub-chunk below is
	// carved out by advancing view's offset rather than by copying, since
	// the caller's buffer outlives this loop.
	view := bytesview.New(chunk)
	sizeChunk := uint64(len(chunk))
	for offset := uint64(0); offset < sizeChunk; offset += maxChunk {
		view.SetOffset(int(offset))
		size := maxChunk
		if remaining := uint64(view.Size()); size > remaining {
			size = remaining
		}
		sub := bytesview.Window(view.Data(), 0, int(size))
		if s := w.putChunkValidSize(target, key, sub.Data(), offsetChunk+offset, sizeValue); !s.IsOK() {
			return s
		}
	}
	return status.OK
}

// putChunkValidSize implements the valid-size path: steps 1-8 of the chunk
// pipeline for a single chunk no larger than the configured maximum.
func (w *Writer) putChunkValidSize(target Target, key, chunk []byte, offsetChunk, sizeValue uint64) status.Status {
	// Step 1: classification.
	isFirstChunk := offsetChunk == 0
	isLastChunk := offsetChunk+uint64(len(chunk)) == sizeValue
	doCompression := len(chunk) > 0 && w.opts.Compression.Type != config.CompressionNone

	// Step 2: entry boot.
	if isFirstChunk {
		w.compressionEnabled = true
		w.fallbackOffset = 0
		w.crc.Reset()
		w.crc.Stream(key)
		if doCompression {
			w.compressor.Reset()
		}
	}

	// Step 3: choose output framing.
	var (
		chunkFinal            []byte
		offsetChunkCompressed uint64
	)
	switch {
	case !w.compressionEnabled:
		// Fallback already engaged by a prior chunk of this entry: append
		// raw bytes continuing that frame stream's uncompressed region.
		offsetChunkCompressed = w.fallbackOffset
		w.fallbackOffset += uint64(len(chunk))
		chunkFinal = chunk

	case !doCompression:
		chunkFinal = chunk
		offsetChunkCompressed = offsetChunk

	default:
		offsetChunkCompressed = w.compressor.SizeCompressed()
		out, err := w.compressor.Compress(chunk)
		if err != nil {
			return status.IOErrorf("compression failed: %v", err)
		}

		// Step 4: compression space-budget check. The remaining
		// uncompressed bytes plus a single additional frame header must
		// still fit in the remaining padded budget.
		sizeRemaining := sizeValue - offsetChunk
		spaceLeft := sizeValue + w.opts.Storage.Padding(sizeValue) - offsetChunkCompressed
		worstCaseRemainder := (sizeRemaining - uint64(len(chunk))) + w.compressor.SizeFrameHeader()
		if worstCaseRemainder > spaceLeft-uint64(len(out)) {
			w.compressor.AdjustCompressedSize(-int64(len(out)))

			uncompressed := make([]byte, w.compressor.SizeUncompressedFrame(uint64(len(chunk))))
			w.compressor.DisableCompressionInFrameHeader(uncompressed)
			copy(uncompressed[w.compressor.SizeFrameHeader():], chunk)

			out = uncompressed
			w.compressionEnabled = false
			w.fallbackOffset = w.compressor.SizeCompressed() + uint64(len(out))
		}

		chunkFinal = out
	}

	// Step 5: last-chunk compressed-size finalization.
	var sizeValueCompressed uint64
	if doCompression && isLastChunk {
		if w.compressionEnabled {
			sizeValueCompressed = w.compressor.SizeCompressed()
		} else {
			sizeValueCompressed = offsetChunkCompressed + uint64(len(chunk))
		}
	}

	// Step 6: CRC.
	w.crc.Stream(chunkFinal)
	var crc32 uint32
	if isLastChunk {
		crc32 = w.crc.Sum32()
	}

	// Step 7: bounds assertion. This must never trip in correct operation;
	// tripping it means a bug upstream let a chunk past its declared budget,
	// so it is logged at emergency severity rather than folded into the
	// caller's ordinary failure logging.
	var sizePadding uint64
	if doCompression {
		sizePadding = w.opts.Storage.Padding(sizeValue)
	}
	if offsetChunkCompressed+uint64(len(chunkFinal)) > sizeValue+sizePadding {
		msg := fmt.Sprintf(
			"write outside allocated memory: offset=%d size=%d budget=%d",
			offsetChunkCompressed, len(chunkFinal), sizeValue+sizePadding)
		slog.Error(msg, "component", "entrywriter", "severity", "emergency", "key", string(key))
		return status.IOError(msg)
	}

	// Step 8: dispatch.
	return target.PutChunk(key, chunkFinal, offsetChunkCompressed, sizeValue, sizeValueCompressed, crc32, isLastChunk)
}
