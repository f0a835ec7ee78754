// Package frame implements the per-entry streaming compressor. Each chunk
// of an entry becomes one frame: a small fixed-size header followed by
// either an S2-compressed block or, once the per-entry space-budget
// fallback engages, the chunk's raw bytes. Frames up to the fallback point
// are independently decodable; once the fallback engages, later chunks
// continue that single frame's uncompressed region without further
// headers, so DecodeStream treats everything after the first uncompressed
// frame as a raw continuation. Fallback never re-enables compression for
// the rest of the entry.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/s2"
)

// headerSize is the fixed length of a frame header: one flag byte, a
// big-endian uint32 payload length, and a big-endian uint32 uncompressed
// length.
const headerSize = 9

const (
	flagCompressed   byte = 0
	flagUncompressed byte = 1
)

// Compressor holds the per-entry, per-writer compression state. A
// Compressor belongs to exactly one entry's writer for the lifetime of that
// entry's chunk sequence; see internal/entrywriter.
type Compressor struct {
	sizeCompressed uint64
}

// New returns a Compressor ready for a fresh entry.
func New() *Compressor {
	return &Compressor{}
}

// Reset begins a new entry's frame stream, discarding any state from a
// prior entry.
func (c *Compressor) Reset() {
	c.sizeCompressed = 0
}

// SizeFrameHeader returns the constant frame-header length.
func (c *Compressor) SizeFrameHeader() uint64 {
	return headerSize
}

// SizeUncompressedFrame returns the size of a frame that stores n bytes
// verbatim.
func (c *Compressor) SizeUncompressedFrame(n uint64) uint64 {
	return headerSize + n
}

// SizeCompressed returns the cumulative number of bytes emitted across
// frames since Reset.
func (c *Compressor) SizeCompressed() uint64 {
	return c.sizeCompressed
}

// AdjustCompressedSize applies a signed correction to the cumulative
// compressed size, used after the caller discards a speculative frame in
// favor of an uncompressed fallback frame.
func (c *Compressor) AdjustCompressedSize(delta int64) {
	c.sizeCompressed = uint64(int64(c.sizeCompressed) + delta)
}

// Compress produces one frame covering src. The returned frame's length may
// be smaller or larger than len(src); it always includes the frame header.
func (c *Compressor) Compress(src []byte) ([]byte, error) {
	if uint64(len(src)) > 0xFFFFFFFF {
		return nil, fmt.Errorf("frame: chunk too large to compress: %d bytes", len(src))
	}

	payload := s2.Encode(nil, src)

	out := make([]byte, headerSize+len(payload))
	out[0] = flagCompressed
	binary.BigEndian.PutUint32(out[1:5], uint32(len(payload)))
	binary.BigEndian.PutUint32(out[5:headerSize], uint32(len(src)))
	copy(out[headerSize:], payload)

	c.sizeCompressed += uint64(len(out))
	return out, nil
}

// DisableCompressionInFrameHeader rewrites the header of a freshly
// constructed, correctly sized (via SizeUncompressedFrame) frame buffer to
// mark it as storing its payload uncompressed. It does not copy the
// payload; the caller is responsible for writing buf[headerSize:] itself.
func (c *Compressor) DisableCompressionInFrameHeader(buf []byte) {
	payloadLen := uint32(len(buf) - headerSize)
	buf[0] = flagUncompressed
	binary.BigEndian.PutUint32(buf[1:5], payloadLen)
	binary.BigEndian.PutUint32(buf[5:headerSize], payloadLen)
}

// DecodeStream reverses a complete per-entry frame stream, as produced by
// successive Compress/DisableCompressionInFrameHeader calls concatenated in
// submission order, back into the original uncompressed value bytes.
func DecodeStream(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	pos := 0
	for pos < len(data) {
		if len(data)-pos < headerSize {
			return nil, fmt.Errorf("frame: truncated frame header at offset %d", pos)
		}
		flag := data[pos]
		payloadLen := binary.BigEndian.Uint32(data[pos+1 : pos+5])
		uncompressedLen := binary.BigEndian.Uint32(data[pos+5 : pos+headerSize])
		payloadStart := pos + headerSize
		payloadEnd := payloadStart + int(payloadLen)
		if payloadEnd > len(data) {
			return nil, fmt.Errorf("frame: truncated frame payload at offset %d", pos)
		}
		payload := data[payloadStart:payloadEnd]

		switch flag {
		case flagCompressed:
			decoded, err := s2.Decode(make([]byte, uncompressedLen), payload)
			if err != nil {
				return nil, fmt.Errorf("frame: decompress failed at offset %d: %w", pos, err)
			}
			out = append(out, decoded...)
			pos = payloadEnd
		case flagUncompressed:
			out = append(out, payload...)
			// Once the fallback engages it is never disabled again for
			// the rest of the entry (monotonicity), so every remaining
			// byte in the stream is a raw continuation of this frame's
			// uncompressed region, written without further headers.
			out = append(out, data[payloadEnd:]...)
			return out, nil
		default:
			return nil, fmt.Errorf("frame: unknown frame flag %d at offset %d", flag, pos)
		}
	}
	return out, nil
}
