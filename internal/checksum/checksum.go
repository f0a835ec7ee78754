// Package checksum implements the per-entry streaming CRC32 used to
// integrity-check a logical entry's on-disk bytes. It wraps the standard
// library's CRC-32 (IEEE polynomial), the same variant the storage engine's
// record format uses.
package checksum

import "hash/crc32"

// Stream accumulates a CRC32 across the key and the successive on-disk
// chunks of one entry. A Stream belongs to exactly one entry's writer for
// the lifetime of that entry's chunk sequence; it must not be shared across
// entries or across goroutines.
type Stream struct {
	hash uint32
}

// New returns a Stream ready for a fresh entry. Equivalent to calling Reset
// on the zero value.
func New() *Stream {
	return &Stream{}
}

// Reset must be called exactly once per entry, before any call to Stream,
// and discards any CRC state from a prior entry.
func (s *Stream) Reset() {
	s.hash = 0
}

// Stream folds b into the running checksum.
func (s *Stream) Stream(b []byte) {
	s.hash = crc32.Update(s.hash, crc32.IEEETable, b)
}

// Sum32 finalizes and returns the CRC32. It is meant to be called exactly
// once, on the last chunk of the entry.
func (s *Stream) Sum32() uint32 {
	return s.hash
}
