// Package writebuffer implements the in-memory write buffer the chunk
// pipeline dispatches into: an entry's chunks are assembled here as they
// arrive and, once the assembled on-disk bytes are decoded back into the
// entry's plain value, held in a guarded map until the buffer is flushed
// to the storage engine.
package writebuffer

import (
	"fmt"
	"sort"
	"sync"

	"emberdb/internal/frame"
	"emberdb/internal/status"
	"emberdb/pkg/config"
)

// EngineTarget is the storage engine's side of Flush: a new immutable
// segment built from every live entry and tombstone currently buffered.
type EngineTarget interface {
	WriteSegment(entries []Entry) (fileID uint32, err error)
}

// Entry is one key's state as flushed from the write buffer to the engine.
type Entry struct {
	Key     []byte
	Value   []byte
	Deleted bool
}

// liveEntry is one key's state while it is held in the buffer.
type liveEntry struct {
	value   []byte
	deleted bool
}

// assembling tracks the chunks received so far for one entry that has not
// yet seen its last chunk.
type assembling struct {
	buf                 []byte
	sizeValue           uint64
	sizeValueCompressed uint64
	crc32               uint32
	compressed          bool
}

// Buffer is the write buffer collaborator: Get, PutChunk, Delete, Flush.
type Buffer struct {
	mu        sync.RWMutex
	opts      config.Options
	entries   map[string]*liveEntry
	pending   map[string]*assembling
	sizeBytes uint64
}

// New returns an empty Buffer configured by opts.
func New(opts config.Options) *Buffer {
	return &Buffer{
		opts:    opts,
		entries: make(map[string]*liveEntry),
		pending: make(map[string]*assembling),
	}
}

// Get returns the buffer's view of key: OK with the value, DeleteOrder if a
// tombstone is buffered, or NotFound if the buffer holds nothing for key.
func (b *Buffer) Get(key []byte) ([]byte, status.Status) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[string(key)]
	if !ok {
		return nil, status.NotFound("not buffered")
	}
	if e.deleted {
		return nil, status.DeleteOrder("tombstone buffered")
	}
	return e.value, status.OK
}

// PutChunk assembles one dispatched chunk of an entry. isLastChunk signals
// that this is the final chunk of the entry (offsetChunk+len(chunk) ==
// sizeValue in the chunk pipeline's own accounting); the buffer uses it to
// decide when to decode the assembled on-disk bytes into the entry's plain
// value and publish it for Get.
func (b *Buffer) PutChunk(key, chunkFinal []byte, offsetChunkCompressed, sizeValue, sizeValueCompressed uint64, crc32 uint32, isLastChunk bool) status.Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := string(key)
	a, ok := b.pending[k]
	if !ok {
		a = &assembling{
			buf:        make([]byte, 0, min64(sizeValue, 1<<20)),
			sizeValue:  sizeValue,
			compressed: b.opts.Compression.Type != config.CompressionNone,
		}
		b.pending[k] = a
	}

	if uint64(len(a.buf)) != offsetChunkCompressed {
		return status.IOError(fmt.Sprintf(
			"writebuffer: non-contiguous chunk for key %q: have %d bytes, chunk starts at %d",
			key, len(a.buf), offsetChunkCompressed))
	}
	a.buf = append(a.buf, chunkFinal...)
	b.sizeBytes += uint64(len(chunkFinal))

	if sizeValueCompressed != 0 {
		a.sizeValueCompressed = sizeValueCompressed
	}
	if isLastChunk {
		a.crc32 = crc32
		value := a.buf
		if a.compressed {
			decoded, err := frame.DecodeStream(a.buf)
			if err != nil {
				delete(b.pending, k)
				return status.IOErrorf("writebuffer: decode failed for key %q: %v", key, err)
			}
			value = decoded
		}
		delete(b.pending, k)
		b.entries[k] = &liveEntry{value: value}
	}

	return status.OK
}

// Delete enqueues a tombstone for key.
func (b *Buffer) Delete(key []byte) status.Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := string(key)
	delete(b.pending, k)
	b.entries[k] = &liveEntry{deleted: true}
	b.sizeBytes += uint64(len(key))
	return status.OK
}

// ShouldFlush reports whether the buffer has grown past its configured
// size and should be flushed before accepting more writes.
func (b *Buffer) ShouldFlush() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sizeBytes >= b.opts.MemtableSizeBytes
}

// Flush drains every live entry to target as one new immutable segment and
// resets the buffer. Any entry still being assembled (its last chunk never
// arrived) is discarded, per the chunk pipeline's failure semantics: the
// write buffer is expected to discard a partially written entry.
func (b *Buffer) Flush(target EngineTarget) status.Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		b.pending = make(map[string]*assembling)
		return status.OK
	}

	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e := b.entries[k]
		out = append(out, Entry{Key: []byte(k), Value: e.value, Deleted: e.deleted})
	}

	if _, err := target.WriteSegment(out); err != nil {
		return status.IOErrorf("writebuffer: flush failed: %v", err)
	}

	b.entries = make(map[string]*liveEntry)
	b.pending = make(map[string]*assembling)
	b.sizeBytes = 0
	return status.OK
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
