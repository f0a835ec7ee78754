// Package engine implements the durable storage engine collaborator: an
// append-only sequence of immutable segment files, each written in one
// batch by the write buffer's Flush. Segment records use a bitcask-style
// framing (CRC32 + header + key + value); segment files themselves are
// written through a direct-I/O, block-aligned Writer, since an entire
// segment is always written in one call and therefore pads only once at
// the end.
//
// File ids are monotonically increasing and never reused. A snapshot pins a
// fileIDEnd boundary plus an ignore set of file ids that raced the snapshot
// and must not be visible through it; GetFileIDsIterator and the read-only
// constructor both honor that boundary.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"emberdb/internal/status"
	"emberdb/internal/writebuffer"
	"emberdb/pkg/config"
)

const segmentExt = ".seg"

type location struct {
	fileID  uint32
	offset  int64
	length  uint32
	deleted bool
}

// Engine is the storage engine collaborator.
type Engine struct {
	mu   sync.RWMutex
	dir  string
	opts config.Options

	readOnly  bool
	ignoreSet map[uint32]struct{}
	fileIDEnd uint32 // 0 means unbounded (the live engine)

	nextFileID uint32
	lastFileID uint32

	index map[string]location

	snapshotSeq uint32
}

// Open opens (or creates) the engine's segment directory. A read-only
// engine only indexes file ids <= fileIDEnd that are not in ignoreSet, and
// rejects writes; it backs one point-in-time snapshot view.
func Open(opts config.Options, dbname string, readOnly bool, ignoreSet map[uint32]struct{}, fileIDEnd uint32) (*Engine, error) {
	dir := filepath.Join(opts.DataDirectory, dbname)
	if !readOnly {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("engine: failed to create data directory: %w", err)
		}
	}
	if ignoreSet == nil {
		ignoreSet = map[uint32]struct{}{}
	}

	e := &Engine{
		dir:       dir,
		opts:      opts,
		readOnly:  readOnly,
		ignoreSet: ignoreSet,
		fileIDEnd: fileIDEnd,
		index:     make(map[string]location),
	}

	ids, err := e.listSegmentIDs()
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if _, skip := ignoreSet[id]; skip {
			continue
		}
		if readOnly && fileIDEnd != 0 && id > fileIDEnd {
			continue
		}
		if err := e.rebuildFromSegment(id); err != nil {
			return nil, fmt.Errorf("engine: failed to rebuild index from segment %d: %w", id, err)
		}
		if id > e.lastFileID {
			e.lastFileID = id
		}
	}
	e.nextFileID = e.lastFileID + 1

	return e, nil
}

func (e *Engine) listSegmentIDs() ([]uint32, error) {
	entries, err := os.ReadDir(e.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("engine: failed to list data directory: %w", err)
	}

	var ids []uint32
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		var id uint32
		if _, err := fmt.Sscanf(ent.Name(), "%08d"+segmentExt, &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (e *Engine) segmentPath(id uint32) string {
	return filepath.Join(e.dir, fmt.Sprintf("%08d%s", id, segmentExt))
}

// FileSystemStatus reports whether the engine's data directory is healthy:
// it exists, is a directory, and (for a live engine) is writable.
func (e *Engine) FileSystemStatus() status.Status {
	info, err := os.Stat(e.dir)
	if err != nil {
		return status.IOErrorf("engine: data directory unavailable: %v", err)
	}
	if !info.IsDir() {
		return status.IOError("engine: data path is not a directory")
	}
	if e.readOnly {
		return status.OK
	}

	probe := filepath.Join(e.dir, ".healthcheck")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return status.IOErrorf("engine: data directory not writable: %v", err)
	}
	_ = f.Close()
	_ = os.Remove(probe)
	return status.OK
}

// Get returns the engine's persisted view of key. When verifyChecksum is
// true, the record's stored CRC32 is recomputed and checked against the
// bytes just read, at the cost of an extra pass over the value.
func (e *Engine) Get(key []byte, verifyChecksum bool) ([]byte, status.Status) {
	e.mu.RLock()
	loc, ok := e.index[string(key)]
	e.mu.RUnlock()

	if !ok {
		return nil, status.NotFound("not in engine")
	}
	if loc.deleted {
		return nil, status.NotFound("deleted")
	}

	value, err := e.readValue(loc, verifyChecksum)
	if err != nil {
		return nil, status.IOErrorf("engine: failed to read value: %v", err)
	}
	return value, status.OK
}

// WriteSegment implements writebuffer.EngineTarget: it writes every entry in
// entries as one new immutable segment file and publishes it to the index.
func (e *Engine) WriteSegment(entries []writebuffer.Entry) (uint32, error) {
	if e.readOnly {
		return 0, fmt.Errorf("engine: read-only view cannot write segments")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextFileID
	locs, err := writeSegmentFile(e.segmentPath(id), entries, e.opts.SyncWrites)
	if err != nil {
		return 0, err
	}

	for k, loc := range locs {
		loc.fileID = id
		e.index[k] = loc
	}
	e.nextFileID++
	e.lastFileID = id
	return id, nil
}

func (e *Engine) rebuildFromSegment(id uint32) error {
	locs, err := readSegmentIndex(e.segmentPath(id))
	if err != nil {
		return err
	}
	for k, loc := range locs {
		loc.fileID = id
		e.index[k] = loc
	}
	return nil
}

func (e *Engine) readValue(loc location, verifyChecksum bool) ([]byte, error) {
	return readSegmentValue(e.segmentPath(loc.fileID), loc, verifyChecksum)
}

// FlushCurrentFileForSnapshot returns the id of the most recently completed
// segment. The engine always writes whole, immediately-sealed segments, so
// there is no partial file to seal; every file with id <= fileIDEnd is
// stable and visible to a snapshot built from this boundary.
func (e *Engine) FlushCurrentFileForSnapshot() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastFileID
}

// GetNewSnapshotData allocates a new snapshot id and reports the set of file
// ids that a concurrent writer may still be populating and that must be
// hidden from the snapshot. This engine has no background compaction, so the
// ignore set is always empty; the field exists to satisfy the collaborator
// contract snapshot.New relies on.
func (e *Engine) GetNewSnapshotData() (uint32, map[uint32]struct{}) {
	e.mu.Lock()
	e.snapshotSeq++
	seq := e.snapshotSeq
	e.mu.Unlock()
	return seq, map[uint32]struct{}{}
}

// GetFileIDsIterator returns every file id <= fileIDEnd, excluding
// ignoreSet, in ascending order: the set of segments a snapshot or iterator
// built from this boundary may read.
func (e *Engine) GetFileIDsIterator() []uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids, err := e.listSegmentIDs()
	if err != nil {
		return nil
	}
	out := ids[:0]
	for _, id := range ids {
		if _, skip := e.ignoreSet[id]; skip {
			continue
		}
		if e.fileIDEnd != 0 && id > e.fileIDEnd {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OpenSnapshotView opens a read-only Engine limited to the file ids visible
// through fileIDEnd and ignoreSet, for pkg/snapshot to read through.
func (e *Engine) OpenSnapshotView(dbname string, ignoreSet map[uint32]struct{}, fileIDEnd uint32) (*Engine, error) {
	return Open(e.opts, dbname, true, ignoreSet, fileIDEnd)
}

// Close releases the engine's resources. A live engine has no open file
// handles between flushes (each WriteSegment opens and closes its own
// file), so Close only re-checks the data directory's health and, for a
// live engine, returns any failure as an error.
func (e *Engine) Close() error {
	var result *multierror.Error
	if err := e.FileSystemStatus().AsError(); err != nil && !e.readOnly {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
