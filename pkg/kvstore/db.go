// Package kvstore is the Core API: the database handle that ties the chunk
// pipeline (internal/entrywriter), the write buffer (internal/writebuffer),
// and the storage engine (internal/engine) together into Get, Put,
// PutChunk, Delete, NewSnapshot, and NewIterator.
package kvstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/hashicorp/go-multierror"

	"emberdb/internal/engine"
	"emberdb/internal/entrywriter"
	"emberdb/internal/status"
	"emberdb/internal/writebuffer"
	"emberdb/pkg/config"
	"emberdb/pkg/snapshot"
)

// DB is an open handle to an emberdb database.
type DB struct {
	name string
	opts config.Options
	log  *slog.Logger

	mu     sync.Mutex // guards flush-on-threshold coordination and closed
	closed bool

	buffer *writebuffer.Buffer
	eng    *engine.Engine

	lockFile *os.File
}

// isClosed reports whether Close has already been called.
func (db *DB) isClosed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}

var _ ReadWriterCloser = (*DB)(nil)

// Open opens the database at directory, creating it if it does not exist.
// A directory-wide advisory lock (via flock) is held until Close.
func Open(directory string, opts config.Options) (db *DB, err error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("kvstore: failed to create database directory: %w", err)
	}

	lockFile, err := os.OpenFile(filepath.Join(directory, "db.lock"), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("kvstore: failed to create lock file: %w", err)
	}
	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = lockFile.Close()
		return nil, fmt.Errorf("kvstore: failed to lock database directory %q: %w", directory, err)
	}
	defer func() {
		if db == nil {
			_ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
			_ = lockFile.Close()
		}
	}()

	dbOpts := opts
	dbOpts.DataDirectory = filepath.Join(directory, filepath.Base(opts.DataDirectory))
	dbOpts.WALDirectory = filepath.Join(directory, filepath.Base(opts.WALDirectory))

	eng, err := engine.Open(dbOpts, "", false, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("kvstore: failed to open storage engine: %w", err)
	}

	db = &DB{
		name:     filepath.Base(directory),
		opts:     dbOpts,
		log:      slog.Default().With("component", "kvstore", "db", filepath.Base(directory)),
		buffer:   writebuffer.New(dbOpts),
		eng:      eng,
		lockFile: lockFile,
	}
	db.log.Debug("database opened", "directory", directory)
	return db, nil
}

// Get returns the value for key, consulting the write buffer first and
// falling through to the storage engine, per the read path's documented
// order. A DeleteOrder result from the write buffer is translated to
// NotFound at this boundary: DeleteOrder is an internal marker, never
// surfaced to callers of the Core API.
func (db *DB) Get(ctx context.Context, opts ReadOptions, key []byte) ([]byte, io.Closer, error) {
	if db.isClosed() {
		return nil, nil, status.IOError("database is not open").AsError()
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	value, st := db.buffer.Get(key)
	switch {
	case st.IsOK():
		db.log.Debug("get hit in write buffer", "key", string(key))
		return value, Close(func() {}), nil
	case st.IsDeleteOrder():
		db.log.Debug("get found tombstone in write buffer", "key", string(key))
		return nil, nil, status.NotFound("key not found").AsError()
	case st.IsNotFound():
		// Fall through to the engine.
	default:
		db.log.Warn("get failed in write buffer", "key", string(key), "error", st.Error())
		return nil, nil, st.AsError()
	}

	value, st = db.eng.Get(key, opts.VerifyChecksum)
	if !st.IsOK() {
		if !st.IsNotFound() {
			db.log.Warn("get failed in engine", "key", string(key), "error", st.Error())
		}
		return nil, nil, st.AsError()
	}
	return value, Close(func() {}), nil
}

// Put sets the value for key as a single chunk covering the whole value.
func (db *DB) Put(key, value []byte) error {
	return db.PutWithOptions(context.Background(), WriteOptions{}, key, value)
}

// PutWithOptions is Put with explicit WriteOptions and a cancellable
// context.
func (db *DB) PutWithOptions(ctx context.Context, opts WriteOptions, key, value []byte) error {
	if db.isClosed() {
		return status.IOError("database is not open").AsError()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	w := entrywriter.New(db.opts)
	if st := w.PutChunk(db.buffer, key, value, 0, uint64(len(value))); !st.IsOK() {
		db.log.Warn("put failed", "key", string(key), "error", st.Error())
		return st.AsError()
	}
	db.log.Debug("put committed to write buffer", "key", string(key), "size", len(value))
	return db.maybeFlush(opts)
}

// NewEntryWriter returns a Writer handle for streaming one entry's value
// across successive PutChunk calls, e.g. when the value is produced
// incrementally and the caller does not want to buffer it whole in memory
// first. The handle must be used for exactly one entry's chunk sequence by
// one caller at a time.
func (db *DB) NewEntryWriter() *entrywriter.Writer {
	return entrywriter.New(db.opts)
}

// PutChunk dispatches one chunk of an entry's value through w into the
// chunk pipeline. offsetChunk and sizeValue follow entrywriter.Writer's
// contract: offsetChunk == 0 begins a new entry and offsetChunk+len(chunk)
// == sizeValue marks the last chunk.
func (db *DB) PutChunk(ctx context.Context, opts WriteOptions, w *entrywriter.Writer, key, chunk []byte, offsetChunk, sizeValue uint64) error {
	if db.isClosed() {
		return status.IOError("database is not open").AsError()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if st := w.PutChunk(db.buffer, key, chunk, offsetChunk, sizeValue); !st.IsOK() {
		db.log.Warn("put_chunk failed", "key", string(key), "error", st.Error())
		return st.AsError()
	}
	if offsetChunk+uint64(len(chunk)) == sizeValue {
		return db.maybeFlush(opts)
	}
	return nil
}

// Delete enqueues a tombstone for key. The engine's filesystem health is
// checked first so a failing disk is reported at delete time rather than
// silently deferred to the next flush.
func (db *DB) Delete(key []byte) error {
	return db.DeleteWithOptions(context.Background(), WriteOptions{}, key)
}

// DeleteWithOptions is Delete with explicit WriteOptions and a cancellable
// context.
func (db *DB) DeleteWithOptions(ctx context.Context, opts WriteOptions, key []byte) error {
	if db.isClosed() {
		return status.IOError("database is not open").AsError()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if st := db.eng.FileSystemStatus(); !st.IsOK() {
		db.log.Warn("delete rejected: engine filesystem unhealthy", "key", string(key), "error", st.Error())
		return st.AsError()
	}
	if st := db.buffer.Delete(key); !st.IsOK() {
		return st.AsError()
	}
	db.log.Debug("delete committed to write buffer", "key", string(key))
	return db.maybeFlush(opts)
}

// maybeFlush flushes the write buffer to the engine once it has grown past
// its configured threshold.
func (db *DB) maybeFlush(opts WriteOptions) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	force := opts.Sync
	if !force && !db.buffer.ShouldFlush() {
		return nil
	}
	if st := db.buffer.Flush(db.eng); !st.IsOK() {
		db.log.Warn("flush failed", "error", st.Error())
		return st.AsError()
	}
	db.log.Debug("write buffer flushed")
	return nil
}

// NewSnapshot quiesces the write buffer and returns a consistent
// point-in-time read view of the database.
func (db *DB) NewSnapshot() (*snapshot.Snapshot, error) {
	if db.isClosed() {
		return nil, nil
	}

	db.mu.Lock()
	if st := db.buffer.Flush(db.eng); !st.IsOK() {
		db.mu.Unlock()
		return nil, st.AsError()
	}
	db.mu.Unlock()

	return snapshot.New("", engineView{db.eng})
}

// NewIterator builds a fresh snapshot and returns an ordered iterator over
// it. The caller owns the returned iterator's snapshot (Iterator.Snapshot)
// and must close both when done.
func (db *DB) NewIterator(opts ReadOptions) (*snapshot.Iterator, error) {
	if db.isClosed() {
		return nil, nil
	}

	snap, err := db.NewSnapshot()
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	it, err := snap.NewIterator()
	if err != nil {
		_ = snap.Close()
		return nil, err
	}
	return it, nil
}

// Close flushes any remaining buffered writes, closes the storage engine,
// and releases the directory lock.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	var result *multierror.Error

	if st := db.buffer.Flush(db.eng); !st.IsOK() {
		result = multierror.Append(result, st.AsError())
	}
	if err := db.eng.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := syscall.Flock(int(db.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		result = multierror.Append(result, fmt.Errorf("kvstore: failed to unlock directory: %w", err))
	}
	if err := db.lockFile.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("kvstore: failed to close lock file: %w", err))
	}

	db.log.Debug("database closed")
	return result.ErrorOrNil()
}
