package kvstore

import (
	"context"
	"io"
)

// ReadWriterCloser is the full Core API surface a DB handle satisfies.
type ReadWriterCloser interface {
	Reader
	Writer
	io.Closer
}

// Reader is the read half of the Core API.
type Reader interface {
	// Get gets the value for the given key. It returns a NotFound-kind
	// error if the database does not contain the key.
	//
	// The caller should not modify the contents of the returned slice, but
	// it is safe to modify the contents of the argument after Get returns.
	// On success the caller must call closer.Close() once done with the
	// value.
	Get(ctx context.Context, opts ReadOptions, key []byte) (value []byte, closer io.Closer, err error)
}

// Writer is the write half of the Core API.
type Writer interface {
	// Put sets the value for the given key, overwriting any previous value,
	// via a single-chunk call into the chunk pipeline.
	Put(key, value []byte) error

	// Delete deletes the value for the given key. It is a blind delete: it
	// does not return an error if the key does not exist.
	Delete(key []byte) error
}
