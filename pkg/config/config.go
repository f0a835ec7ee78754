// Package config holds the layered configuration for an emberdb database:
// functional options for programmatic setup, plus a JSON-loadable Options
// struct for deployments that prefer a config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// CompressionType selects the per-chunk compression strategy used by the
// write path.
type CompressionType int

const (
	// CompressionNone disables compression; chunks are stored verbatim.
	CompressionNone CompressionType = iota
	// CompressionS2 compresses each chunk into an independent S2-framed
	// block, falling back to an uncompressed frame when the per-entry
	// space budget would otherwise be exceeded.
	CompressionS2
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionS2:
		return "s2"
	default:
		return "unknown"
	}
}

// StorageOptions configures the chunk pipeline and on-disk padding policy.
type StorageOptions struct {
	// MaximumChunkSize is the largest chunk the chunk pipeline will hand to
	// the write buffer in one call; larger chunks are split by PutChunk.
	MaximumChunkSize uint64 `json:"maximum_chunk_size"`

	// paddingAlignment is the byte alignment Padding rounds up to; zero
	// means 512. It is unexported, so it is neither saved to nor loaded
	// from JSON and keeps the value Default gave it.
	paddingAlignment uint64
}

// Padding returns the number of padding bytes reserved after an entry of
// the given uncompressed size, available to the compressor as overflow
// slack. It is computed on each call; the default rounds sizeValue up to
// the next 512-byte boundary.
func (s StorageOptions) Padding(sizeValue uint64) uint64 {
	align := s.paddingAlignment
	if align == 0 {
		align = 512
	}
	rem := sizeValue % align
	if rem == 0 {
		return 0
	}
	return align - rem
}

// CompressionOptions configures the per-chunk compression strategy.
type CompressionOptions struct {
	Type CompressionType `json:"type"`
}

// Options is the full configuration for an emberdb database.
type Options struct {
	// DataDirectory holds the storage engine's append-only data files.
	DataDirectory string `json:"data_directory"`
	// WALDirectory names a write-ahead log directory. Validate requires it
	// and kvstore.Open resolves it under the database directory, but the
	// write buffer keeps no write-ahead log and nothing is written there.
	WALDirectory string `json:"wal_directory"`
	// SyncWrites forces an fsync after every engine append when true.
	SyncWrites bool `json:"sync_writes"`
	// MemtableSizeBytes is the number of bytes the write buffer may
	// accumulate before it is flushed to the engine.
	MemtableSizeBytes uint64 `json:"memtable_size_bytes"`

	Storage     StorageOptions      `json:"storage"`
	Compression CompressionOptions `json:"compression"`
}

// Option mutates an Options value being built by New.
type Option func(*Options)

// Default returns an Options value with sensible defaults.
func Default() Options {
	return Options{
		DataDirectory:     "data",
		WALDirectory:      "wal",
		SyncWrites:        false,
		MemtableSizeBytes: 4 << 20, // 4 MiB
		Storage: StorageOptions{
			MaximumChunkSize: 64 << 10, // 64 KiB
			paddingAlignment: 512,
		},
		Compression: CompressionOptions{Type: CompressionS2},
	}
}

// New builds an Options value from Default, applying opts in order.
func New(opts ...Option) Options {
	o := Default()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDataDirectory overrides the data directory.
func WithDataDirectory(dir string) Option {
	return func(o *Options) { o.DataDirectory = dir }
}

// WithWALDirectory overrides the WAL directory.
func WithWALDirectory(dir string) Option {
	return func(o *Options) { o.WALDirectory = dir }
}

// WithSyncWrites toggles fsync-per-write durability.
func WithSyncWrites(sync bool) Option {
	return func(o *Options) { o.SyncWrites = sync }
}

// WithMaximumChunkSize overrides the chunk pipeline's split threshold.
func WithMaximumChunkSize(n uint64) Option {
	return func(o *Options) { o.Storage.MaximumChunkSize = n }
}

// WithCompression overrides the compression strategy.
func WithCompression(t CompressionType) Option {
	return func(o *Options) { o.Compression.Type = t }
}

// WithMemtableSizeBytes overrides the write buffer's flush threshold.
func WithMemtableSizeBytes(n uint64) Option {
	return func(o *Options) { o.MemtableSizeBytes = n }
}

// Validate checks that the configuration is usable.
func (o Options) Validate() error {
	if o.DataDirectory == "" {
		return fmt.Errorf("config: data_directory is required")
	}
	if o.WALDirectory == "" {
		return fmt.Errorf("config: wal_directory is required")
	}
	if o.Storage.MaximumChunkSize == 0 {
		return fmt.Errorf("config: storage.maximum_chunk_size must be greater than 0")
	}
	if o.MemtableSizeBytes == 0 {
		return fmt.Errorf("config: memtable_size_bytes must be greater than 0")
	}
	return nil
}

// LoadFromFile loads an Options value from a JSON file, starting from
// Default so unset fields retain their defaults.
func LoadFromFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: failed to read file: %w", err)
	}

	o := Default()
	if err := json.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("config: failed to parse file: %w", err)
	}
	if err := o.Validate(); err != nil {
		return Options{}, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return o, nil
}

// SaveToFile writes o to path as indented JSON.
func (o Options) SaveToFile(path string) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: failed to write file: %w", err)
	}
	return nil
}
