package kvstore

// ReadOptions configures one read call.
type ReadOptions struct {
	// VerifyChecksum re-validates the per-record checksum the engine stored
	// at Flush time, at the cost of an extra pass over the value's bytes.
	VerifyChecksum bool
}

// WriteOptions configures one write call.
type WriteOptions struct {
	// Sync forces the write buffer to be flushed into a new engine segment
	// before the call returns, even below the flush threshold. It does not
	// by itself fsync that segment; the engine fsyncs segments only when
	// pkg/config.Options.SyncWrites is set.
	Sync bool
}
