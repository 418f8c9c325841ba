// Package factdiary implements an embedded, single-process, append-only
// fact database: a content-addressed diary, a persistent Hash Array
// Mapped Trie (HAMT), a two-HAMT doubly-indexed fact store (by-object and
// by-ring), and a roots log giving atomic version advancement and crash
// recovery.
package factdiary

// HashAlgorithm selects how a key's canonical bytes (a Fact's Object and
// Ring) are reduced to the 31-bit key hash addressing a HAMT slot.
type HashAlgorithm int

const (
	// AlgXXHash3 is the default: fast, good distribution for the hot path.
	AlgXXHash3 HashAlgorithm = iota
	// AlgBlake2b trades speed for a cryptographic hash, for callers wary
	// of xxh3's non-cryptographic distribution.
	AlgBlake2b
)

// Config holds database tunables. The zero value is valid; Open fills in
// defaults for any zero field.
type Config struct {
	// HashAlgorithm selects the value codec's key-hash derivation.
	HashAlgorithm HashAlgorithm
	// ReadBuffer is defaulted but not read by any component: every diary
	// read is a fixed-width positional read, never a buffered scan.
	ReadBuffer int
	// MaxValueSize bounds a single value payload written to the diary.
	MaxValueSize int
	// CompressThreshold: text payloads at or above this size are
	// zstd-compressed before being appended to the diary, when the
	// compressed form is shorter than the original.
	CompressThreshold int
	// SyncWrites calls fsync on the diary once a batch's appends are done,
	// and on the roots log after the batch's pair is appended.
	SyncWrites bool
	// QueueCapacity bounds the engine's request queue.
	QueueCapacity int
	// Logger receives fatal invariant-violation and crash-recovery
	// notices. Defaults to a discard logger.
	Logger Logger
}

const (
	defaultReadBuffer        = 64 * 1024
	defaultMaxValueSize      = 16 * 1024 * 1024
	defaultCompressThreshold = 256
	defaultQueueCapacity     = 64
)

// withDefaults returns a copy of cfg with zero fields filled in.
func (cfg Config) withDefaults() Config {
	if cfg.ReadBuffer == 0 {
		cfg.ReadBuffer = defaultReadBuffer
	}
	if cfg.MaxValueSize == 0 {
		cfg.MaxValueSize = defaultMaxValueSize
	}
	if cfg.CompressThreshold == 0 {
		cfg.CompressThreshold = defaultCompressThreshold
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = defaultQueueCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger{}
	}
	return cfg
}
