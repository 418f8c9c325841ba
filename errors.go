package factdiary

import "errors"

// Sentinel errors returned by database operations.
var (
	// ErrClosed is returned when submitting a request to a closed engine.
	ErrClosed = errors.New("factdiary: engine closed")

	// ErrCorruptRootsLog is returned when the tail pair chosen on open
	// cannot be read back or decoded. A torn tail, or tail pairs whose
	// top-frame positions lie beyond the diary, are instead cut off on
	// open; when no good pair remains the log opens as (ZERO, ZERO).
	ErrCorruptRootsLog = errors.New("factdiary: roots log corrupt")

	// ErrInvariant marks a violated structural invariant (a decoded slot
	// with its discriminator bit still set after clearing, or a Ref.mask
	// whose popcount disagrees with its frame's readable size). The batch
	// that triggered it is rejected and logged via Config.Logger; the
	// engine then refuses every further write batch with the same error
	// and returns it from Close.
	ErrInvariant = errors.New("factdiary: invariant violation")

	// ErrValueTooLarge is returned when a value payload exceeds
	// Config.MaxValueSize.
	ErrValueTooLarge = errors.New("factdiary: value exceeds MaxValueSize")

	// ErrNoValue is returned when a Fact carries no value. Every fact
	// must have one; absence is a caller error.
	ErrNoValue = errors.New("factdiary: fact has no value")
)
