// Package stegerr holds the error kinds shared by the codecs, the site generator
// and the analyzers. Packages wrap these with context; callers match them with errors.Is.
package stegerr

import "errors"

var (
	// ErrInvalidDomain is returned for a bad seed/count/domain combination in site generation
	ErrInvalidDomain = errors.New("invalid site domain")

	// ErrCapacityExceeded is returned when a payload does not fit the carrier
	ErrCapacityExceeded = errors.New("payload exceeds carrier capacity")

	// ErrDimensionMismatch is returned when two grids of different shape are compared
	ErrDimensionMismatch = errors.New("grid dimensions do not match")

	// ErrIncompleteTerminator is returned when the pairwise end-of-message marker is missing
	ErrIncompleteTerminator = errors.New("end-of-message terminator not found")

	// ErrUnderrun is returned when extraction runs out of carrier before the requested bit count
	ErrUnderrun = errors.New("carrier exhausted before requested bit count")

	// ErrInvalidParams is returned for out-of-range codec or detector parameters
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrChannelMismatch is returned when a grid has the wrong number of channels for an operation
	ErrChannelMismatch = errors.New("unexpected channel count")

	// ErrInvalidPayload is returned for payloads a codec cannot represent
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrImageTooSmall is returned when a grid holds fewer samples than an operation needs
	ErrImageTooSmall = errors.New("image too small")

	// ErrUnknownMethod is returned when a codec or detector name is not registered
	ErrUnknownMethod = errors.New("unknown method")
)
