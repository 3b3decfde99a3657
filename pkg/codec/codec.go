package codec

import (
	"fmt"

	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
codec.go contains the interface and base implementation for embedding codecs.
Codec: interface every pixel-domain embedding scheme implements (capacity, embed, extract).
BaseCodec: struct providing name, description, method tag and channel count, embedded by the
concrete codecs in the bitplane, pairwise, cdb and imnp packages.
*/

// Codec is the interface that all embedding schemes must implement
type Codec interface {
	// Method returns the tag identifying the scheme and its parameter variant
	Method() Method

	// Name returns the display name of the codec
	Name() string

	// Description returns a short explanation of the scheme
	Description() string

	// Channels returns the channel count the codec expects its grid to have
	Channels() int

	// Capacity returns how many payload bits the carrier can hold under params
	Capacity(g *grid.Grid, payload []byte, params Params) (int, error)

	// Embed hides payload in a copy of g and returns it with the parameters extraction needs.
	// g is never modified; on error the returned grid is nil.
	Embed(g *grid.Grid, payload []byte, params Params) (*grid.Grid, Params, error)

	// Extract recovers a payload from a stego grid
	Extract(g *grid.Grid, params Params) ([]byte, error)
}

// BaseCodec provides common functionality for codecs
type BaseCodec struct {
	method      Method
	name        string
	description string
	channels    int
}

// NewBaseCodec creates a new BaseCodec
func NewBaseCodec(method Method, name, description string, channels int) BaseCodec {
	return BaseCodec{
		method:      method,
		name:        name,
		description: description,
		channels:    channels,
	}
}

// Method returns the codec's method tag
func (b *BaseCodec) Method() Method {
	return b.method
}

// Name returns the codec name
func (b *BaseCodec) Name() string {
	return b.name
}

// Description returns the codec description
func (b *BaseCodec) Description() string {
	return b.description
}

// Channels returns the expected channel count
func (b *BaseCodec) Channels() int {
	return b.channels
}

// CheckGrid verifies the grid exists and has the codec's channel count
func (b *BaseCodec) CheckGrid(g *grid.Grid) error {
	if g == nil {
		return fmt.Errorf("%s: nil grid: %w", b.method, stegerr.ErrImageTooSmall)
	}
	if g.Channels != b.channels {
		return fmt.Errorf("%s expects %d channel(s), got %d: %w", b.method, b.channels, g.Channels, stegerr.ErrChannelMismatch)
	}
	return nil
}

// ParamsAs asserts that params holds the variant T. A nil params yields T's zero value.
func ParamsAs[T Params](method Method, params Params) (T, error) {
	var zero T
	switch p := params.(type) {
	case T:
		return p, nil
	case nil:
		return zero, nil
	}
	return zero, fmt.Errorf("%s: got %T parameters: %w", method, params, stegerr.ErrInvalidParams)
}
