package bitplane

import (
	"fmt"

	"github.com/thvl3/stegolab/pkg/bits"
	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
bitplane.go implements bit-plane substitution on single-channel grids.
Embed walks pixels in row-major order and overwrites bit Plane with successive payload bits.
Extract reads ByteLength*8 bits back from the same plane.
Render draws a chosen plane as a black/white image for visual inspection.
*/

// Codec implements codec.Codec for bit-plane substitution
type Codec struct {
	codec.BaseCodec
}

// New creates a bit-plane codec
func New() *Codec {
	return &Codec{
		BaseCodec: codec.NewBaseCodec(
			codec.MethodBitPlane,
			"Bit-Plane Substitution",
			"Overwrites one bit plane of successive pixels with payload bits",
			grid.Gray,
		),
	}
}

func checkPlane(plane int) error {
	if plane < 0 || plane > 7 {
		return fmt.Errorf("bit plane %d outside 0..7: %w", plane, stegerr.ErrInvalidParams)
	}
	return nil
}

// Capacity returns one bit per pixel
func (c *Codec) Capacity(g *grid.Grid, _ []byte, _ codec.Params) (int, error) {
	if err := c.CheckGrid(g); err != nil {
		return 0, err
	}
	return g.Len(), nil
}

// Embed writes the payload into bit plane params.Plane of a copy of g
func (c *Codec) Embed(g *grid.Grid, payload []byte, params codec.Params) (*grid.Grid, codec.Params, error) {
	p, err := codec.ParamsAs[codec.BitPlaneParams](c.Method(), params)
	if err != nil {
		return nil, nil, err
	}
	if err := c.CheckGrid(g); err != nil {
		return nil, nil, err
	}
	if err := checkPlane(p.Plane); err != nil {
		return nil, nil, err
	}
	if len(payload)*8 > g.Len() {
		return nil, nil, fmt.Errorf("%d bits into %d pixels: %w", len(payload)*8, g.Len(), stegerr.ErrCapacityExceeded)
	}

	stego := g.Clone()
	mask := uint8(1) << uint(p.Plane)
	for i, bit := range bits.FromBytes(payload) {
		if bit == 1 {
			stego.Pix[i] |= mask
		} else {
			stego.Pix[i] &^= mask
		}
	}

	return stego, codec.BitPlaneParams{Plane: p.Plane, ByteLength: len(payload)}, nil
}

// Extract reads params.ByteLength bytes from bit plane params.Plane
func (c *Codec) Extract(g *grid.Grid, params codec.Params) ([]byte, error) {
	p, err := codec.ParamsAs[codec.BitPlaneParams](c.Method(), params)
	if err != nil {
		return nil, err
	}
	if err := c.CheckGrid(g); err != nil {
		return nil, err
	}
	if err := checkPlane(p.Plane); err != nil {
		return nil, err
	}
	if p.ByteLength < 0 || p.ByteLength*8 > g.Len() {
		return nil, fmt.Errorf("%d bytes from %d pixels: %w", p.ByteLength, g.Len(), stegerr.ErrCapacityExceeded)
	}

	bitSeq := make([]byte, p.ByteLength*8)
	for i := range bitSeq {
		bitSeq[i] = (g.Pix[i] >> uint(p.Plane)) & 1
	}
	payload, _ := bits.ToBytes(bitSeq)
	return payload, nil
}

// Render returns a grid that is 255 wherever bit plane of g is set and 0 elsewhere
func Render(g *grid.Grid, plane int) (*grid.Grid, error) {
	if err := checkPlane(plane); err != nil {
		return nil, err
	}
	if g == nil || g.Channels != grid.Gray {
		return nil, fmt.Errorf("bit-plane render needs a gray grid: %w", stegerr.ErrChannelMismatch)
	}

	out := g.Clone()
	for i, v := range g.Pix {
		if (v>>uint(plane))&1 == 1 {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out, nil
}
