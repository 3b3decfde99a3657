package imnp

import (
	"fmt"
	mathbits "math/bits"

	"github.com/thvl3/stegolab/pkg/bits"
	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
imnp.go implements the adaptive-interpolation codec.
The grid is covered by 3x3 blocks anchored every two pixels. The four corners of a block are
never written; the three non-corner positions are replaced by interpolated values from which
up to ak payload bits are subtracted. Because the corners survive, extraction recomputes every
interpolation and width from the stego grid alone.
*/

// Codec implements codec.Codec for interpolation-based embedding
type Codec struct {
	codec.BaseCodec
}

// New creates an IMNP codec
func New() *Codec {
	return &Codec{
		BaseCodec: codec.NewBaseCodec(
			codec.MethodIMNP,
			"Interpolation (IMNP)",
			"Embeds variable-width bit groups as offsets from interpolated pixels",
			grid.Gray,
		),
	}
}

// slot is one interpolated position of a block
type slot struct {
	x, y   int
	interp int
	ref    int
	width  int
}

// floorLog2 returns floor(log2(v)) for v >= 1 and 0 otherwise
func floorLog2(v int) int {
	if v <= 1 {
		return 0
	}
	return mathbits.Len(uint(v)) - 1
}

// blockSlots computes the three slots of the block anchored at (x, y)
func blockSlots(g *grid.Grid, x, y int) [3]slot {
	tl := int(g.At(x, y))
	tr := int(g.At(x+2, y))
	bl := int(g.At(x, y+2))
	br := int(g.At(x+2, y+2))

	omin := min(tl, tr, bl, br)
	omax := max(tl, tr, bl, br)

	c01 := (omax + (tl+tr)/2) / 2
	c10 := (omax + (tl+bl)/2) / 2
	c11 := (c10 + c01) / 2

	out := [3]slot{
		{x: x + 1, y: y, interp: c01, ref: max(tl, tr)},
		{x: x, y: y + 1, interp: c10, ref: max(tl, bl)},
		{x: x + 1, y: y + 1, interp: c11, ref: min(c10, c01)},
	}
	for i := range out {
		// the cap keeps ref - Rk inside [0, ref]
		out[i].width = min(floorLog2(out[i].interp-omin), floorLog2(out[i].ref+1))
	}
	return out
}

// walk visits every slot in block-scan order until visit returns false
func walk(g *grid.Grid, visit func(s slot) bool) {
	for y := 0; y < g.Height-2; y += 2 {
		for x := 0; x < g.Width-2; x += 2 {
			for _, s := range blockSlots(g, x, y) {
				if !visit(s) {
					return
				}
			}
		}
	}
}

// Capacity returns the sum of slot widths. The last slot used may take fewer bits than its width.
func (c *Codec) Capacity(g *grid.Grid, _ []byte, _ codec.Params) (int, error) {
	if err := c.CheckGrid(g); err != nil {
		return 0, err
	}
	total := 0
	walk(g, func(s slot) bool {
		total += s.width
		return true
	})
	return total, nil
}

// Embed writes the interpolated cover into a copy of g and subtracts payload groups from it
func (c *Codec) Embed(g *grid.Grid, payload []byte, params codec.Params) (*grid.Grid, codec.Params, error) {
	if _, err := codec.ParamsAs[codec.IMNPParams](c.Method(), params); err != nil {
		return nil, nil, err
	}
	if err := c.CheckGrid(g); err != nil {
		return nil, nil, err
	}

	stego := g.Clone()
	r := bits.NewReader(bits.FromBytes(payload))
	walk(g, func(s slot) bool {
		v := s.interp
		if n := min(s.width, r.Remaining()); n > 0 {
			rk, _ := r.ReadUint(n)
			v = s.ref - int(rk)
		}
		stego.Set(s.x, s.y, uint8(v))
		return true
	})

	if r.Remaining() > 0 {
		return nil, nil, fmt.Errorf("%d of %d bits did not fit: %w", r.Remaining(), len(payload)*8, stegerr.ErrCapacityExceeded)
	}
	return stego, codec.IMNPParams{MessageLength: len(payload)}, nil
}

// Extract recovers params.MessageLength bytes. If the grid runs out first the collected
// bytes are returned with ErrUnderrun.
func (c *Codec) Extract(g *grid.Grid, params codec.Params) ([]byte, error) {
	p, err := codec.ParamsAs[codec.IMNPParams](c.Method(), params)
	if err != nil {
		return nil, err
	}
	if err := c.CheckGrid(g); err != nil {
		return nil, err
	}
	if p.MessageLength < 0 {
		return nil, fmt.Errorf("message length %d: %w", p.MessageLength, stegerr.ErrInvalidParams)
	}

	target := p.MessageLength * 8
	w := bits.NewWriter(target)
	walk(g, func(s slot) bool {
		if w.Len() >= target {
			return false
		}
		if n := min(s.width, target-w.Len()); n > 0 {
			rk := max(0, s.ref-int(g.At(s.x, s.y)))
			w.WriteUint(uint(rk), n)
		}
		return true
	})

	payload, _ := bits.ToBytes(w.Bits())
	if w.Len() < target {
		return payload, fmt.Errorf("%d of %d bits recovered: %w", w.Len(), target, stegerr.ErrUnderrun)
	}
	return payload, nil
}
