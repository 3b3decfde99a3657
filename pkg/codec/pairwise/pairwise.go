package pairwise

import (
	"bytes"
	"fmt"

	"github.com/thvl3/stegolab/pkg/bits"
	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
pairwise.go implements the pairwise-comparison adaptive codec.
The four most significant bits of a pixel yield three overlapping 2-bit pairs.
Bits 2, 1 and 0 act as flags: a flag is set when its pair equals the next pending
payload group, which is then consumed. The payload is followed by one zero byte
that marks the end of the message, so the payload itself may not contain 0x00.
*/

const terminatorBits = 8

// flagBits lists the flag for the left, middle and right pair
var flagBits = [3]uint8{1 << 2, 1 << 1, 1 << 0}

// Codec implements codec.Codec for the pairwise scheme
type Codec struct {
	codec.BaseCodec
}

// New creates a pairwise codec
func New() *Codec {
	return &Codec{
		BaseCodec: codec.NewBaseCodec(
			codec.MethodPairwise,
			"Pairwise Comparison",
			"Flags pixel MSB pairs that match pending 2-bit payload groups",
			grid.Gray,
		),
	}
}

// pairs returns the left, middle and right pair of a pixel's upper nibble
func pairs(v uint8) [3]uint8 {
	m := v >> 4
	return [3]uint8{m >> 2 & 3, m >> 1 & 3, m & 3}
}

// groups splits the payload plus terminator into 2-bit groups
func groups(payload []byte) []uint8 {
	seq := bits.FromBytes(payload)
	seq = append(seq, make([]byte, terminatorBits)...)

	out := make([]uint8, len(seq)/2)
	for i := range out {
		out[i] = seq[2*i]<<1 | seq[2*i+1]
	}
	return out
}

// scan walks the grid consuming groups. When out is non-nil the flags are written to it.
// It returns the number of groups consumed.
func scan(g *grid.Grid, pending []uint8, out *grid.Grid) int {
	next := 0
	for i, v := range g.Pix {
		if next == len(pending) {
			break
		}
		flagged := v &^ 7
		for k, pair := range pairs(v) {
			if next < len(pending) && pair == pending[next] {
				flagged |= flagBits[k]
				next++
			}
		}
		if out != nil {
			out.Pix[i] = flagged
		}
	}
	return next
}

func validatePayload(payload []byte) error {
	if i := bytes.IndexByte(payload, 0); i >= 0 {
		return fmt.Errorf("zero byte at offset %d collides with the terminator: %w", i, stegerr.ErrInvalidPayload)
	}
	return nil
}

// GroupCapacity runs the embedding scan and reports how many 2-bit groups of payload
// plus terminator the grid actually absorbs
func GroupCapacity(g *grid.Grid, payload []byte) int {
	return scan(g, groups(payload), nil)
}

// Capacity returns the data-dependent capacity in bits for this payload
func (c *Codec) Capacity(g *grid.Grid, payload []byte, _ codec.Params) (int, error) {
	if err := c.CheckGrid(g); err != nil {
		return 0, err
	}
	return 2 * GroupCapacity(g, payload), nil
}

// Embed flags matching pairs in a copy of g until payload and terminator are consumed
func (c *Codec) Embed(g *grid.Grid, payload []byte, params codec.Params) (*grid.Grid, codec.Params, error) {
	if _, err := codec.ParamsAs[codec.PairwiseParams](c.Method(), params); err != nil {
		return nil, nil, err
	}
	if err := c.CheckGrid(g); err != nil {
		return nil, nil, err
	}
	if err := validatePayload(payload); err != nil {
		return nil, nil, err
	}

	pending := groups(payload)
	if got := scan(g, pending, nil); got < len(pending) {
		return nil, nil, fmt.Errorf("grid absorbs %d of %d groups: %w", got, len(pending), stegerr.ErrCapacityExceeded)
	}

	stego := g.Clone()
	scan(g, pending, stego)
	return stego, codec.PairwiseParams{}, nil
}

// Extract collects flagged pairs until the terminator byte or params.MaxBytes bytes.
// Without either, the collected bytes are returned with ErrIncompleteTerminator.
func (c *Codec) Extract(g *grid.Grid, params codec.Params) ([]byte, error) {
	p, err := codec.ParamsAs[codec.PairwiseParams](c.Method(), params)
	if err != nil {
		return nil, err
	}
	if err := c.CheckGrid(g); err != nil {
		return nil, err
	}
	if p.MaxBytes < 0 {
		return nil, fmt.Errorf("negative max bytes %d: %w", p.MaxBytes, stegerr.ErrInvalidParams)
	}

	var (
		out   []byte
		cur   uint8
		count int
	)
	for _, v := range g.Pix {
		for k, pair := range pairs(v) {
			if v&flagBits[k] == 0 {
				continue
			}
			cur = cur<<2 | pair
			count++
			if count < 4 {
				continue
			}
			if cur == 0 {
				return out, nil
			}
			out = append(out, cur)
			if p.MaxBytes > 0 && len(out) == p.MaxBytes {
				return out, nil
			}
			cur, count = 0, 0
		}
	}

	return out, fmt.Errorf("%d bytes collected: %w", len(out), stegerr.ErrIncompleteTerminator)
}
