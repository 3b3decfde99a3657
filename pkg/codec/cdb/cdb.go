package cdb

import (
	"fmt"
	"math"

	"github.com/thvl3/stegolab/pkg/bits"
	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/sites"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
cdb.go implements the correlation-quantization watermark.
Each payload bit lands on a seeded pixel site and pushes the blue channel up (bit 1)
or down (bit 0) by coeff times the pixel's brightness. Extraction compares the blue
value at each site against the mean of its row and column neighbours.
*/

// blue is the channel the watermark writes
const blue = 2

// Codec implements codec.Codec for the CDB watermark
type Codec struct {
	codec.BaseCodec
}

// New creates a CDB codec
func New() *Codec {
	return &Codec{
		BaseCodec: codec.NewBaseCodec(
			codec.MethodCDB,
			"Correlation Watermark (CDB)",
			"Shifts the blue channel at seeded sites in proportion to brightness",
			grid.RGB,
		),
	}
}

func validate(p codec.CDBParams) error {
	if p.Coeff <= 0 || math.IsNaN(p.Coeff) || math.IsInf(p.Coeff, 0) {
		return fmt.Errorf("coefficient %v must be positive: %w", p.Coeff, stegerr.ErrInvalidParams)
	}
	if p.Range < 1 {
		return fmt.Errorf("predictor range %d must be at least 1: %w", p.Range, stegerr.ErrInvalidParams)
	}
	return nil
}

// Capacity returns one bit per pixel. This is a positional upper bound: marked sites feed
// the predictors of their neighbours, so loads near it may extract with bit errors
// (see BitErrorRate).
func (c *Codec) Capacity(g *grid.Grid, _ []byte, _ codec.Params) (int, error) {
	if err := c.CheckGrid(g); err != nil {
		return 0, err
	}
	return g.Width * g.Height, nil
}

// brightness returns the perceptual luma of pixel (x, y) on [0,1]
func brightness(g *grid.Grid, x, y int) float64 {
	r := float64(g.AtC(x, y, 0)) / 255
	gr := float64(g.AtC(x, y, 1)) / 255
	b := float64(g.AtC(x, y, 2)) / 255
	return 0.299*r + 0.587*gr + 0.114*b
}

// Embed writes one bit per seeded site into the blue channel of a copy of g
func (c *Codec) Embed(g *grid.Grid, payload []byte, params codec.Params) (*grid.Grid, codec.Params, error) {
	p, err := codec.ParamsAs[codec.CDBParams](c.Method(), params)
	if err != nil {
		return nil, nil, err
	}
	if err := c.CheckGrid(g); err != nil {
		return nil, nil, err
	}
	if err := validate(p); err != nil {
		return nil, nil, err
	}

	bitSeq := bits.FromBytes(payload)
	domain := g.Width * g.Height
	if len(bitSeq) > domain {
		return nil, nil, fmt.Errorf("%d bits into %d pixels: %w", len(bitSeq), domain, stegerr.ErrCapacityExceeded)
	}

	positions, err := sites.Generate(uint64(p.Seed), domain, len(bitSeq))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate sites: %w", err)
	}

	stego := g.Clone()
	for i, site := range positions {
		x, y := site%g.Width, site/g.Width
		l := brightness(g, x, y)
		sign := float64(2*int(bitSeq[i]) - 1)
		b := float64(g.AtC(x, y, blue)) / 255
		shifted := math.Min(1, math.Max(0, b+sign*p.Coeff*l))
		stego.SetC(x, y, blue, uint8(math.Round(255*shifted)))
	}

	return stego, codec.CDBParams{
		Coeff:    p.Coeff,
		Range:    p.Range,
		Seed:     p.Seed,
		BitCount: len(bitSeq),
	}, nil
}

// predictor averages the blue channel over the row and column window around (x, y),
// excluding the centre
func predictor(g *grid.Grid, x, y, radius int) float64 {
	sum, n := 0, 0
	for k := -radius; k <= radius; k++ {
		if k == 0 {
			continue
		}
		if xx := x + k; xx >= 0 && xx < g.Width {
			sum += int(g.AtC(xx, y, blue))
			n++
		}
		if yy := y + k; yy >= 0 && yy < g.Height {
			sum += int(g.AtC(x, yy, blue))
			n++
		}
	}
	if n == 0 {
		return float64(g.AtC(x, y, blue))
	}
	return float64(sum) / float64(n)
}

// Extract recovers params.BitCount bits from the seeded sites
func (c *Codec) Extract(g *grid.Grid, params codec.Params) ([]byte, error) {
	p, err := codec.ParamsAs[codec.CDBParams](c.Method(), params)
	if err != nil {
		return nil, err
	}
	if err := c.CheckGrid(g); err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if p.BitCount < 0 {
		return nil, fmt.Errorf("bit count %d: %w", p.BitCount, stegerr.ErrInvalidParams)
	}

	domain := g.Width * g.Height
	if p.BitCount > domain {
		return nil, fmt.Errorf("%d bits requested from %d pixels: %w", p.BitCount, domain, stegerr.ErrUnderrun)
	}

	positions, err := sites.Generate(uint64(p.Seed), domain, p.BitCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sites: %w", err)
	}

	bitSeq := make([]byte, len(positions))
	for i, site := range positions {
		x, y := site%g.Width, site/g.Width
		if float64(g.AtC(x, y, blue)) > predictor(g, x, y, p.Range) {
			bitSeq[i] = 1
		}
	}

	payload, _ := bits.ToBytes(bitSeq)
	return payload, nil
}

// BitErrorRate returns the fraction of bits that differ between sent and received.
// Bits present in only one of them count as errors.
func BitErrorRate(sent, received []byte) float64 {
	a, b := bits.FromBytes(sent), bits.FromBytes(received)
	total := max(len(a), len(b))
	if total == 0 {
		return 0
	}

	errs := total - min(len(a), len(b))
	for i := 0; i < min(len(a), len(b)); i++ {
		if a[i] != b[i] {
			errs++
		}
	}
	return float64(errs) / float64(total)
}
