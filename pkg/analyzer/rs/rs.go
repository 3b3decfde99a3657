package rs

import (
	"fmt"
	"math"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
rs.go implements Fridrich's RS steganalysis for LSB replacement.
Pixels are taken in groups of four along each row. Each group is classified regular or singular
depending on whether flipping its masked pixels raises or lowers its smoothness. Counting the
classes under the positive and negative flip, for the image and for its LSB-inverted copy,
gives a quadratic whose smaller root estimates the embedding rate.
*/

// GroupSize is the number of horizontally adjacent pixels per group
const GroupSize = 4

// mask selects the pixels a flip acts on
var mask = [GroupSize]bool{false, true, true, false}

// Counts holds regular and singular group fractions under the positive and negative masks
type Counts struct {
	R, S       float64
	RNeg, SNeg float64
}

// Detector estimates the LSB embedding rate with RS analysis
type Detector struct {
	analyzer.BaseDetector
}

// New creates an RS detector
func New() *Detector {
	return &Detector{
		BaseDetector: analyzer.NewBaseDetector(
			analyzer.MethodRS,
			"RS Analysis",
			"Estimates the LSB embedding rate from regular/singular group counts",
		),
	}
}

func flipPos(v int) int { return v ^ 1 }

func flipNeg(v int) int { return ((v + 1) ^ 1) - 1 }

func smoothness(g [GroupSize]int) int {
	s := 0
	for i := 0; i < GroupSize-1; i++ {
		d := g[i+1] - g[i]
		if d < 0 {
			d = -d
		}
		s += d
	}
	return s
}

// countGroups classifies all groups of g; invert applies an LSB flip to every pixel first
func countGroups(g *grid.Grid, invert bool) Counts {
	var c Counts
	total := 0
	for y := 0; y < g.Height; y++ {
		for x := 0; x+GroupSize <= g.Width; x += GroupSize {
			var base, pos, neg [GroupSize]int
			for i := 0; i < GroupSize; i++ {
				v := int(g.At(x+i, y))
				if invert {
					v ^= 1
				}
				base[i], pos[i], neg[i] = v, v, v
				if mask[i] {
					pos[i] = flipPos(v)
					neg[i] = flipNeg(v)
				}
			}

			f0 := smoothness(base)
			switch fp := smoothness(pos); {
			case fp > f0:
				c.R++
			case fp < f0:
				c.S++
			}
			switch fn := smoothness(neg); {
			case fn > f0:
				c.RNeg++
			case fn < f0:
				c.SNeg++
			}
			total++
		}
	}

	n := float64(total)
	return Counts{R: c.R / n, S: c.S / n, RNeg: c.RNeg / n, SNeg: c.SNeg / n}
}

// Estimate solves the RS quadratic for the counts of an image (cover) and its LSB-inverted
// copy (inverted) and returns the estimated embedding rate
func Estimate(cover, inverted Counts) float64 {
	d0 := cover.R - cover.S
	d1 := inverted.R - inverted.S
	dn0 := cover.RNeg - cover.SNeg
	dn1 := inverted.RNeg - inverted.SNeg

	a := 2 * (d1 + d0)
	b := dn0 - dn1 - d1 - 3*d0
	c := d0 - dn0

	var z float64
	switch disc := b*b - 4*a*c; {
	case math.Abs(a) < 1e-12:
		if b != 0 {
			z = -c / b
		}
	case disc < 0:
		z = -b / (2 * a)
	default:
		sq := math.Sqrt(disc)
		z1 := (-b + sq) / (2 * a)
		z2 := (-b - sq) / (2 * a)
		z = z1
		if math.Abs(z2) < math.Abs(z1) {
			z = z2
		}
	}

	if z == 0.5 {
		return 0
	}
	return z / (z - 0.5)
}

// Score returns the estimated embedding rate
func (d *Detector) Score(g *grid.Grid) (analyzer.Score, error) {
	if err := d.CheckGrid(g); err != nil {
		return analyzer.Score{}, err
	}
	if g.Width < GroupSize {
		return analyzer.Score{}, fmt.Errorf("width %d is below one group of %d: %w", g.Width, GroupSize, stegerr.ErrImageTooSmall)
	}

	p := Estimate(countGroups(g, false), countGroups(g, true))
	return analyzer.Score{Method: d.Method(), Value: p}, nil
}
