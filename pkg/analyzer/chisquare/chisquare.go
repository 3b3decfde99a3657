package chisquare

import (
	"fmt"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

// DefaultBlockSize is the side of the square blocks the statistic is computed over
const DefaultBlockSize = 16

// Detector computes the mean per-block Pearson statistic of the 256-bin histogram
// against a uniform expectation
type Detector struct {
	analyzer.BaseDetector
	blockSize int
}

// New creates a chi-square detector. A non-positive block size selects DefaultBlockSize.
func New(blockSize int) *Detector {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Detector{
		BaseDetector: analyzer.NewBaseDetector(
			analyzer.MethodChiSquare,
			"Chi-Square Block Test",
			"Mean Pearson statistic of block histograms against a flat distribution",
		),
		blockSize: blockSize,
	}
}

// BlockSize returns the configured block side
func (d *Detector) BlockSize() int {
	return d.blockSize
}

// Statistic returns the Pearson statistic of values against a uniform 256-bin expectation
func Statistic(values []uint8) float64 {
	if len(values) == 0 {
		return 0
	}

	var hist [256]int
	for _, v := range values {
		hist[v]++
	}

	expected := float64(len(values)) / 256
	chi := 0.0
	for _, observed := range hist {
		diff := float64(observed) - expected
		chi += diff * diff / expected
	}
	return chi
}

// Blocks returns the statistic of every full block, row-major by block
func (d *Detector) Blocks(g *grid.Grid) ([]float64, error) {
	if err := d.CheckGrid(g); err != nil {
		return nil, err
	}
	bs := d.blockSize
	if g.Width < bs || g.Height < bs {
		return nil, fmt.Errorf("%dx%d grid is smaller than one %dx%d block: %w", g.Width, g.Height, bs, bs, stegerr.ErrImageTooSmall)
	}

	rows, cols := g.Height/bs, g.Width/bs
	out := make([]float64, 0, rows*cols)
	block := make([]uint8, 0, bs*bs)
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			block = block[:0]
			for y := by * bs; y < (by+1)*bs; y++ {
				start := g.Index(bx*bs, y)
				block = append(block, g.Pix[start:start+bs]...)
			}
			out = append(out, Statistic(block))
		}
	}
	return out, nil
}

// Score returns the mean block statistic
func (d *Detector) Score(g *grid.Grid) (analyzer.Score, error) {
	blocks, err := d.Blocks(g)
	if err != nil {
		return analyzer.Score{}, err
	}

	sum := 0.0
	for _, v := range blocks {
		sum += v
	}
	return analyzer.Score{Method: d.Method(), Value: sum / float64(len(blocks))}, nil
}
