package aump

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
aump.go implements the AUMP LSB detector.
Pixels are flattened row-major into blocks of M samples. Each block is fitted with a polynomial
of degree D by least squares; the residuals, weighted by the inverse local variance, are
correlated with the change LSB replacement would make. Trailing pixels that do not fill a
block are ignored.
*/

const (
	DefaultM = 8
	DefaultD = 1

	// minVariance floors the per-block residual variance
	minVariance = 1.0
)

// Detector computes the AUMP statistic beta
type Detector struct {
	analyzer.BaseDetector
	m, d int
}

// New creates an AUMP detector with block length m and polynomial degree d
func New(m, d int) *Detector {
	return &Detector{
		BaseDetector: analyzer.NewBaseDetector(
			analyzer.MethodAUMP,
			"AUMP",
			"Weighted correlation of polynomial-fit residuals with the LSB flip",
		),
		m: m,
		d: d,
	}
}

// basis returns the m x (d+1) matrix with entries ((i+1)/m)^k
func basis(m, q int) *mat.Dense {
	h := mat.NewDense(m, q, nil)
	for i := 0; i < m; i++ {
		for k := 0; k < q; k++ {
			h.Set(i, k, math.Pow(float64(i+1)/float64(m), float64(k)))
		}
	}
	return h
}

// Beta computes the statistic for samples taken m at a time
func Beta(samples []uint8, m, d int) (float64, error) {
	q := d + 1
	if d < 0 || m <= q {
		return 0, fmt.Errorf("block length %d must exceed degree+1 = %d: %w", m, q, stegerr.ErrInvalidParams)
	}
	kn := len(samples) / m
	if kn == 0 {
		return 0, fmt.Errorf("%d samples do not fill one block of %d: %w", len(samples), m, stegerr.ErrImageTooSmall)
	}

	y := mat.NewDense(m, kn, nil)
	for b := 0; b < kn; b++ {
		for i := 0; i < m; i++ {
			y.Set(i, b, float64(samples[b*m+i]))
		}
	}

	h := basis(m, q)
	var p mat.Dense
	if err := p.Solve(h, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return 0, fmt.Errorf("failed to fit block polynomials: %w", err)
		}
	}
	var pred mat.Dense
	pred.Mul(h, &p)

	sig2 := make([]float64, kn)
	invSum := 0.0
	for b := 0; b < kn; b++ {
		ss := 0.0
		for i := 0; i < m; i++ {
			r := y.At(i, b) - pred.At(i, b)
			ss += r * r
		}
		sig2[b] = math.Max(minVariance, ss/float64(m-q))
		invSum += 1 / sig2[b]
	}
	sn2 := float64(kn) / invSum
	scale := math.Sqrt(sn2 / (float64(kn) * float64(m-q)))

	beta := 0.0
	for b := 0; b < kn; b++ {
		w := scale / sig2[b]
		for i := 0; i < m; i++ {
			x := y.At(i, b)
			// x - xbar is +1 for odd samples and -1 for even ones
			diff := 2*float64(int(x)%2) - 1
			beta += w * diff * (x - pred.At(i, b))
		}
	}
	return beta, nil
}

// Score returns beta for the grid's pixels in row-major order
func (d *Detector) Score(g *grid.Grid) (analyzer.Score, error) {
	if err := d.CheckGrid(g); err != nil {
		return analyzer.Score{}, err
	}
	beta, err := Beta(g.Pix, d.m, d.d)
	if err != nil {
		return analyzer.Score{}, err
	}
	return analyzer.Score{Method: d.Method(), Value: beta}, nil
}
