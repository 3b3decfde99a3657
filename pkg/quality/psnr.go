// Package quality measures the distortion an embedding introduces
package quality

import (
	"fmt"
	"math"

	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

// MaxValue is the peak sample value of an 8-bit grid
const MaxValue = 255.0

// MSE returns the mean squared error over all samples of two equally shaped grids
func MSE(a, b *grid.Grid) (float64, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("nil grid: %w", stegerr.ErrDimensionMismatch)
	}
	if !a.SameShape(b) {
		return 0, fmt.Errorf("%dx%dx%d vs %dx%dx%d: %w",
			a.Width, a.Height, a.Channels, b.Width, b.Height, b.Channels, stegerr.ErrDimensionMismatch)
	}

	sum := 0.0
	for i := range a.Pix {
		d := float64(a.Pix[i]) - float64(b.Pix[i])
		sum += d * d
	}
	return sum / float64(len(a.Pix)), nil
}

// PSNR returns the peak signal-to-noise ratio in decibels, +Inf for identical grids
func PSNR(a, b *grid.Grid) (float64, error) {
	mse, err := MSE(a, b)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 20 * math.Log10(MaxValue/math.Sqrt(mse)), nil
}
