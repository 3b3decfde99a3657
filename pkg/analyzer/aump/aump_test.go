package aump

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

type lcg uint64

func (s *lcg) next() uint64 {
	*s = lcg(uint64(*s)*6364136223846793005 + 1442695040888963407)
	return uint64(*s) >> 33
}

func smoothCover(t *testing.T, w, h int) *grid.Grid {
	t.Helper()
	g, err := grid.NewGray(w, h)
	require.NoError(t, err)
	rng := lcg(7)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 128 + 40*math.Sin(float64(x)/7) + 30*math.Cos(float64(y)/9) + float64(rng.next()%5) - 2
			g.Set(x, y, uint8(int(v)))
		}
	}
	return g
}

func TestBeta_ExactFitIsZero(t *testing.T) {
	// every block of 8 is an exact line, so all residuals vanish
	samples := make([]uint8, 0, 32)
	for b := 0; b < 4; b++ {
		for i := 0; i < 8; i++ {
			samples = append(samples, uint8(10*b+3*i))
		}
	}
	beta, err := Beta(samples, 8, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, beta, 1e-9)
}

func TestBeta_IgnoresTrailingSamples(t *testing.T) {
	samples := []uint8{10, 13, 16, 19, 22, 25, 28, 31, 200, 7}
	beta, err := Beta(samples, 8, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, beta, 1e-9)
}

func TestBeta_Errors(t *testing.T) {
	_, err := Beta(make([]uint8, 64), 2, 1)
	assert.ErrorIs(t, err, stegerr.ErrInvalidParams)

	_, err = Beta(make([]uint8, 7), 8, 1)
	assert.ErrorIs(t, err, stegerr.ErrImageTooSmall)
}

func TestScore_SeparatesCoverFromStego(t *testing.T) {
	cover := smoothCover(t, 64, 64)
	d := New(DefaultM, DefaultD)

	clean, err := d.Score(cover)
	require.NoError(t, err)

	stego := cover.Clone()
	rng := lcg(99)
	for y := 0; y < stego.Height; y++ {
		for x := 0; x < stego.Width; x++ {
			if (x+y)%2 == 0 {
				stego.Set(x, y, stego.At(x, y)&^1|uint8(rng.next()&1))
			}
		}
	}
	marked, err := d.Score(stego)
	require.NoError(t, err)

	assert.Less(t, math.Abs(clean.Value), 2.0)
	assert.Greater(t, marked.Value, clean.Value+3)
}
