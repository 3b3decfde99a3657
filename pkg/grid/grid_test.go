package grid

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thvl3/stegolab/pkg/stegerr"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 4, Gray)
	assert.ErrorIs(t, err, stegerr.ErrImageTooSmall)

	_, err = New(4, 4, 2)
	assert.ErrorIs(t, err, stegerr.ErrChannelMismatch)

	g, err := New(3, 2, RGB)
	require.NoError(t, err)
	assert.Len(t, g.Pix, 18)
	assert.Equal(t, 6, g.Len())
}

func TestFromRows(t *testing.T) {
	g, err := FromRows([][]uint8{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 3, g.Width)
	assert.Equal(t, 2, g.Height)
	assert.Equal(t, uint8(6), g.At(2, 1))

	_, err = FromRows([][]uint8{{1, 2}, {3}})
	assert.ErrorIs(t, err, stegerr.ErrDimensionMismatch)
}

func TestClone_DoesNotAlias(t *testing.T) {
	g, err := FromRows([][]uint8{{10, 20}})
	require.NoError(t, err)

	c := g.Clone()
	c.Set(0, 0, 99)
	assert.Equal(t, uint8(10), g.At(0, 0))
	assert.True(t, g.SameShape(c))
}

func TestPlaneAndLuma(t *testing.T) {
	g, err := New(2, 1, RGB)
	require.NoError(t, err)
	g.SetC(0, 0, 0, 255)
	g.SetC(1, 0, 2, 77)

	blue, err := g.Plane(2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 77}, blue.Pix)

	_, err = g.Plane(3)
	assert.ErrorIs(t, err, stegerr.ErrChannelMismatch)

	l := g.Luma()
	assert.Equal(t, Gray, l.Channels)
	assert.Equal(t, 2, l.Len())
}

func TestImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	g, err := FromImage(src, RGB)
	require.NoError(t, err)
	assert.Equal(t, uint8(30), g.AtC(0, 0, 2))
	assert.Equal(t, uint8(100), g.AtC(1, 1, 1))

	back, err := FromImage(g.ToImage(), RGB)
	require.NoError(t, err)
	assert.Equal(t, g.Pix, back.Pix)

	gray := image.NewGray(image.Rect(0, 0, 3, 1))
	gray.Pix = []uint8{1, 2, 3}
	gg, err := FromImage(gray, Gray)
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3}, gg.Pix)
	assert.Equal(t, gray.Pix, gg.ToImage().(*image.Gray).Pix)
}
