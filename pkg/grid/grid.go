package grid

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
grid.go holds the PixelGrid type used by every codec and detector.
Grid: row-major 8-bit samples with 1 (gray) or 3 (RGB) interleaved channels.
FromImage/ToImage convert between a Grid and the standard image types, so that file
decoding stays outside the codecs.
*/

const (
	// Gray is the channel count of a single-plane grid
	Gray = 1
	// RGB is the channel count of a colour grid
	RGB = 3
)

// Grid is a rectangular raster of 8-bit samples
type Grid struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// New allocates a zeroed grid
func New(width, height, channels int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d: %w", width, height, stegerr.ErrImageTooSmall)
	}
	if channels != Gray && channels != RGB {
		return nil, fmt.Errorf("%d channels: %w", channels, stegerr.ErrChannelMismatch)
	}
	return &Grid{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}, nil
}

// NewGray allocates a zeroed single-channel grid
func NewGray(width, height int) (*Grid, error) {
	return New(width, height, Gray)
}

// FromRows builds a single-channel grid from equal-length rows
func FromRows(rows [][]uint8) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("empty rows")
	}
	g, err := NewGray(len(rows[0]), len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		if len(row) != g.Width {
			return nil, fmt.Errorf("row %d has %d samples, want %d: %w", y, len(row), g.Width, stegerr.ErrDimensionMismatch)
		}
		copy(g.Pix[y*g.Width:], row)
	}
	return g, nil
}

// Len returns the number of pixels (not samples)
func (g *Grid) Len() int {
	return g.Width * g.Height
}

// Index returns the linear pixel index of (x, y)
func (g *Grid) Index(x, y int) int {
	return y*g.Width + x
}

// At returns channel 0 of the pixel at (x, y)
func (g *Grid) At(x, y int) uint8 {
	return g.Pix[(y*g.Width+x)*g.Channels]
}

// Set writes channel 0 of the pixel at (x, y)
func (g *Grid) Set(x, y int, v uint8) {
	g.Pix[(y*g.Width+x)*g.Channels] = v
}

// AtC returns channel c of the pixel at (x, y)
func (g *Grid) AtC(x, y, c int) uint8 {
	return g.Pix[(y*g.Width+x)*g.Channels+c]
}

// SetC writes channel c of the pixel at (x, y)
func (g *Grid) SetC(x, y, c int, v uint8) {
	g.Pix[(y*g.Width+x)*g.Channels+c] = v
}

// Clone returns a deep copy
func (g *Grid) Clone() *Grid {
	pix := make([]uint8, len(g.Pix))
	copy(pix, g.Pix)
	return &Grid{Width: g.Width, Height: g.Height, Channels: g.Channels, Pix: pix}
}

// SameShape reports whether two grids have identical width, height and channel count
func (g *Grid) SameShape(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height && g.Channels == o.Channels
}

// Plane copies channel c into a new single-channel grid
func (g *Grid) Plane(c int) (*Grid, error) {
	if c < 0 || c >= g.Channels {
		return nil, fmt.Errorf("plane %d of %d: %w", c, g.Channels, stegerr.ErrChannelMismatch)
	}
	out, err := NewGray(g.Width, g.Height)
	if err != nil {
		return nil, err
	}
	for i := 0; i < g.Len(); i++ {
		out.Pix[i] = g.Pix[i*g.Channels+c]
	}
	return out, nil
}

// Luma reduces the grid to one channel. Gray grids are cloned; RGB grids use the
// ITU-R 601 weights of color.GrayModel.
func (g *Grid) Luma() *Grid {
	if g.Channels == Gray {
		return g.Clone()
	}
	out := &Grid{Width: g.Width, Height: g.Height, Channels: Gray, Pix: make([]uint8, g.Len())}
	for i := 0; i < g.Len(); i++ {
		p := g.Pix[i*g.Channels:]
		c := color.GrayModel.Convert(color.RGBA{R: p[0], G: p[1], B: p[2], A: 0xff}).(color.Gray)
		out.Pix[i] = c.Y
	}
	return out
}

// FromImage converts a decoded image into a grid with the requested channel count.
// One channel keeps the luma, three channels keep R, G and B (alpha is dropped).
func FromImage(img image.Image, channels int) (*Grid, error) {
	if img == nil {
		return nil, errors.New("nil image provided")
	}

	bounds := img.Bounds()
	g, err := New(bounds.Dx(), bounds.Dy(), channels)
	if err != nil {
		return nil, err
	}

	// Fast path for the gray images the PGM decoder produces
	if gray, ok := img.(*image.Gray); ok && channels == Gray {
		for y := 0; y < g.Height; y++ {
			off := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(g.Pix[y*g.Width:(y+1)*g.Width], gray.Pix[off:off+g.Width])
		}
		return g, nil
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			if channels == Gray {
				g.Set(x, y, color.GrayModel.Convert(c).(color.Gray).Y)
				continue
			}
			r, gr, b, _ := c.RGBA()
			g.SetC(x, y, 0, uint8(r>>8))
			g.SetC(x, y, 1, uint8(gr>>8))
			g.SetC(x, y, 2, uint8(b>>8))
		}
	}
	return g, nil
}

// ToImage converts the grid back to an *image.Gray or an opaque *image.NRGBA
func (g *Grid) ToImage() image.Image {
	rect := image.Rect(0, 0, g.Width, g.Height)
	if g.Channels == Gray {
		img := image.NewGray(rect)
		copy(img.Pix, g.Pix)
		return img
	}

	img := image.NewNRGBA(rect)
	for i := 0; i < g.Len(); i++ {
		img.Pix[i*4+0] = g.Pix[i*3+0]
		img.Pix[i*4+1] = g.Pix[i*3+1]
		img.Pix[i*4+2] = g.Pix[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}
