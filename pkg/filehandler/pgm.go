package filehandler

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
)

// Netpbm graymaps (P2 plain, P5 raw) are the usual carrier format for gray steganography
// test sets. Registering here makes image.Decode understand them.
func init() {
	image.RegisterFormat("pgm", "P5", DecodePGM, DecodePGMConfig)
	image.RegisterFormat("pgm", "P2", DecodePGM, DecodePGMConfig)
}

type pgmHeader struct {
	plain         bool
	width, height int
	maxVal        int
}

// pgmToken reads the next whitespace-separated header token, skipping # comments
func pgmToken(r *bufio.Reader) (string, error) {
	var tok []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(tok) > 0 {
				return string(tok), nil
			}
			return "", err
		}
		switch {
		case b == '#' && len(tok) == 0:
			if _, err := r.ReadBytes('\n'); err != nil {
				return "", err
			}
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, b)
		}
	}
}

func pgmInt(r *bufio.Reader, what string) (int, error) {
	tok, err := pgmToken(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read pgm %s: %w", what, err)
	}
	v, err := strconv.Atoi(tok)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid pgm %s %q", what, tok)
	}
	return v, nil
}

func readPGMHeader(r *bufio.Reader) (pgmHeader, error) {
	var h pgmHeader
	tok, err := pgmToken(r)
	if err != nil {
		return h, fmt.Errorf("failed to read pgm magic: %w", err)
	}
	switch tok {
	case "P2":
		h.plain = true
	case "P5":
	default:
		return h, fmt.Errorf("not a pgm file: magic %q", tok)
	}

	if h.width, err = pgmInt(r, "width"); err != nil {
		return h, err
	}
	if h.height, err = pgmInt(r, "height"); err != nil {
		return h, err
	}
	if h.maxVal, err = pgmInt(r, "maxval"); err != nil {
		return h, err
	}
	if h.maxVal > 255 {
		return h, fmt.Errorf("16-bit pgm (maxval %d) is not supported", h.maxVal)
	}
	return h, nil
}

// DecodePGMConfig returns the dimensions of a PGM image
func DecodePGMConfig(r io.Reader) (image.Config, error) {
	h, err := readPGMHeader(bufio.NewReader(r))
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.GrayModel, Width: h.width, Height: h.height}, nil
}

// DecodePGM decodes a P2 or P5 graymap with maxval up to 255
func DecodePGM(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	h, err := readPGMHeader(br)
	if err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, h.width, h.height))
	if h.plain {
		for i := range img.Pix {
			v, err := pgmToken(br)
			if err != nil {
				return nil, fmt.Errorf("failed to read pgm sample %d: %w", i, err)
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > h.maxVal {
				return nil, fmt.Errorf("invalid pgm sample %q", v)
			}
			img.Pix[i] = scale(n, h.maxVal)
		}
		return img, nil
	}

	if _, err := io.ReadFull(br, img.Pix); err != nil {
		return nil, fmt.Errorf("failed to read pgm raster: %w", err)
	}
	if h.maxVal != 255 {
		for i, v := range img.Pix {
			img.Pix[i] = scale(int(v), h.maxVal)
		}
	}
	return img, nil
}

func scale(v, maxVal int) uint8 {
	if maxVal == 255 {
		return uint8(v)
	}
	return uint8((v*255 + maxVal/2) / maxVal)
}

// EncodePGM writes img as a raw (P5) graymap, converting to gray if needed
func EncodePGM(w io.Writer, img image.Image) error {
	b := img.Bounds()
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P5\n%d %d\n255\n", b.Dx(), b.Dy()); err != nil {
		return err
	}

	gray, ok := img.(*image.Gray)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		if ok {
			off := gray.PixOffset(b.Min.X, y)
			if _, err := bw.Write(gray.Pix[off : off+b.Dx()]); err != nil {
				return err
			}
			continue
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			if err := bw.WriteByte(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
