package main

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/filehandler"
	"github.com/thvl3/stegolab/pkg/report"
)

// run executes the CLI with args and returns what it printed
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })

	root := newRootCmd()
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	root.SetOut(&buf)
	root.SetErr(&buf)
	err := root.Execute()
	return buf.String(), err
}

func gradient(t *testing.T, path string, w, h int, f func(x, y int) int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*w+x] = uint8(f(x, y) % 256)
		}
	}
	require.NoError(t, filehandler.SaveImage(path, img))
}

func TestEmbedExtract_BitPlane(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.png")
	stego := filepath.Join(dir, "stego.png")
	gradient(t, cover, 32, 32, func(x, y int) int { return x*8 + y })

	output, err := run(t, "embed", "--method", "bitplane", "--plane", "2", "--in", cover, "--out", stego, "--message", "hello")
	require.NoError(t, err)
	assert.Contains(t, output, "Embedded 5 bytes")
	assert.Contains(t, output, "capacity 1024 bits")

	params, err := codec.LoadParams(stego + paramsSuffix)
	require.NoError(t, err)
	assert.Equal(t, codec.BitPlaneParams{Plane: 2, ByteLength: 5}, params)

	payload := filepath.Join(dir, "payload.bin")
	output, err = run(t, "extract", "--in", stego, "--out", payload)
	require.NoError(t, err)
	assert.Contains(t, output, "hello")

	data, err := os.ReadFile(payload)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestEmbedExtract_Pairwise(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.bmp")
	stego := filepath.Join(dir, "stego.pgm")
	gradient(t, cover, 32, 32, func(x, y int) int { return x*8 + y })

	_, err := run(t, "embed", "-m", "pairwise", "-i", cover, "-o", stego, "--message", "hi")
	require.NoError(t, err)

	// pairwise needs no sidecar
	require.NoError(t, os.Remove(stego+paramsSuffix))
	output, err := run(t, "extract", "-i", stego, "-m", "pairwise")
	require.NoError(t, err)
	assert.Contains(t, output, "No parameter file")
	assert.Contains(t, output, "hi")

	_, err = run(t, "extract", "-i", stego)
	assert.Error(t, err, "other codecs need their parameters")
}

func TestEmbed_VerifyCDB(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.png")
	gradient(t, cover, 16, 16, func(x, y int) int { return 128 })

	mark := func(n int) string {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i*37 + 11)
		}
		path := filepath.Join(dir, "mark.bin")
		require.NoError(t, os.WriteFile(path, payload, 0644))
		return path
	}
	cdbFlags := []string{"embed", "-m", "cdb", "-i", cover, "--coeff", "0.5", "--range", "2", "--seed", "43690", "--verify"}

	output, err := run(t, append(cdbFlags, "-o", filepath.Join(dir, "light.png"), "--payload", mark(2))...)
	require.NoError(t, err)
	assert.Contains(t, output, "without bit errors")

	output, err = run(t, append(cdbFlags, "-o", filepath.Join(dir, "full.png"), "--payload", mark(32))...)
	require.NoError(t, err)
	assert.Contains(t, output, "capacity 256 bits")
	assert.Contains(t, output, "bit error rate 0.39% over 256 bits")
}

func TestEmbed_Errors(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.png")
	gradient(t, cover, 4, 4, func(x, y int) int { return x + y })

	_, err := run(t, "embed", "-m", "bitplane", "-i", cover, "-o", filepath.Join(dir, "s.png"), "--message", "too long for sixteen pixels")
	assert.ErrorContains(t, err, "exceeds carrier capacity")

	_, err = run(t, "embed", "-m", "homoglyph", "-i", cover, "-o", filepath.Join(dir, "s.png"), "--message", "x")
	assert.ErrorContains(t, err, "stegolab text")

	_, err = run(t, "embed", "-m", "bitplane", "-i", cover, "-o", filepath.Join(dir, "s.png"))
	assert.ErrorContains(t, err, "payload is required")

	_, err = run(t, "embed", "-m", "bitplane", "-i", cover, "-o", filepath.Join(dir, "s.jpg"), "--message", "a")
	assert.ErrorContains(t, err, "cannot write")
}

func TestCapacityAndPSNR(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.png")
	gradient(t, cover, 16, 8, func(x, y int) int { return x * y })

	output, err := run(t, "capacity", "-m", "bitplane", "-i", cover)
	require.NoError(t, err)
	assert.Contains(t, output, "128 bits (16 bytes)")

	output, err = run(t, "psnr", cover, cover)
	require.NoError(t, err)
	assert.Contains(t, output, "identical")
}

func TestPlanes(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.png")
	gradient(t, cover, 8, 8, func(x, y int) int { return x*32 + y })

	_, err := run(t, "planes", "-i", cover, "--outdir", dir, "--plane", "0")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "cover_plane0.png"))
	assert.NoFileExists(t, filepath.Join(dir, "cover_plane1.png"))

	_, err = run(t, "planes", "-i", cover, "--outdir", dir, "--plane", "7", "--channel", "B")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "cover_b_plane7.png"))

	_, err = run(t, "planes", "-i", cover, "--outdir", dir, "--channel", "x")
	assert.ErrorContains(t, err, "must be r, g or b")
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.png")
	stego := filepath.Join(dir, "stego.png")
	gradient(t, cover, 32, 32, func(x, y int) int { return 64 })

	_, err := run(t, "embed", "-m", "bitplane", "-i", cover, "-o", stego, "--message", "meet me at the old mill at noon")
	require.NoError(t, err)

	output, err := run(t, "probe", "-i", stego, "--gray", "--outdir", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "gray-plane0")
	assert.Contains(t, output, "meet me at the old mill")
	assert.FileExists(t, filepath.Join(dir, "probe_gray-plane0.txt"))
	assert.Contains(t, output, "LSB distribution: entropy")
	assert.Contains(t, output, "  Y: entropy")
	assert.NotContains(t, output, "  R: entropy")

	output, err = run(t, "probe", "-i", cover, "--gray")
	require.NoError(t, err)
	assert.Contains(t, output, "No bit plane looks like a payload")
	assert.Contains(t, output, "Y: entropy 0.0000, zeros 100.0%")

	output, err = run(t, "probe", "-i", cover)
	require.NoError(t, err)
	for _, ch := range []string{"R", "G", "B"} {
		assert.Contains(t, output, "  "+ch+": entropy 0.0000, zeros 100.0%")
	}
	assert.Contains(t, output, "anomaly 0.30")
}

func TestText_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cover := filepath.Join(dir, "cover.txt")
	stego := filepath.Join(dir, "stego.txt")
	require.NoError(t, os.WriteFile(cover, []byte(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 2)), 0644))

	output, err := run(t, "text", "capacity", "-i", cover)
	require.NoError(t, err)
	assert.Contains(t, output, "24 carrier letters")

	_, err = run(t, "text", "embed", "-i", cover, "-o", stego, "--message", "ok", "--seed", "42")
	require.NoError(t, err)

	output, err = run(t, "text", "extract", "-i", stego)
	require.NoError(t, err)
	assert.Contains(t, output, "ok")

	output, err = run(t, "text", "extract", "-i", stego, "--seed", "42", "--length", "2")
	require.NoError(t, err)
	assert.Contains(t, output, "Recovered 2 bytes of text data")
}

func TestAnalyzeAndRates(t *testing.T) {
	dir := t.TempDir()
	images := filepath.Join(dir, "images")
	gradient(t, filepath.Join(images, "a.png"), 64, 64, func(x, y int) int { return x*3 + y*2 })
	gradient(t, filepath.Join(images, "b_stego.png"), 64, 64, func(x, y int) int { return x*2 + y*3 + (x*y)%3 })

	scores := filepath.Join(dir, "scores.csv")
	metrics := filepath.Join(dir, "stegolab.prom")
	output, err := run(t, "analyze", "--dir", images, "--csv", scores, "--metrics", metrics, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, output, "Total files analyzed: 2")

	f, err := os.Open(scores)
	require.NoError(t, err)
	defer f.Close()
	records, err := report.ReadRecords(f)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a.png", records[0].Filename)
	assert.Equal(t, "b_stego.png", records[1].Filename)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `stegolab_images_analyzed_total{status="ok"} 2`)

	verdicts := filepath.Join(dir, "verdicts.csv")
	output, err = run(t, "rates", scores, "--sweep", "rs", "--out", verdicts)
	require.NoError(t, err)
	assert.Contains(t, output, "FP")
	assert.Contains(t, output, "Best rs threshold")
	assert.FileExists(t, verdicts)

	_, err = run(t, "rates", verdicts, "--classified", "--sweep", "rs")
	assert.Error(t, err)
}

func TestGlyphsAndFormats(t *testing.T) {
	output, err := run(t, "glyphs")
	require.NoError(t, err)
	assert.Contains(t, output, "U+0391  GREEK CAPITAL LETTER ALPHA")

	output, err = run(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, output, ".pgm: pgm")
	assert.Contains(t, output, "imnp")
	assert.Contains(t, output, "lsb-entropy")
}
