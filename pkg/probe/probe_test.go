package probe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thvl3/stegolab/pkg/bits"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

const message = "hello world, this is a hidden message"

func TestProbe_Gray(t *testing.T) {
	g, err := grid.NewGray(40, 40)
	require.NoError(t, err)
	seq := bits.FromBytes([]byte(message))
	for i := range g.Pix {
		g.Pix[i] = 100
		if i < len(seq) {
			g.Pix[i] += seq[i]
		}
	}

	candidates, err := Probe(g, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	best := candidates[0]
	assert.Equal(t, "gray-plane0", best.Method)
	assert.Equal(t, message, string(best.Data))
	assert.InDelta(t, 1.0, best.TextQuality, 1e-9)
	assert.InDelta(t, 0.5, best.Score, 1e-9)

	assert.Equal(t, "gray-plane1", candidates[1].Method)
	assert.Empty(t, candidates[1].Data)
	assert.Zero(t, candidates[1].Score)
}

func TestProbe_BlueChannel(t *testing.T) {
	g, err := grid.New(40, 40, grid.RGB)
	require.NoError(t, err)
	seq := bits.FromBytes([]byte(message))
	for i := 0; i < g.Len(); i++ {
		g.Pix[i*3+0] = 200
		g.Pix[i*3+1] = 200
		g.Pix[i*3+2] = 100
		if i < len(seq) {
			g.Pix[i*3+2] += seq[i]
		}
	}

	candidates, err := Probe(g, Options{Planes: []int{0}})
	require.NoError(t, err)
	require.Len(t, candidates, 5)
	assert.Equal(t, "b-plane0", candidates[0].Method)
	assert.Equal(t, message, string(candidates[0].Data))

	res, err := Save(candidates[0], t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "text", res.DataType)
	assert.Equal(t, "probe-b-plane0", res.Algorithm)
	require.Len(t, res.OutputFiles, 1)
	assert.Equal(t, "probe_b-plane0.txt", filepath.Base(res.OutputFiles[0]))
	assert.FileExists(t, res.OutputFiles[0])
}

func TestProbe_Errors(t *testing.T) {
	_, err := Probe(nil, DefaultOptions())
	assert.Error(t, err)

	g, err := grid.NewGray(4, 4)
	require.NoError(t, err)
	_, err = Probe(g, Options{Planes: []int{8}})
	assert.ErrorIs(t, err, stegerr.ErrInvalidParams)
	_, err = Probe(g, Options{Planes: []int{0, -1}})
	assert.ErrorIs(t, err, stegerr.ErrInvalidParams)

	_, err = Save(Candidate{Method: "gray-plane0"}, t.TempDir())
	assert.Error(t, err)
}

func TestEvaluate_SignatureKeepsNULs(t *testing.T) {
	data := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	c := evaluate("gray-plane0", data)
	assert.Equal(t, "png", c.FileType)
	assert.Equal(t, data, c.Data)
	assert.GreaterOrEqual(t, c.Score, 0.5)

	res, err := Save(c, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Equal(t, "probe_gray-plane0.png", filepath.Base(res.OutputFiles[0]))

	c = evaluate("gray-plane0", []byte("abc\x00\x89PNG"))
	assert.Equal(t, "abc", string(c.Data))
	assert.Empty(t, c.FileType)
}

func TestScoringHelpers(t *testing.T) {
	assert.Zero(t, dataEntropy(nil))
	assert.InDelta(t, 1.0, dataEntropy([]byte("abab")), 1e-9)
	assert.InDelta(t, 8.0, dataEntropy(func() []byte {
		b := make([]byte, 256)
		for i := range b {
			b[i] = byte(i)
		}
		return b
	}()), 1e-9)

	assert.Zero(t, evaluateAsText([]byte("abc")))
	assert.Zero(t, evaluateAsText([]byte{0xff, 0xfe, 0x41, 0x42}))
	assert.InDelta(t, 0.4, evaluateAsText([]byte("ab\x01\x02cdefgh")), 1e-9)

	assert.Zero(t, repetitionPenalty([]byte("short")))
	assert.InDelta(t, 0.1, repetitionPenalty(append([]byte("start"), make([]byte, 15)...)), 1e-9)
	assert.InDelta(t, 0.3, repetitionPenalty(make([]byte, 30)), 1e-9)
}
