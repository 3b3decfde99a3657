package lsb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/grid"
)

func TestCalculateEntropy(t *testing.T) {
	assert.InDelta(t, 1.0, calculateEntropy(0.5, 0.5), 1e-12)
	assert.Zero(t, calculateEntropy(1, 0))
	assert.InDelta(t, 0.811278, calculateEntropy(0.25, 0.75), 1e-6)
}

func TestAnalyzeDistribution_Gray(t *testing.T) {
	g, err := grid.FromRows([][]uint8{{0, 1, 2, 3}, {4, 5, 6, 7}})
	require.NoError(t, err)

	res, err := AnalyzeDistribution(g)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Entropy, 1e-12)
	assert.InDelta(t, 0.5, res.ChannelStats["Y_zeros"], 1e-12)
	assert.InDelta(t, 0.7, res.AnomalyScore, 1e-12)
}

func TestAnalyzeDistribution_RGB(t *testing.T) {
	g, err := grid.New(2, 1, grid.RGB)
	require.NoError(t, err)
	copy(g.Pix, []uint8{1, 0, 0, 0, 0, 0})

	res, err := AnalyzeDistribution(g)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.ChannelStats["R"], 1e-12)
	assert.Zero(t, res.ChannelStats["G"])
	assert.InDelta(t, 1.0, res.ChannelStats["G_zeros"], 1e-12)
}

func TestAnalyzeDistribution_Nil(t *testing.T) {
	_, err := AnalyzeDistribution(nil)
	assert.Error(t, err)
}

func TestDetector(t *testing.T) {
	g, err := grid.NewGray(8, 8)
	require.NoError(t, err)

	score, err := New().Score(g)
	require.NoError(t, err)
	assert.Equal(t, analyzer.Score{Method: analyzer.MethodLSBEntropy, Value: 0}, score)
}
