package lsb

import (
	"errors"
	"math"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/grid"
)

// channelNames labels channel statistics for 1- and 3-channel grids
var channelNames = map[int][]string{
	grid.Gray: {"Y"},
	grid.RGB:  {"R", "G", "B"},
}

// AnalysisResult represents the result of LSB distribution analysis
type AnalysisResult struct {
	AnomalyScore float64
	Entropy      float64
	Confidence   float64
	ChannelStats map[string]float64
}

// AnalyzeDistribution analyzes the LSB distribution of every channel of a grid
func AnalyzeDistribution(g *grid.Grid) (*AnalysisResult, error) {
	if g == nil || g.Len() == 0 {
		return nil, errors.New("nil image provided")
	}
	names, ok := channelNames[g.Channels]
	if !ok {
		return nil, errors.New("unsupported channel count")
	}

	totalPixels := g.Len()
	ones := make([]int, g.Channels)
	for i, v := range g.Pix {
		ones[i%g.Channels] += int(v & 1)
	}

	stats := make(map[string]float64, 2*g.Channels)
	entropies := make([]float64, g.Channels)
	zeroShares := make([]float64, g.Channels)
	for c := range ones {
		onePercent := float64(ones[c]) / float64(totalPixels)
		zeroShares[c] = 1 - onePercent
		entropies[c] = calculateEntropy(zeroShares[c], onePercent)

		stats[names[c]] = entropies[c]
		stats[names[c]+"_zeros"] = zeroShares[c]
	}

	avgEntropy := mean(entropies)
	entropyVariance := calculateVariance(entropies)

	return &AnalysisResult{
		AnomalyScore: calculateAnomalyScore(avgEntropy, zeroShares, entropyVariance),
		Entropy:      avgEntropy,
		Confidence:   calculateConfidence(totalPixels, entropyVariance),
		ChannelStats: stats,
	}, nil
}

// calculateEntropy calculates Shannon entropy from probability distribution
func calculateEntropy(zeroProb, oneProb float64) float64 {
	// Avoid log(0) errors
	if zeroProb <= 0 || oneProb <= 0 {
		return 0
	}

	// Shannon entropy formula: -sum(p_i * log2(p_i))
	return -zeroProb*math.Log2(zeroProb) - oneProb*math.Log2(oneProb)
}

// calculateAnomalyScore determines how likely the LSB distribution indicates steganography
func calculateAnomalyScore(avgEntropy float64, zeroShares []float64, entropyVariance float64) float64 {
	score := 0.0

	// Natural images rarely have perfect entropy in LSBs
	if avgEntropy > 0.97 {
		score += 0.4
	} else if avgEntropy > 0.92 {
		score += 0.2
	}

	// Deviation from a 50/50 split, normalized to [0,1]
	deviations := make([]float64, len(zeroShares))
	for i, z := range zeroShares {
		deviations[i] = math.Abs(z-0.5) * 2
	}
	avgDeviation := mean(deviations)
	if avgDeviation < 0.05 {
		score += 0.3
	} else if avgDeviation < 0.1 {
		score += 0.2
	}

	// Colour channels of natural images differ; a single channel has nothing to compare
	if len(zeroShares) > 1 {
		if entropyVariance < 0.0001 {
			score += 0.3
		} else if entropyVariance < 0.001 {
			score += 0.15
		}
	}

	return math.Min(score, 1.0)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance calculates statistical variance of a slice of values
func calculateVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	m := mean(values)
	varSum := 0.0
	for _, v := range values {
		diff := v - m
		varSum += diff * diff
	}

	return varSum / float64(len(values))
}

// calculateConfidence estimates confidence level based on sample size and variance
func calculateConfidence(sampleSize int, variance float64) float64 {
	// Larger samples give higher confidence
	sampleConfidence := math.Min(float64(sampleSize)/10000.0, 1.0)

	varianceConfidence := 0.3
	if variance < 0.0001 {
		varianceConfidence = 0.9
	} else if variance < 0.001 {
		varianceConfidence = 0.7
	} else if variance < 0.01 {
		varianceConfidence = 0.5
	}

	return 0.7*sampleConfidence + 0.3*varianceConfidence
}

// Detector reports the Shannon entropy of the LSB plane
type Detector struct {
	analyzer.BaseDetector
}

// New creates an LSB entropy detector
func New() *Detector {
	return &Detector{
		BaseDetector: analyzer.NewBaseDetector(
			analyzer.MethodLSBEntropy,
			"LSB Entropy",
			"Shannon entropy of the least significant bit plane",
		),
	}
}

// Score returns the LSB entropy of a gray grid
func (d *Detector) Score(g *grid.Grid) (analyzer.Score, error) {
	if err := d.CheckGrid(g); err != nil {
		return analyzer.Score{}, err
	}
	res, err := AnalyzeDistribution(g)
	if err != nil {
		return analyzer.Score{}, err
	}
	return analyzer.Score{Method: d.Method(), Value: res.Entropy}, nil
}
