// Package report turns detector scores into the per-file detection table.
//
// Thresholds are policy: the detectors only produce numbers, and this package decides
// what counts as "suspected stego". Chi-square flags a file when its score is at or above
// the threshold; RS and AUMP flag it when the score is at or below.
package report

import (
	"fmt"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

// Methods lists the tabulated detectors in column order
var Methods = []analyzer.Method{analyzer.MethodChiSquare, analyzer.MethodRS, analyzer.MethodAUMP}

// Thresholds holds the per-method decision thresholds
type Thresholds struct {
	ChiSquare float64 `yaml:"chiSquare" json:"chiSquare"`
	RS        float64 `yaml:"rs" json:"rs"`
	AUMP      float64 `yaml:"aump" json:"aump"`
}

// DefaultThresholds returns the thresholds used for the reference image set
func DefaultThresholds() Thresholds {
	return Thresholds{
		ChiSquare: 5000,
		RS:        0.02,
		AUMP:      1.9,
	}
}

// Record is one file's raw scores
type Record struct {
	Filename  string  `json:"filename"`
	ChiSquare float64 `json:"chiSquare"`
	RS        float64 `json:"rs"`
	AUMP      float64 `json:"aump"`
}

// Classified is one file's verdicts, 1 meaning flagged
type Classified struct {
	Filename  string `json:"filename"`
	ChiSquare int    `json:"chiSquare"`
	RS        int    `json:"rs"`
	AUMP      int    `json:"aump"`
}

// RecordFromScores collects the tabulated methods from a score list; others are ignored
func RecordFromScores(filename string, scores []analyzer.Score) Record {
	r := Record{Filename: filename}
	for _, s := range scores {
		switch s.Method {
		case analyzer.MethodChiSquare:
			r.ChiSquare = s.Value
		case analyzer.MethodRS:
			r.RS = s.Value
		case analyzer.MethodAUMP:
			r.AUMP = s.Value
		}
	}
	return r
}

// Value returns the raw score for a method
func (r Record) Value(method analyzer.Method) (float64, error) {
	switch method {
	case analyzer.MethodChiSquare:
		return r.ChiSquare, nil
	case analyzer.MethodRS:
		return r.RS, nil
	case analyzer.MethodAUMP:
		return r.AUMP, nil
	}
	return 0, fmt.Errorf("%q is not tabulated: %w", method, stegerr.ErrUnknownMethod)
}

// Verdict returns the classification for a method
func (c Classified) Verdict(method analyzer.Method) (int, error) {
	switch method {
	case analyzer.MethodChiSquare:
		return c.ChiSquare, nil
	case analyzer.MethodRS:
		return c.RS, nil
	case analyzer.MethodAUMP:
		return c.AUMP, nil
	}
	return 0, fmt.Errorf("%q is not tabulated: %w", method, stegerr.ErrUnknownMethod)
}

// Flagged reports whether value crosses threshold in the method's direction
func Flagged(method analyzer.Method, value, threshold float64) bool {
	if method == analyzer.MethodChiSquare {
		return value >= threshold
	}
	return value <= threshold
}

func flag(method analyzer.Method, value, threshold float64) int {
	if Flagged(method, value, threshold) {
		return 1
	}
	return 0
}

// For returns the threshold for a method
func (t Thresholds) For(method analyzer.Method) (float64, error) {
	switch method {
	case analyzer.MethodChiSquare:
		return t.ChiSquare, nil
	case analyzer.MethodRS:
		return t.RS, nil
	case analyzer.MethodAUMP:
		return t.AUMP, nil
	}
	return 0, fmt.Errorf("%q has no threshold: %w", method, stegerr.ErrUnknownMethod)
}

// Classify applies the thresholds to one record
func (t Thresholds) Classify(r Record) Classified {
	return Classified{
		Filename:  r.Filename,
		ChiSquare: flag(analyzer.MethodChiSquare, r.ChiSquare, t.ChiSquare),
		RS:        flag(analyzer.MethodRS, r.RS, t.RS),
		AUMP:      flag(analyzer.MethodAUMP, r.AUMP, t.AUMP),
	}
}

// ClassifyAll applies the thresholds to every record
func (t Thresholds) ClassifyAll(records []Record) []Classified {
	out := make([]Classified, len(records))
	for i, r := range records {
		out[i] = t.Classify(r)
	}
	return out
}
