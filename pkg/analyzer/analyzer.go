package analyzer

import (
	"fmt"
	"strings"

	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
Analyzer.go contains the interface and base implementation for steganalysis detectors.
Detector: interface every detector implements; it turns a single-channel grid into one score.
BaseDetector: struct providing method tag, name and description, embedded by the detectors in
the chisquare, rs, aump and lsb packages.
DetectorFunc: adapter that turns a plain scoring function into a Detector, so an external
implementation can be injected into a Suite.
Score: the tagged value a detector produces. Thresholds and classification live in pkg/report.
*/

// Method identifies a detector
type Method string

const (
	MethodChiSquare  Method = "chi-square"
	MethodRS         Method = "rs"
	MethodAUMP       Method = "aump"
	MethodLSBEntropy Method = "lsb-entropy"
)

// ParseMethod maps a user-supplied name onto a Method
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodChiSquare, MethodRS, MethodAUMP, MethodLSBEntropy:
		return m, nil
	}
	return "", fmt.Errorf("%q: %w", s, stegerr.ErrUnknownMethod)
}

// Score is a detector's verdict on one grid
type Score struct {
	Method Method  `json:"method"`
	Value  float64 `json:"value"`
}

// Detector is the interface that all detectors must implement
type Detector interface {
	// Method returns the tag identifying the detector
	Method() Method

	// Name returns the display name of the detector
	Name() string

	// Description returns a short explanation of what the detector measures
	Description() string

	// Score analyzes a single-channel grid
	Score(g *grid.Grid) (Score, error)
}

// BaseDetector provides common functionality for detectors
type BaseDetector struct {
	method      Method
	name        string
	description string
}

// NewBaseDetector creates a new BaseDetector
func NewBaseDetector(method Method, name, description string) BaseDetector {
	return BaseDetector{
		method:      method,
		name:        name,
		description: description,
	}
}

// Method returns the detector's method tag
func (b *BaseDetector) Method() Method {
	return b.method
}

// Name returns the detector name
func (b *BaseDetector) Name() string {
	return b.name
}

// Description returns the detector description
func (b *BaseDetector) Description() string {
	return b.description
}

// CheckGrid verifies the grid exists and is single-channel
func (b *BaseDetector) CheckGrid(g *grid.Grid) error {
	if g == nil || g.Len() == 0 {
		return fmt.Errorf("%s: empty grid: %w", b.method, stegerr.ErrImageTooSmall)
	}
	if g.Channels != grid.Gray {
		return fmt.Errorf("%s expects a gray grid, got %d channels: %w", b.method, g.Channels, stegerr.ErrChannelMismatch)
	}
	return nil
}

// DetectorFunc wraps a scoring function as a Detector
type DetectorFunc struct {
	BaseDetector
	fn func(*grid.Grid) (float64, error)
}

// NewDetectorFunc creates a Detector backed by fn
func NewDetectorFunc(method Method, name, description string, fn func(*grid.Grid) (float64, error)) *DetectorFunc {
	return &DetectorFunc{
		BaseDetector: NewBaseDetector(method, name, description),
		fn:           fn,
	}
}

// Score checks the grid and calls the wrapped function
func (d *DetectorFunc) Score(g *grid.Grid) (Score, error) {
	if err := d.CheckGrid(g); err != nil {
		return Score{}, err
	}
	v, err := d.fn(g)
	if err != nil {
		return Score{}, fmt.Errorf("%s failed: %w", d.Method(), err)
	}
	return Score{Method: d.Method(), Value: v}, nil
}
