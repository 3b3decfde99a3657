package analyzer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

// Suite holds detectors in registration order
type Suite struct {
	detectors []Detector
	mu        sync.RWMutex
}

// NewSuite creates a suite with the given detectors
func NewSuite(detectors ...Detector) *Suite {
	s := &Suite{}
	for _, d := range detectors {
		s.Register(d)
	}
	return s
}

// Register adds a detector. A detector with the same method is replaced in place.
func (s *Suite) Register(d Detector) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.detectors {
		if existing.Method() == d.Method() {
			s.detectors[i] = d
			return
		}
	}
	s.detectors = append(s.detectors, d)
}

// Get returns the detector registered for a method
func (s *Suite) Get(method Method) (Detector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.detectors {
		if d.Method() == method {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no detector for %q: %w", method, stegerr.ErrUnknownMethod)
}

// Detectors returns the registered detectors in order
func (s *Suite) Detectors() []Detector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Detector, len(s.detectors))
	copy(out, s.detectors)
	return out
}

// Select returns a suite restricted to the given methods, in the order given
func (s *Suite) Select(methods ...Method) (*Suite, error) {
	out := &Suite{}
	for _, m := range methods {
		d, err := s.Get(m)
		if err != nil {
			return nil, err
		}
		out.Register(d)
	}
	return out, nil
}

// Run scores the grid with every detector. Scores of detectors that succeed are returned
// even when others fail; the failures are joined into the error.
func (s *Suite) Run(g *grid.Grid) ([]Score, error) {
	var (
		scores []Score
		errs   []error
	)
	for _, d := range s.Detectors() {
		score, err := d.Score(g)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Method(), err))
			continue
		}
		scores = append(scores, score)
	}
	return scores, errors.Join(errs...)
}
