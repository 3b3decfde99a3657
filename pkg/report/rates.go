package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

// CarrierMarker in a filename marks a file known to carry a payload
const CarrierMarker = "_stego"

// IsCarrier reports whether a filename is marked as a stego carrier
func IsCarrier(filename string) bool {
	return strings.Contains(filename, CarrierMarker)
}

// MethodRates holds the error rates of one detector
type MethodRates struct {
	Method        analyzer.Method `json:"method"`
	FalsePositive float64         `json:"falsePositive"`
	FalseNegative float64         `json:"falseNegative"`
}

// SweepPoint is the error rate pair at one threshold
type SweepPoint struct {
	Threshold     float64 `json:"threshold"`
	FalsePositive float64 `json:"falsePositive"`
	FalseNegative float64 `json:"falseNegative"`
}

// errorRates counts flagged covers and unflagged carriers
func errorRates(n int, carrier func(i int) bool, flagged func(i int) bool) (fp, fn float64) {
	var covers, carriers, fpCount, fnCount int
	for i := 0; i < n; i++ {
		if carrier(i) {
			carriers++
			if !flagged(i) {
				fnCount++
			}
		} else {
			covers++
			if flagged(i) {
				fpCount++
			}
		}
	}
	if covers > 0 {
		fp = float64(fpCount) / float64(covers)
	}
	if carriers > 0 {
		fn = float64(fnCount) / float64(carriers)
	}
	return fp, fn
}

// Rates computes false-positive and false-negative rates per tabulated method
func Rates(rows []Classified) []MethodRates {
	out := make([]MethodRates, 0, len(Methods))
	for _, m := range Methods {
		fp, fn := errorRates(len(rows),
			func(i int) bool { return IsCarrier(rows[i].Filename) },
			func(i int) bool {
				v, _ := rows[i].Verdict(m)
				return v == 1
			},
		)
		out = append(out, MethodRates{Method: m, FalsePositive: fp, FalseNegative: fn})
	}
	return out
}

// Sweep evaluates one method's error rates at every threshold
func Sweep(records []Record, method analyzer.Method, thresholds []float64) ([]SweepPoint, error) {
	values := make([]float64, len(records))
	for i, r := range records {
		v, err := r.Value(method)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	out := make([]SweepPoint, len(thresholds))
	for k, thr := range thresholds {
		fp, fn := errorRates(len(records),
			func(i int) bool { return IsCarrier(records[i].Filename) },
			func(i int) bool { return Flagged(method, values[i], thr) },
		)
		out[k] = SweepPoint{Threshold: thr, FalsePositive: fp, FalseNegative: fn}
	}
	return out, nil
}

// Range returns start, start+step, ... up to but excluding stop. step may be negative.
func Range(start, stop, step float64) ([]float64, error) {
	if step == 0 || math.IsNaN(step) || (stop-start)*step < 0 {
		return nil, fmt.Errorf("range %v..%v by %v: %w", start, stop, step, stegerr.ErrInvalidParams)
	}
	n := int(math.Ceil((stop - start) / step))
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out, nil
}

// DefaultSweep returns the threshold range conventionally swept for a method
func DefaultSweep(method analyzer.Method) ([]float64, error) {
	switch method {
	case analyzer.MethodChiSquare:
		return Range(13000, 0, -1000)
	case analyzer.MethodRS:
		return Range(2, 0, -0.001)
	case analyzer.MethodAUMP:
		return Range(10, 0, -0.1)
	}
	return nil, fmt.Errorf("no sweep for %q: %w", method, stegerr.ErrUnknownMethod)
}
