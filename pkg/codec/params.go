package codec

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thvl3/stegolab/pkg/stegerr"
)

// Method identifies an embedding scheme and its parameter variant
type Method string

const (
	MethodBitPlane  Method = "bitplane"
	MethodPairwise  Method = "pairwise"
	MethodCDB       Method = "cdb"
	MethodIMNP      Method = "imnp"
	MethodHomoglyph Method = "homoglyph"
)

// ParseMethod maps a user-supplied name onto a Method
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodBitPlane, MethodPairwise, MethodCDB, MethodIMNP, MethodHomoglyph:
		return m, nil
	}
	return "", fmt.Errorf("%q: %w", s, stegerr.ErrUnknownMethod)
}

// Params is the side information a codec needs beyond the stego carrier.
// Each codec has exactly one concrete variant.
type Params interface {
	Method() Method
}

// BitPlaneParams selects the plane to write and, for extraction, the payload length
type BitPlaneParams struct {
	Plane      int `yaml:"plane" json:"plane"`
	ByteLength int `yaml:"byteLength" json:"byteLength"`
}

// PairwiseParams optionally caps extraction; the channel itself is terminator-delimited
type PairwiseParams struct {
	MaxBytes int `yaml:"maxBytes,omitempty" json:"maxBytes,omitempty"`
}

// CDBParams drives the correlation watermark
type CDBParams struct {
	Coeff    float64 `yaml:"coeff" json:"coeff"`
	Range    int     `yaml:"range" json:"range"`
	Seed     int64   `yaml:"seed" json:"seed"`
	BitCount int     `yaml:"bitCount" json:"bitCount"`
}

// IMNPParams carries the payload length in bytes
type IMNPParams struct {
	MessageLength int `yaml:"messageLength" json:"messageLength"`
}

// HomoglyphParams drives the text codec
type HomoglyphParams struct {
	Seed       int64 `yaml:"seed" json:"seed"`
	ByteLength int   `yaml:"byteLength" json:"byteLength"`
}

func (BitPlaneParams) Method() Method  { return MethodBitPlane }
func (PairwiseParams) Method() Method  { return MethodPairwise }
func (CDBParams) Method() Method       { return MethodCDB }
func (IMNPParams) Method() Method      { return MethodIMNP }
func (HomoglyphParams) Method() Method { return MethodHomoglyph }

// Envelope is the persisted form of a Params value: the method tag plus the one
// populated variant.
type Envelope struct {
	Method    Method           `yaml:"method" json:"method"`
	BitPlane  *BitPlaneParams  `yaml:"bitplane,omitempty" json:"bitplane,omitempty"`
	Pairwise  *PairwiseParams  `yaml:"pairwise,omitempty" json:"pairwise,omitempty"`
	CDB       *CDBParams       `yaml:"cdb,omitempty" json:"cdb,omitempty"`
	IMNP      *IMNPParams      `yaml:"imnp,omitempty" json:"imnp,omitempty"`
	Homoglyph *HomoglyphParams `yaml:"homoglyph,omitempty" json:"homoglyph,omitempty"`
}

// Wrap builds the envelope for a params value
func Wrap(p Params) (Envelope, error) {
	switch v := p.(type) {
	case BitPlaneParams:
		return Envelope{Method: MethodBitPlane, BitPlane: &v}, nil
	case PairwiseParams:
		return Envelope{Method: MethodPairwise, Pairwise: &v}, nil
	case CDBParams:
		return Envelope{Method: MethodCDB, CDB: &v}, nil
	case IMNPParams:
		return Envelope{Method: MethodIMNP, IMNP: &v}, nil
	case HomoglyphParams:
		return Envelope{Method: MethodHomoglyph, Homoglyph: &v}, nil
	}
	return Envelope{}, fmt.Errorf("cannot wrap %T: %w", p, stegerr.ErrInvalidParams)
}

// Unwrap returns the params variant named by the envelope's method
func (e Envelope) Unwrap() (Params, error) {
	switch e.Method {
	case MethodBitPlane:
		if e.BitPlane != nil {
			return *e.BitPlane, nil
		}
	case MethodPairwise:
		if e.Pairwise != nil {
			return *e.Pairwise, nil
		}
		return PairwiseParams{}, nil
	case MethodCDB:
		if e.CDB != nil {
			return *e.CDB, nil
		}
	case MethodIMNP:
		if e.IMNP != nil {
			return *e.IMNP, nil
		}
	case MethodHomoglyph:
		if e.Homoglyph != nil {
			return *e.Homoglyph, nil
		}
	default:
		return nil, fmt.Errorf("envelope method %q: %w", e.Method, stegerr.ErrUnknownMethod)
	}
	return nil, fmt.Errorf("envelope for %s has no parameters: %w", e.Method, stegerr.ErrInvalidParams)
}

// SaveParams writes params as a YAML sidecar
func SaveParams(path string, p Params) error {
	env, err := Wrap(p)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write parameters: %w", err)
	}
	return nil
}

// LoadParams reads a YAML sidecar written by SaveParams
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}
	var env Envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	return env.Unwrap()
}
