package models

import (
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/thvl3/stegolab/pkg/analyzer"
)

// DetectionReport contains the detector scores for one image
type DetectionReport struct {
	RunID            string           `json:"runId,omitempty"`
	Filename         string           `json:"filename"`
	FileType         string           `json:"fileType"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	Scores           []analyzer.Score `json:"scores"`
	Errors           []string         `json:"errors,omitempty"`
	Findings         []Finding        `json:"findings,omitempty"`
	AnalysisTime     time.Time        `json:"analysisTime"`
	AnalysisDuration time.Duration    `json:"analysisDuration"`
}

// Finding represents a specific detection or discovery during analysis
type Finding struct {
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"` // 0.0-1.0
	Details     string  `json:"details"`
}

// EmbedResult describes a completed embedding
type EmbedResult struct {
	Method       string  `json:"method"`
	Input        string  `json:"input"`
	Output       string  `json:"output"`
	ParamsFile   string  `json:"paramsFile"`
	PayloadBytes int     `json:"payloadBytes"`
	CapacityBits int     `json:"capacityBits"`
	PSNR         float64 `json:"psnr"`
	Verified     bool    `json:"verified"`
	BitErrorRate float64 `json:"bitErrorRate"`
}

// ExtractionResult contains the results of an extraction attempt
type ExtractionResult struct {
	Success       bool     `json:"success"`
	FileType      string   `json:"fileType"`
	Algorithm     string   `json:"algorithm"`
	DataType      string   `json:"dataType"`      // text or binary
	ExtractedData []byte   `json:"extractedData"` // The raw extracted data
	DataSize      int      `json:"dataSize"`
	Warning       string   `json:"warning,omitempty"`
	OutputFiles   []string `json:"outputFiles"` // Paths to any saved output files
	MimeType      string   `json:"mimeType"`
}

// AddFinding adds a finding to the report
func (r *DetectionReport) AddFinding(description string, confidence float64, details string) {
	r.Findings = append(r.Findings, Finding{
		Description: description,
		Confidence:  confidence,
		Details:     details,
	})
}

// AddError records a detector or loading failure
func (r *DetectionReport) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Failed reports whether anything went wrong while analyzing the file
func (r *DetectionReport) Failed() bool {
	return len(r.Errors) > 0
}

// Score returns the score for a method, if the detector ran
func (r *DetectionReport) Score(method analyzer.Method) (float64, bool) {
	for _, s := range r.Scores {
		if s.Method == method {
			return s.Value, true
		}
	}
	return 0, false
}

// NewExtractionResult fills data-derived fields for a recovered payload
func NewExtractionResult(algorithm, fileType string, data []byte) *ExtractionResult {
	res := &ExtractionResult{
		Success:       len(data) > 0,
		FileType:      fileType,
		Algorithm:     algorithm,
		ExtractedData: data,
		DataSize:      len(data),
		DataType:      "binary",
		MimeType:      http.DetectContentType(data),
	}
	if len(data) > 0 && utf8.Valid(data) {
		res.DataType = "text"
	}
	return res
}
