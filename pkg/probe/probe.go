package probe

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/thvl3/stegolab/pkg/bits"
	"github.com/thvl3/stegolab/pkg/filehandler"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/models"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
probe.go reads low bit planes of an image without knowing the embedding parameters
and ranks the byte streams by how much they look like a hidden payload.
Streams are scored on file signatures, text quality, entropy and long byte runs.
*/

// DefaultMaxBytes bounds how many bytes each stream keeps
const DefaultMaxBytes = 4096

var signatures = []struct {
	magic    string
	fileType string
	mime     string
}{
	{"\x89PNG", "png", "image/png"},
	{"\xff\xd8\xff", "jpg", "image/jpeg"},
	{"%PDF", "pdf", "application/pdf"},
	{"PK\x03\x04", "zip", "application/zip"},
	{"GIF8", "gif", "image/gif"},
	{"BM", "bmp", "image/bmp"},
}

// Candidate is one candidate payload stream
type Candidate struct {
	Method      string
	Data        []byte
	Score       float64
	FileType    string
	TextQuality float64
	Entropy     float64
}

// Options controls which planes are read
type Options struct {
	// Planes lists the bit planes to read, 0 being the LSB
	Planes   []int
	MaxBytes int
}

// DefaultOptions reads the two lowest planes
func DefaultOptions() Options {
	return Options{Planes: []int{0, 1}, MaxBytes: DefaultMaxBytes}
}

// Probe extracts every candidate stream from g and returns them best first
func Probe(g *grid.Grid, opts Options) ([]Candidate, error) {
	if g == nil {
		return nil, errors.New("nil grid provided")
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if len(opts.Planes) == 0 {
		opts.Planes = DefaultOptions().Planes
	}

	var candidates []Candidate
	for _, plane := range opts.Planes {
		if plane < 0 || plane > 7 {
			return nil, fmt.Errorf("bit plane %d out of range 0..7: %w", plane, stegerr.ErrInvalidParams)
		}

		if g.Channels == grid.Gray {
			candidates = append(candidates, evaluate(fmt.Sprintf("gray-plane%d", plane), readSequential(g, plane, []int{0}, opts.MaxBytes)))
			continue
		}

		candidates = append(candidates,
			evaluate(fmt.Sprintf("rgb-plane%d", plane), readSequential(g, plane, []int{0, 1, 2}, opts.MaxBytes)),
			evaluate(fmt.Sprintf("r-plane%d", plane), readSequential(g, plane, []int{0}, opts.MaxBytes)),
			evaluate(fmt.Sprintf("g-plane%d", plane), readSequential(g, plane, []int{1}, opts.MaxBytes)),
			evaluate(fmt.Sprintf("b-plane%d", plane), readSequential(g, plane, []int{2}, opts.MaxBytes)),
			evaluate(fmt.Sprintf("luma-plane%d", plane), readSequential(g.Luma(), plane, []int{0}, opts.MaxBytes)),
		)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

// readSequential walks the pixels in raster order and collects bit `plane` of the
// given channels until maxBytes are filled
func readSequential(g *grid.Grid, plane int, channels []int, maxBytes int) []byte {
	limit := maxBytes * 8
	seq := make([]byte, 0, min(limit, g.Len()*len(channels)))
	for i := 0; i < g.Len() && len(seq) < limit; i++ {
		for _, c := range channels {
			seq = append(seq, (g.Pix[i*g.Channels+c]>>uint(plane))&1)
			if len(seq) == limit {
				break
			}
		}
	}

	data, partial := bits.ToBytes(seq)
	if partial {
		data = data[:len(data)-1]
	}
	return data
}

// evaluate scores a stream. Streams without a file signature end at their first NUL.
func evaluate(method string, data []byte) Candidate {
	fileType := detectFileSignature(data)
	if i := bytes.IndexByte(data, 0); i >= 0 && fileType == "" {
		data = data[:i]
	}

	c := Candidate{
		Method:      method,
		Data:        data,
		FileType:    fileType,
		TextQuality: evaluateAsText(data),
		Entropy:     dataEntropy(data),
	}
	if len(data) == 0 {
		return c
	}

	if c.FileType != "" {
		c.Score += 0.5
	}
	c.Score += c.TextQuality * 0.3
	// Zero runs and uniform noise both fall outside this band
	if c.Entropy > 3.5 && c.Entropy < 7.5 {
		c.Score += 0.2
	}
	c.Score -= repetitionPenalty(data)
	return c
}

// detectFileSignature returns the file type whose magic number starts data
func detectFileSignature(data []byte) string {
	if len(data) < 8 {
		return ""
	}
	for _, s := range signatures {
		if bytes.HasPrefix(data, []byte(s.magic)) {
			return s.fileType
		}
	}
	return ""
}

// evaluateAsText returns 0..1, the share of printable characters minus twice the
// share of control characters
func evaluateAsText(data []byte) float64 {
	if len(data) < 4 || !utf8.Valid(data) {
		return 0.0
	}

	printable, control := 0, 0
	for _, b := range data {
		switch {
		case b >= 32 && b <= 126:
			printable++
		case b == '\t' || b == '\n' || b == '\r':
		case b < 32 || b == 127:
			control++
		}
	}

	total := float64(len(data))
	score := float64(printable)/total - 2*float64(control)/total
	return math.Max(0, math.Min(1, score))
}

// dataEntropy is the Shannon entropy in bits per byte
func dataEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0.0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	entropy := 0.0
	for _, count := range counts {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(len(data))
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// repetitionPenalty punishes long runs of one byte value
func repetitionPenalty(data []byte) float64 {
	if len(data) < 20 {
		return 0.0
	}

	longest, run := 1, 1
	for i := 1; i < len(data); i++ {
		if data[i] == data[i-1] {
			run++
		} else {
			run = 1
		}
		longest = max(longest, run)
	}

	switch {
	case longest > 20:
		return 0.3
	case longest > 10:
		return 0.1
	}
	return 0.0
}

// Save writes the candidate to dir as probe_<method>.<ext> and describes it
func Save(c Candidate, dir string) (*models.ExtractionResult, error) {
	if len(c.Data) == 0 {
		return nil, fmt.Errorf("candidate %s is empty", c.Method)
	}

	extension := "bin"
	mimeType := ""
	for _, s := range signatures {
		if s.fileType == c.FileType {
			extension, mimeType = s.fileType, s.mime
		}
	}
	if c.FileType == "" && c.TextQuality > 0.7 {
		extension = "txt"
	}

	outputPath := filepath.Join(dir, fmt.Sprintf("probe_%s.%s", c.Method, extension))
	if err := filehandler.SaveFile(c.Data, outputPath); err != nil {
		return nil, fmt.Errorf("failed to write extracted data: %w", err)
	}

	res := models.NewExtractionResult("probe-"+c.Method, c.FileType, c.Data)
	if mimeType != "" {
		res.MimeType = mimeType
	}
	res.OutputFiles = []string{outputPath}
	return res, nil
}
