package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Delimiter separates CSV fields
const Delimiter = ';'

// Column names of the detection table
const (
	ColumnFilename  = "filename"
	ColumnChiSquare = "Xi-square"
	ColumnRS        = "RS-analyse"
	ColumnAUMP      = "AUMP"
)

// Header is the detection table header row
var Header = []string{ColumnFilename, ColumnChiSquare, ColumnRS, ColumnAUMP}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	return cw
}

func writeRows(w io.Writer, rows [][]string) error {
	cw := newWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteRecords writes raw scores in the detection table layout
func WriteRecords(w io.Writer, records []Record) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Filename, formatFloat(r.ChiSquare), formatFloat(r.RS), formatFloat(r.AUMP)}
	}
	return writeRows(w, rows)
}

// WriteClassified writes 0/1 verdicts in the detection table layout
func WriteClassified(w io.Writer, rows []Classified) error {
	out := make([][]string, len(rows))
	for i, c := range rows {
		out[i] = []string{c.Filename, strconv.Itoa(c.ChiSquare), strconv.Itoa(c.RS), strconv.Itoa(c.AUMP)}
	}
	return writeRows(w, out)
}

// ReadRecords reads a detection table. Columns may appear in any order; all four are required.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty detection table")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	var missing []string
	for _, name := range Header {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns %v", missing)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		rec := Record{Filename: row[index[ColumnFilename]]}
		if rec.Filename == "" {
			return nil, fmt.Errorf("line %d: empty filename", line)
		}
		fields := []struct {
			column string
			dst    *float64
		}{
			{ColumnChiSquare, &rec.ChiSquare},
			{ColumnRS, &rec.RS},
			{ColumnAUMP, &rec.AUMP},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(row[index[f.column]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, f.column, err)
			}
			*f.dst = v
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadClassified reads a detection table of 0/1 verdicts
func ReadClassified(r io.Reader) ([]Classified, error) {
	records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}

	out := make([]Classified, len(records))
	for i, rec := range records {
		c := Classified{Filename: rec.Filename}
		for _, f := range []struct {
			v   float64
			dst *int
		}{{rec.ChiSquare, &c.ChiSquare}, {rec.RS, &c.RS}, {rec.AUMP, &c.AUMP}} {
			if f.v != 0 && f.v != 1 {
				return nil, fmt.Errorf("%s: verdict %v is not 0 or 1", rec.Filename, f.v)
			}
			*f.dst = int(f.v)
		}
		out[i] = c
	}
	return out, nil
}
