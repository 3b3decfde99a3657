package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/filehandler"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/report"
)

func flat(v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func testSuite() *analyzer.Suite {
	return analyzer.NewSuite(
		analyzer.NewDetectorFunc(analyzer.MethodRS, "corner", "first pixel over 100", func(g *grid.Grid) (float64, error) {
			return float64(g.At(0, 0)) / 100, nil
		}),
		analyzer.NewDetectorFunc(analyzer.MethodAUMP, "picky", "fails on value 30", func(g *grid.Grid) (float64, error) {
			if g.At(0, 0) == 30 {
				return 0, errors.New("rejected")
			}
			return 5, nil
		}),
	)
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, filehandler.SaveImage(filepath.Join(dir, "a.png"), flat(0)))
	require.NoError(t, filehandler.SaveImage(filepath.Join(dir, "b.png"), flat(30)))

	var served bytes.Buffer
	require.NoError(t, png.Encode(&served, flat(50)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(served.Bytes())
	}))
	defer srv.Close()

	runner := NewRunner(testSuite(), 2, zerolog.Nop()).WithThresholds(report.DefaultThresholds())
	runner.DownloadDir = filepath.Join(dir, "downloads")

	inputs := []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "missing.png"),
		srv.URL + "/c.png",
	}
	reports, err := runner.Run(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, reports, 4)

	names := make([]string, len(reports))
	for i, r := range reports {
		names[i] = r.Filename
		assert.Equal(t, reports[0].RunID, r.RunID)
	}
	assert.Equal(t, []string{"a.png", "b.png", "missing.png", "c.png"}, names)
	_, err = uuid.Parse(reports[0].RunID)
	assert.NoError(t, err)

	a := reports[0]
	assert.False(t, a.Failed())
	assert.Equal(t, "png", a.FileType)
	assert.Equal(t, 8, a.Width)
	rs, ok := a.Score(analyzer.MethodRS)
	require.True(t, ok)
	assert.Equal(t, 0.0, rs)
	require.Len(t, a.Findings, 1, "RS at 0 is below the 0.02 threshold")
	assert.Contains(t, a.Findings[0].Description, "rs")

	b := reports[1]
	assert.True(t, b.Failed())
	assert.Len(t, b.Scores, 1)
	assert.Contains(t, b.Errors[0], "rejected")

	assert.True(t, reports[2].Failed())
	assert.Empty(t, reports[2].Scores)

	c := reports[3]
	assert.False(t, c.Failed())
	rs, _ = c.Score(analyzer.MethodRS)
	assert.Equal(t, 0.5, rs)
	assert.FileExists(t, filepath.Join(dir, "downloads", "c.png"))

	m := runner.Metrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImagesAnalyzed.WithLabelValues(StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesAnalyzed.WithLabelValues(StatusPartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesAnalyzed.WithLabelValues(StatusError)))
}

func TestRunner_RemovesOwnDownloadDir(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	var served bytes.Buffer
	require.NoError(t, png.Encode(&served, flat(50)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(served.Bytes())
	}))
	defer srv.Close()

	reports, err := NewRunner(testSuite(), 1, zerolog.Nop()).Run(context.Background(), []string{srv.URL + "/c.png"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	score, ok := reports[0].Score(analyzer.MethodRS)
	require.True(t, ok)
	assert.InDelta(t, 0.5, score, 1e-9)

	leftover, err := filepath.Glob(filepath.Join(tmp, "stegolab-*"))
	require.NoError(t, err)
	assert.Empty(t, leftover)
}

func TestRunner_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, filehandler.SaveImage(path, flat(7)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := NewRunner(testSuite(), 1, zerolog.Nop()).Run(ctx, []string{path, path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.True(t, r.Failed())
		assert.Equal(t, "a.png", r.Filename)
	}
}

func TestMetrics_WriteMetrics(t *testing.T) {
	m := NewMetrics()
	m.ImagesAnalyzed.WithLabelValues(StatusOK).Add(3)
	m.DetectorDuration.WithLabelValues(string(analyzer.MethodRS)).Observe(0.002)

	path := filepath.Join(t.TempDir(), "stegolab.prom")
	require.NoError(t, m.WriteMetrics(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `stegolab_images_analyzed_total{status="ok"} 3`), text)
	assert.Contains(t, text, `stegolab_detector_duration_seconds_count{method="rs"} 1`)
}
