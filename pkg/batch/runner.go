package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/filehandler"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/models"
	"github.com/thvl3/stegolab/pkg/report"
)

/*
runner.go analyzes many images concurrently.
Runner: loads each input (local path or http(s) URL), reduces it to a gray grid, scores it with
every detector in the suite and records one DetectionReport per input. A failure on one file is
recorded on its report; it never stops the others. Reports come back in input order.
*/

// Runner runs a detector suite over a list of inputs
type Runner struct {
	suite      *analyzer.Suite
	workers    int
	logger     zerolog.Logger
	metrics    *Metrics
	thresholds *report.Thresholds

	// DownloadDir receives URL inputs. Empty means a fresh temporary directory per run.
	DownloadDir string
}

// NewRunner creates a runner with at most workers files in flight
func NewRunner(suite *analyzer.Suite, workers int, logger zerolog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		suite:   suite,
		workers: workers,
		logger:  logger,
		metrics: NewMetrics(),
	}
}

// WithThresholds makes the runner add a finding for every score that crosses its threshold
func (r *Runner) WithThresholds(t report.Thresholds) *Runner {
	r.thresholds = &t
	return r
}

// Metrics returns the runner's metrics
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Run analyzes every input and returns the reports in input order. The error is non-nil
// only when ctx was cancelled; reports for inputs not reached are left zero-valued apart
// from their filename and an error entry.
func (r *Runner) Run(ctx context.Context, inputs []string) ([]models.DetectionReport, error) {
	runID := uuid.NewString()
	log := r.logger.With().Str("run", runID).Logger()

	downloadDir := r.DownloadDir
	if downloadDir == "" && hasURL(inputs) {
		dir, err := os.MkdirTemp("", "stegolab-")
		if err != nil {
			return nil, fmt.Errorf("failed to create download directory: %w", err)
		}
		defer os.RemoveAll(dir)
		downloadDir = dir
	}

	log.Info().Int("files", len(inputs)).Int("workers", r.workers).Msg("batch analysis started")
	start := time.Now()

	reports := make([]models.DetectionReport, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, input := range inputs {
		i, input := i, input
		reports[i] = models.DetectionReport{RunID: runID, Filename: filepath.Base(input)}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				reports[i].AddError(err)
				return err
			}
			reports[i] = r.analyze(gctx, log, runID, input, downloadDir)
			return nil
		})
	}

	err := g.Wait()
	log.Info().Dur("elapsed", time.Since(start)).Msg("batch analysis finished")
	if err != nil {
		return reports, fmt.Errorf("batch analysis interrupted: %w", err)
	}
	return reports, nil
}

func hasURL(inputs []string) bool {
	for _, in := range inputs {
		if filehandler.IsURL(in) {
			return true
		}
	}
	return false
}

// analyze processes one input
func (r *Runner) analyze(ctx context.Context, log zerolog.Logger, runID, input, downloadDir string) (rep models.DetectionReport) {
	start := time.Now()
	rep = models.DetectionReport{
		RunID:        runID,
		Filename:     filepath.Base(input),
		AnalysisTime: start,
	}
	defer func() {
		rep.AnalysisDuration = time.Since(start)
	}()

	path := input
	if filehandler.IsURL(input) {
		local, err := filehandler.DownloadFromURL(ctx, input, downloadDir)
		if err != nil {
			return r.fail(log, rep, input, err)
		}
		path = local
		rep.Filename = filepath.Base(local)
	}

	img, format, err := filehandler.LoadImage(path)
	if err != nil {
		return r.fail(log, rep, input, err)
	}
	g, err := grid.FromImage(img, grid.Gray)
	if err != nil {
		return r.fail(log, rep, input, err)
	}
	rep.FileType = format
	rep.Width, rep.Height = g.Width, g.Height
	if filehandler.IsLossy(format) {
		rep.AddFinding("lossy container", 0.5, format+" recompression disturbs pixel-domain payloads and scores")
	}

	for _, d := range r.suite.Detectors() {
		t0 := time.Now()
		score, err := d.Score(g)
		r.metrics.DetectorDuration.WithLabelValues(string(d.Method())).Observe(time.Since(t0).Seconds())
		if err != nil {
			rep.AddError(fmt.Errorf("%s: %w", d.Method(), err))
			log.Warn().Err(err).Str("file", rep.Filename).Str("method", string(d.Method())).Msg("detector failed")
			continue
		}
		rep.Scores = append(rep.Scores, score)
		r.flag(&rep, score)
	}

	status := StatusOK
	if rep.Failed() {
		status = StatusPartial
	}
	r.metrics.ImagesAnalyzed.WithLabelValues(status).Inc()
	log.Debug().Str("file", rep.Filename).Int("scores", len(rep.Scores)).Msg("analyzed")
	return rep
}

func (r *Runner) fail(log zerolog.Logger, rep models.DetectionReport, input string, err error) models.DetectionReport {
	rep.AddError(err)
	r.metrics.ImagesAnalyzed.WithLabelValues(StatusError).Inc()
	log.Error().Err(err).Str("input", input).Msg("failed to analyze")
	return rep
}

// flag records a finding when a tabulated score crosses its threshold
func (r *Runner) flag(rep *models.DetectionReport, s analyzer.Score) {
	if r.thresholds == nil {
		return
	}
	threshold, err := r.thresholds.For(s.Method)
	if err != nil {
		return
	}
	if report.Flagged(s.Method, s.Value, threshold) {
		rep.AddFinding(
			fmt.Sprintf("%s flags a hidden payload", s.Method),
			1,
			fmt.Sprintf("score %.4f, threshold %.4f", s.Value, threshold),
		)
	}
}
