package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/batch"
	"github.com/thvl3/stegolab/pkg/filehandler"
	"github.com/thvl3/stegolab/pkg/models"
	"github.com/thvl3/stegolab/pkg/report"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		filePath, dirPath, urlPath, urlFilePath string
		outputDir, csvPath, classifiedPath      string
		metricsPath                             string
		methods                                 []string
		recursive, jsonOut, verbose             bool
		workers                                 int
	)

	cmd := &cobra.Command{
		Use:   "analyze [file...]",
		Short: "Score images with the steganalysis detectors",
		Example: `  stegolab analyze --file suspect.png
  stegolab analyze --dir ./images --recursive --csv scores.csv
  stegolab analyze --urlfile urls.txt --methods rs,aump`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := gatherInputs(args, filePath, dirPath, urlPath, urlFilePath, recursive || a.cfg.Batch.Recursive)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return errors.New("nothing to analyze: give files, --file, --dir, --url or --urlfile")
			}

			suite := registerDetectors(a.cfg.Detectors)
			if len(methods) > 0 {
				selected := make([]analyzer.Method, 0, len(methods))
				for _, name := range methods {
					m, err := analyzer.ParseMethod(name)
					if err != nil {
						return err
					}
					selected = append(selected, m)
				}
				if suite, err = suite.Select(selected...); err != nil {
					return err
				}
			}

			if !cmd.Flags().Changed("workers") {
				workers = a.cfg.Batch.Workers
			}
			thresholds := a.thresholds(cmd)
			runner := batch.NewRunner(suite, workers, a.logger).WithThresholds(thresholds)
			runner.DownloadDir = filepath.Join(outputDir, "downloads")

			printInfo("Analyzing %d input(s) with %d worker(s)", len(inputs), workers)
			reports, runErr := runner.Run(cmd.Context(), inputs)

			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return fmt.Errorf("failed to encode reports: %w", err)
				}
			} else {
				for i := range reports {
					displayReport(&reports[i], thresholds, verbose)
				}
				printSummary(reports, thresholds)
			}

			if csvPath != "" || classifiedPath != "" {
				if err := writeTables(reports, thresholds, csvPath, classifiedPath); err != nil {
					return err
				}
			}

			if metricsPath == "" {
				metricsPath = a.cfg.Batch.MetricsFile
			}
			if metricsPath != "" {
				if err := runner.Metrics().WriteMetrics(metricsPath); err != nil {
					return err
				}
				printInfo("Metrics written to %s", metricsPath)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Path to a single file for analysis")
	cmd.Flags().StringVar(&dirPath, "dir", "", "Path to directory of files for analysis")
	cmd.Flags().StringVar(&urlPath, "url", "", "URL to download and analyze")
	cmd.Flags().StringVar(&urlFilePath, "urlfile", "", "Path to file containing URLs to download and analyze")
	cmd.Flags().StringVar(&outputDir, "outdir", "stegolab_output", "Directory to store downloaded files")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Descend into subdirectories of --dir")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Files analyzed in parallel")
	cmd.Flags().StringSliceVar(&methods, "methods", nil, "Detectors to run (chi-square, rs, aump, lsb-entropy)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write raw scores to this CSV file")
	cmd.Flags().StringVar(&classifiedPath, "classified", "", "Write 0/1 verdicts to this CSV file")
	cmd.Flags().StringVar(&metricsPath, "metrics", "", "Write Prometheus metrics to this file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the reports as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show finding details")
	addThresholdFlags(cmd)
	return cmd
}

// gatherInputs expands every input source into a list of paths and URLs
func gatherInputs(args []string, filePath, dirPath, urlPath, urlFilePath string, recursive bool) ([]string, error) {
	inputs := append([]string(nil), args...)
	if filePath != "" {
		inputs = append(inputs, filePath)
	}
	if urlPath != "" {
		inputs = append(inputs, urlPath)
	}
	if urlFilePath != "" {
		urls, err := filehandler.ReadLines(urlFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read URL file: %w", err)
		}
		inputs = append(inputs, urls...)
	}
	if dirPath != "" {
		files, err := filehandler.GatherFiles(dirPath, recursive)
		if err != nil {
			return nil, err
		}
		printInfo("Found %d image files in %s", len(files), dirPath)
		inputs = append(inputs, files...)
	}
	return inputs, nil
}

// votes counts the tabulated detectors that flag a report
func votes(r *models.DetectionReport, t report.Thresholds) (flagged, scored int) {
	for _, m := range report.Methods {
		v, ok := r.Score(m)
		if !ok {
			continue
		}
		scored++
		threshold, _ := t.For(m)
		if report.Flagged(m, v, threshold) {
			flagged++
		}
	}
	return flagged, scored
}

func displayReport(r *models.DetectionReport, t report.Thresholds, verbose bool) {
	fmt.Fprintln(out, "\n--- Analysis Results ---")
	fmt.Fprintf(out, "File: %s\n", r.Filename)
	if r.FileType != "" {
		fmt.Fprintf(out, "Format: %s (%dx%d)\n", r.FileType, r.Width, r.Height)
	}

	for _, s := range r.Scores {
		fmt.Fprintf(out, "%-12s %.4f\n", s.Method+":", s.Value)
	}

	flagged, scored := votes(r, t)
	switch {
	case scored == 0:
	case flagged == scored:
		printAlert("All %d detectors flag a hidden payload", scored)
	case flagged > 0:
		printWarning("%d of %d detectors flag a hidden payload", flagged, scored)
	default:
		printSuccess("No steganography detected")
	}

	if len(r.Findings) > 0 {
		fmt.Fprintln(out, "\nFindings:")
		for i, finding := range r.Findings {
			fmt.Fprintf(out, "%d. %s (Confidence: %.2f)\n", i+1, finding.Description, finding.Confidence)
			if verbose && finding.Details != "" {
				fmt.Fprintf(out, "   Details: %s\n", finding.Details)
			}
		}
	}
	for _, e := range r.Errors {
		printError("%s", e)
	}
	if verbose {
		fmt.Fprintf(out, "Analyzed in %v\n", r.AnalysisDuration)
	}
	fmt.Fprintln(out, "-------------------------")
}

func printSummary(reports []models.DetectionReport, t report.Thresholds) {
	var clean, suspicious, confirmed, failed int
	for i := range reports {
		flagged, scored := votes(&reports[i], t)
		switch {
		case scored == 0:
			failed++
		case flagged == 0:
			clean++
		case flagged < scored:
			suspicious++
		default:
			confirmed++
		}
	}

	fmt.Fprintln(out, "\n=== Analysis Summary ===")
	fmt.Fprintf(out, "Total files analyzed: %d\n", len(reports))
	fmt.Fprintf(out, "%s Clean files: %d\n", successColor("[+]"), clean)
	if suspicious > 0 {
		fmt.Fprintf(out, "%s Suspicious files: %d\n", warningColor("[!]"), suspicious)
	}
	if confirmed > 0 {
		fmt.Fprintf(out, "%s Flagged by every detector: %d\n", alertColor("[!!!]"), confirmed)
	}
	if failed > 0 {
		fmt.Fprintf(out, "%s Not scored: %d\n", errorColor("[-]"), failed)
	}
}

// writeTables writes the raw and classified CSV tables. Reports missing any tabulated
// score are left out so a failed detector never reads as a zero score.
func writeTables(reports []models.DetectionReport, t report.Thresholds, csvPath, classifiedPath string) error {
	var records []report.Record
	for i := range reports {
		r := &reports[i]
		if _, scored := votes(r, t); scored < len(report.Methods) {
			printWarning("%s left out of the tables: not every detector scored it", r.Filename)
			continue
		}
		records = append(records, report.RecordFromScores(r.Filename, r.Scores))
	}

	if csvPath != "" {
		if err := writeCSV(csvPath, func(w io.Writer) error { return report.WriteRecords(w, records) }); err != nil {
			return err
		}
		printSuccess("Scores written to %s", csvPath)
	}
	if classifiedPath != "" {
		rows := t.ClassifyAll(records)
		if err := writeCSV(classifiedPath, func(w io.Writer) error { return report.WriteClassified(w, rows) }); err != nil {
			return err
		}
		printSuccess("Verdicts written to %s", classifiedPath)
	}
	return nil
}

func writeCSV(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func readCSV[T any](path string, read func(r io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return read(f)
}

func newRatesCmd(a *app) *cobra.Command {
	var (
		classified     bool
		sweep, outPath string
	)

	cmd := &cobra.Command{
		Use:   "rates <scores.csv>",
		Short: "Compute false-positive and false-negative rates from a score table",
		Long: `rates classifies a score table written by 'analyze --csv' and reports, per detector,
the false-positive rate over clean files and the false-negative rate over files whose name
contains "` + report.CarrierMarker + `". With --sweep it evaluates one detector over a range
of thresholds and reports the threshold with the fewest errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thresholds := a.thresholds(cmd)

			var (
				records []report.Record
				rows    []report.Classified
				err     error
			)
			if classified {
				if sweep != "" {
					return errors.New("--sweep needs raw scores, not a classified table")
				}
				if rows, err = readCSV(args[0], report.ReadClassified); err != nil {
					return err
				}
			} else {
				if records, err = readCSV(args[0], report.ReadRecords); err != nil {
					return err
				}
				rows = thresholds.ClassifyAll(records)
			}

			if outPath != "" {
				if err := writeCSV(outPath, func(w io.Writer) error { return report.WriteClassified(w, rows) }); err != nil {
					return err
				}
				printSuccess("Verdicts written to %s", outPath)
			}

			printInfo("%d files, thresholds chi-square >= %g, RS <= %g, AUMP <= %g", len(rows), thresholds.ChiSquare, thresholds.RS, thresholds.AUMP)
			for _, r := range report.Rates(rows) {
				fmt.Fprintf(out, "%-12s FP %.3f  FN %.3f\n", r.Method+":", r.FalsePositive, r.FalseNegative)
			}

			if sweep == "" {
				return nil
			}
			m, err := analyzer.ParseMethod(sweep)
			if err != nil {
				return err
			}
			candidates, err := report.DefaultSweep(m)
			if err != nil {
				return err
			}
			points, err := report.Sweep(records, m, candidates)
			if err != nil {
				return err
			}
			best := points[0]
			for _, p := range points[1:] {
				if p.FalsePositive+p.FalseNegative < best.FalsePositive+best.FalseNegative {
					best = p
				}
			}
			a.logger.Debug().Str("method", string(m)).Int("points", len(points)).Msg("threshold sweep")
			printSuccess("Best %s threshold %g: FP %.3f, FN %.3f", m, best.Threshold, best.FalsePositive, best.FalseNegative)
			return nil
		},
	}

	cmd.Flags().BoolVar(&classified, "classified", false, "The input already holds 0/1 verdicts")
	cmd.Flags().StringVar(&sweep, "sweep", "", "Sweep thresholds for one detector (chi-square, rs, aump)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the classified table to this CSV file")
	addThresholdFlags(cmd)
	return cmd
}
