package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thvl3/stegolab/pkg/analyzer"
	"github.com/thvl3/stegolab/pkg/analyzer/aump"
	"github.com/thvl3/stegolab/pkg/analyzer/chisquare"
	"github.com/thvl3/stegolab/pkg/analyzer/lsb"
	"github.com/thvl3/stegolab/pkg/analyzer/rs"
	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/codec/bitplane"
	"github.com/thvl3/stegolab/pkg/codec/cdb"
	"github.com/thvl3/stegolab/pkg/codec/imnp"
	"github.com/thvl3/stegolab/pkg/codec/pairwise"
	"github.com/thvl3/stegolab/pkg/config"
	"github.com/thvl3/stegolab/pkg/filehandler"
	"github.com/thvl3/stegolab/pkg/logging"
	"github.com/thvl3/stegolab/pkg/report"
)

// app is the state shared by every command once the root pre-run has loaded the config
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger zerolog.Logger
	codecs *codec.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "stegolab",
		Short: "Hide, recover and detect payloads in images and text",
		Long: `stegolab embeds payloads with several pixel-domain schemes (bit-plane, pairwise,
CDB watermark, IMNP interpolation) and a homoglyph text scheme, and scores images with
chi-square, RS and AUMP steganalysis.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (console or json)")

	root.AddCommand(
		newEmbedCmd(a),
		newExtractCmd(a),
		newCapacityCmd(a),
		newPlanesCmd(a),
		newPSNRCmd(a),
		newProbeCmd(a),
		newAnalyzeCmd(a),
		newRatesCmd(a),
		newTextCmd(a),
		newGlyphsCmd(a),
		newFormatsCmd(a),
	)
	return root
}

// init loads the configuration, applies the global flag overrides and builds the logger
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.codecs = codec.NewRegistry()
	registerCodecs(a.codecs)
	return nil
}

func registerCodecs(registry *codec.Registry) {
	registry.Register(bitplane.New())
	registry.Register(pairwise.New())
	registry.Register(cdb.New())
	registry.Register(imnp.New())
}

func registerDetectors(cfg config.DetectorConfig) *analyzer.Suite {
	return analyzer.NewSuite(
		chisquare.New(cfg.BlockSize),
		rs.New(),
		aump.New(cfg.AUMPM, cfg.AUMPD),
		lsb.New(),
	)
}

// addThresholdFlags registers per-method threshold overrides
func addThresholdFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("chi", 0, "Chi-square threshold (flagged when >=)")
	cmd.Flags().Float64("rs", 0, "RS threshold (flagged when <=)")
	cmd.Flags().Float64("aump", 0, "AUMP threshold (flagged when <=)")
}

// thresholds returns the configured thresholds with any flag overrides applied
func (a *app) thresholds(cmd *cobra.Command) report.Thresholds {
	t := a.cfg.Thresholds
	if cmd.Flags().Changed("chi") {
		t.ChiSquare, _ = cmd.Flags().GetFloat64("chi")
	}
	if cmd.Flags().Changed("rs") {
		t.RS, _ = cmd.Flags().GetFloat64("rs")
	}
	if cmd.Flags().Changed("aump") {
		t.AUMP, _ = cmd.Flags().GetFloat64("aump")
	}
	return t
}

func newFormatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported image formats, codecs and detectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exts := make([]string, 0, len(filehandler.SupportedImageFormats))
			for ext := range filehandler.SupportedImageFormats {
				exts = append(exts, ext)
			}
			sort.Strings(exts)

			fmt.Fprintln(out, "Readable image formats:")
			for _, ext := range exts {
				format := filehandler.SupportedImageFormats[ext]
				note := ""
				if filehandler.IsLossy(format) {
					note = " (lossy, analysis only)"
				}
				fmt.Fprintf(out, "- %s: %s%s\n", ext, format, note)
			}
			fmt.Fprintf(out, "Writable formats: %s\n", strings.Join(filehandler.WritableFormats, ", "))

			fmt.Fprintln(out, "\nCodecs:")
			for _, m := range a.codecs.Methods() {
				c, err := a.codecs.Get(m)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "- %s: %s (%d channel(s)): %s\n", m, c.Name(), c.Channels(), c.Description())
			}
			fmt.Fprintf(out, "- %s: homoglyph text codec, see 'stegolab text'\n", codec.MethodHomoglyph)

			fmt.Fprintln(out, "\nDetectors:")
			for _, d := range registerDetectors(a.cfg.Detectors).Detectors() {
				fmt.Fprintf(out, "- %s: %s: %s\n", d.Method(), d.Name(), d.Description())
			}
			return nil
		},
	}
}
