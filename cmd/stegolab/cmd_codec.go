package main

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/codec/bitplane"
	"github.com/thvl3/stegolab/pkg/codec/cdb"
	"github.com/thvl3/stegolab/pkg/codec/pairwise"
	"github.com/thvl3/stegolab/pkg/filehandler"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/models"
	"github.com/thvl3/stegolab/pkg/quality"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

// paramsSuffix names the sidecar written next to a stego image
const paramsSuffix = ".params.yaml"

// loadGrid decodes an image file into a grid with the requested channel count
func loadGrid(path string, channels int) (*grid.Grid, string, error) {
	img, format, err := filehandler.LoadImage(path)
	if err != nil {
		return nil, "", err
	}
	g, err := grid.FromImage(img, channels)
	if err != nil {
		return nil, "", fmt.Errorf("failed to convert %s: %w", path, err)
	}
	return g, format, nil
}

// readPayload takes the payload from --message or, failing that, from --payload
func readPayload(message, payloadFile string) ([]byte, error) {
	switch {
	case message != "" && payloadFile != "":
		return nil, errors.New("use either --message or --payload, not both")
	case message != "":
		return []byte(message), nil
	case payloadFile != "":
		return filehandler.ReadFileBytes(payloadFile)
	}
	return nil, errors.New("a payload is required (--message or --payload)")
}

// embedFlags are the codec parameters accepted on the command line
type embedFlags struct {
	plane int
	coeff float64
	rng   int
	seed  int64
}

func (f *embedFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.plane, "plane", 0, "Bit plane for the bitplane codec (0 = LSB)")
	cmd.Flags().Float64Var(&f.coeff, "coeff", 0, "CDB embedding strength")
	cmd.Flags().IntVar(&f.rng, "range", 0, "CDB predictor half-window")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "CDB site seed")
}

// params builds the codec parameters from the config defaults and any changed flags
func (a *app) params(cmd *cobra.Command, method codec.Method, f embedFlags) (codec.Params, error) {
	changed := cmd.Flags().Changed
	switch method {
	case codec.MethodBitPlane:
		p := codec.BitPlaneParams{Plane: a.cfg.Codecs.BitPlane.Plane}
		if changed("plane") {
			p.Plane = f.plane
		}
		return p, nil
	case codec.MethodPairwise:
		return codec.PairwiseParams{}, nil
	case codec.MethodCDB:
		p := codec.CDBParams{
			Coeff: a.cfg.Codecs.CDB.Coeff,
			Range: a.cfg.Codecs.CDB.Range,
			Seed:  a.cfg.Codecs.CDB.Seed,
		}
		if changed("coeff") {
			p.Coeff = f.coeff
		}
		if changed("range") {
			p.Range = f.rng
		}
		if changed("seed") {
			p.Seed = f.seed
		}
		return p, nil
	case codec.MethodIMNP:
		return codec.IMNPParams{}, nil
	case codec.MethodHomoglyph:
		return nil, errors.New("homoglyph works on text: use 'stegolab text embed'")
	}
	return nil, fmt.Errorf("%q: %w", method, stegerr.ErrUnknownMethod)
}

// imageCodec resolves a method name to a registered image codec
func (a *app) imageCodec(name string) (codec.Codec, codec.Method, error) {
	method, err := codec.ParseMethod(name)
	if err != nil {
		return nil, "", err
	}
	if method == codec.MethodHomoglyph {
		return nil, "", errors.New("homoglyph works on text: use 'stegolab text'")
	}
	c, err := a.codecs.Get(method)
	if err != nil {
		return nil, "", err
	}
	return c, method, nil
}

func newEmbedCmd(a *app) *cobra.Command {
	var (
		method, in, output   string
		message, payloadFile string
		paramsFile           string
		flags                embedFlags
		verify               bool
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Hide a payload in an image",
		Example: `  stegolab embed --method bitplane --in cover.png --out stego.png --message "hello"
  stegolab embed --method cdb --in cover.png --out marked.png --payload mark.bin --coeff 0.5 --verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, m, err := a.imageCodec(method)
			if err != nil {
				return err
			}
			payload, err := readPayload(message, payloadFile)
			if err != nil {
				return err
			}
			params, err := a.params(cmd, m, flags)
			if err != nil {
				return err
			}

			g, format, err := loadGrid(in, c.Channels())
			if err != nil {
				return err
			}
			if filehandler.IsLossy(format) {
				printWarning("%s is a lossy %s file; the decoded pixels are used as the cover", in, format)
			}

			capacity, err := c.Capacity(g, payload, params)
			if err != nil {
				return err
			}
			printInfo("Cover %s: %dx%d %s, capacity %d bits, payload %d bits", in, g.Width, g.Height, format, capacity, len(payload)*8)

			stego, used, err := c.Embed(g, payload, params)
			if err != nil {
				return fmt.Errorf("failed to embed with %s: %w", m, err)
			}
			if err := filehandler.SaveImage(output, stego.ToImage()); err != nil {
				return err
			}

			if paramsFile == "" {
				paramsFile = output + paramsSuffix
			}
			if err := codec.SaveParams(paramsFile, used); err != nil {
				return err
			}

			psnr, err := quality.PSNR(g, stego)
			if err != nil {
				return err
			}
			res := models.EmbedResult{
				Method:       string(m),
				Input:        in,
				Output:       output,
				ParamsFile:   paramsFile,
				PayloadBytes: len(payload),
				CapacityBits: capacity,
				PSNR:         psnr,
			}
			if verify {
				ber, err := verifyEmbed(c, output, payload, used)
				if err != nil {
					return err
				}
				res.Verified = true
				res.BitErrorRate = ber
			}
			a.logger.Debug().Interface("result", res).Msg("embedded")

			printSuccess("Embedded %d bytes with %s into %s", res.PayloadBytes, c.Name(), res.Output)
			printInfo("Parameters saved to %s", res.ParamsFile)
			printInfo("PSNR: %s", formatPSNR(res.PSNR))
			if res.Verified {
				if res.BitErrorRate == 0 {
					printSuccess("Verified: payload recovered from %s without bit errors", res.Output)
				} else {
					printWarning("Verified: bit error rate %.2f%% over %d bits", 100*res.BitErrorRate, len(payload)*8)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", string(codec.MethodBitPlane), "Codec: bitplane, pairwise, cdb, imnp")
	cmd.Flags().StringVarP(&in, "in", "i", "", "Cover image")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Stego image (png, bmp, tiff or pgm)")
	cmd.Flags().StringVar(&message, "message", "", "Payload text")
	cmd.Flags().StringVar(&payloadFile, "payload", "", "Payload file")
	cmd.Flags().StringVar(&paramsFile, "params", "", "Parameter sidecar (default <out>"+paramsSuffix+")")
	cmd.Flags().BoolVar(&verify, "verify", false, "Re-read the written image, extract and report the bit error rate")
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// verifyEmbed decodes the written stego file, extracts with the embedding parameters and
// compares the result against the payload
func verifyEmbed(c codec.Codec, path string, payload []byte, params codec.Params) (float64, error) {
	g, _, err := loadGrid(path, c.Channels())
	if err != nil {
		return 0, err
	}
	got, err := c.Extract(g, params)
	if err != nil && !errors.Is(err, stegerr.ErrUnderrun) && !errors.Is(err, stegerr.ErrIncompleteTerminator) {
		return 0, fmt.Errorf("failed to verify %s: %w", path, err)
	}
	return cdb.BitErrorRate(payload, got), nil
}

func newExtractCmd(a *app) *cobra.Command {
	var (
		in, paramsFile, output, method string
		maxBytes                       int
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Recover a payload from a stego image",
		Example: `  stegolab extract --in stego.png
  stegolab extract --in stego.png --method pairwise --max-bytes 64 --out secret.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if paramsFile == "" {
				paramsFile = in + paramsSuffix
			}
			params, err := codec.LoadParams(paramsFile)
			if err != nil {
				// pairwise is self-delimiting and can be read without a sidecar
				if method != string(codec.MethodPairwise) {
					return err
				}
				printWarning("No parameter file, reading pairwise flags directly")
				params = codec.PairwiseParams{}
			}
			if p, ok := params.(codec.PairwiseParams); ok && cmd.Flags().Changed("max-bytes") {
				p.MaxBytes = maxBytes
				params = p
			}

			c, m, err := a.imageCodec(string(params.Method()))
			if err != nil {
				return err
			}
			g, format, err := loadGrid(in, c.Channels())
			if err != nil {
				return err
			}

			data, err := c.Extract(g, params)
			partial := errors.Is(err, stegerr.ErrUnderrun) || errors.Is(err, stegerr.ErrIncompleteTerminator)
			if err != nil && !partial {
				return fmt.Errorf("failed to extract with %s: %w", m, err)
			}

			res := models.NewExtractionResult(string(m), format, data)
			if partial {
				res.Warning = err.Error()
				printWarning("Partial payload: %v", err)
			}
			if output != "" {
				if err := filehandler.SaveFile(data, output); err != nil {
					return err
				}
				res.OutputFiles = append(res.OutputFiles, output)
			}
			a.logger.Debug().Str("method", res.Algorithm).Int("bytes", res.DataSize).Str("mime", res.MimeType).Msg("extracted")

			if !res.Success {
				printWarning("No payload recovered")
				return nil
			}
			printSuccess("Recovered %d bytes of %s data (%s)", res.DataSize, res.DataType, res.MimeType)
			if res.DataType == "text" {
				fmt.Fprintln(out, string(res.ExtractedData))
			} else {
				fmt.Fprintf(out, "%x\n", preview(res.ExtractedData, 64))
			}
			for _, f := range res.OutputFiles {
				printInfo("Saved to %s", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "Stego image")
	cmd.Flags().StringVar(&paramsFile, "params", "", "Parameter sidecar (default <in>"+paramsSuffix+")")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Write the payload to this file")
	cmd.Flags().StringVarP(&method, "method", "m", "", "Codec to assume when there is no sidecar (pairwise only)")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", 0, "Stop pairwise extraction after this many bytes")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func preview(data []byte, n int) []byte {
	if len(data) > n {
		return data[:n]
	}
	return data
}

func newCapacityCmd(a *app) *cobra.Command {
	var (
		method, in, message string
		flags               embedFlags
	)

	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Report how many payload bits an image can hold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, m, err := a.imageCodec(method)
			if err != nil {
				return err
			}
			params, err := a.params(cmd, m, flags)
			if err != nil {
				return err
			}
			g, _, err := loadGrid(in, c.Channels())
			if err != nil {
				return err
			}

			bitsAvail, err := c.Capacity(g, []byte(message), params)
			if err != nil {
				return err
			}
			if m == codec.MethodPairwise {
				groups := pairwise.GroupCapacity(g, []byte(message))
				printInfo("%s: %d of the 2-bit groups needed for %q fit (%d bits)", c.Name(), groups, message, bitsAvail)
				return nil
			}
			printInfo("%s: %d bits (%d bytes) in %dx%d", c.Name(), bitsAvail, bitsAvail/8, g.Width, g.Height)
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", string(codec.MethodBitPlane), "Codec: bitplane, pairwise, cdb, imnp")
	cmd.Flags().StringVarP(&in, "in", "i", "", "Cover image")
	cmd.Flags().StringVar(&message, "message", "", "Payload to test against (pairwise capacity depends on it)")
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newPlanesCmd(_ *app) *cobra.Command {
	var (
		in, outDir, channel string
		plane               int
	)

	cmd := &cobra.Command{
		Use:   "planes",
		Short: "Render bit planes of an image as black and white images",
		Example: `  stegolab planes --in cover.png --outdir planes
  stegolab planes --in cover.png --channel b --plane 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))

			var g *grid.Grid
			if channel == "" {
				gray, _, err := loadGrid(in, grid.Gray)
				if err != nil {
					return err
				}
				g = gray
			} else {
				c := strings.Index("rgb", strings.ToLower(channel))
				if len(channel) != 1 || c < 0 {
					return fmt.Errorf("channel %q must be r, g or b: %w", channel, stegerr.ErrInvalidParams)
				}
				rgb, _, err := loadGrid(in, grid.RGB)
				if err != nil {
					return err
				}
				if g, err = rgb.Plane(c); err != nil {
					return err
				}
				base += "_" + strings.ToLower(channel)
			}

			planes := []int{plane}
			if plane < 0 {
				planes = []int{0, 1, 2, 3, 4, 5, 6, 7}
			}
			for _, p := range planes {
				rendered, err := bitplane.Render(g, p)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, fmt.Sprintf("%s_plane%d.png", base, p))
				if err := filehandler.SaveImage(path, rendered.ToImage()); err != nil {
					return err
				}
				printSuccess("Plane %d saved to %s", p, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "Image to decompose")
	cmd.Flags().StringVar(&outDir, "outdir", ".", "Directory for the rendered planes")
	cmd.Flags().IntVar(&plane, "plane", -1, "Single plane to render (default all)")
	cmd.Flags().StringVar(&channel, "channel", "", "Render one colour channel (r, g or b) instead of the luma")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func formatPSNR(v float64) string {
	if math.IsInf(v, 1) {
		return "inf dB (identical)"
	}
	return fmt.Sprintf("%.2f dB", v)
}

func newPSNRCmd(_ *app) *cobra.Command {
	var rgb bool

	cmd := &cobra.Command{
		Use:   "psnr <original> <modified>",
		Short: "Compare two images by MSE and PSNR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channels := grid.Gray
			if rgb {
				channels = grid.RGB
			}
			a, _, err := loadGrid(args[0], channels)
			if err != nil {
				return err
			}
			b, _, err := loadGrid(args[1], channels)
			if err != nil {
				return err
			}

			mse, err := quality.MSE(a, b)
			if err != nil {
				return err
			}
			psnr, err := quality.PSNR(a, b)
			if err != nil {
				return err
			}
			printInfo("MSE: %.4f", mse)
			printInfo("PSNR: %s", formatPSNR(psnr))
			return nil
		},
	}

	cmd.Flags().BoolVar(&rgb, "rgb", false, "Compare all three colour channels instead of luma")
	return cmd
}
