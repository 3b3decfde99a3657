package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thvl3/stegolab/pkg/analyzer/lsb"
	"github.com/thvl3/stegolab/pkg/grid"
	"github.com/thvl3/stegolab/pkg/probe"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		in, outdir string
		planes     []int
		top        int
		maxBytes   int
		gray       bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Look for an unkeyed payload in the low bit planes of an image",
		Long: `probe prints the LSB distribution of every channel, then reads bit planes in raster
order without any parameter file and ranks the resulting byte streams by file signature, text
quality and entropy.`,
		Example: `  stegolab probe --in suspect.png
  stegolab probe --in suspect.bmp --planes 0,1,2 --outdir extracted`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			channels := grid.RGB
			if gray {
				channels = grid.Gray
			}
			g, format, err := loadGrid(in, channels)
			if err != nil {
				return err
			}
			printInfo("Probing %s (%s, %dx%d)", in, format, g.Width, g.Height)

			dist, err := lsb.AnalyzeDistribution(g)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "LSB distribution: entropy %.4f, anomaly %.2f, confidence %.2f\n",
				dist.Entropy, dist.AnomalyScore, dist.Confidence)
			for _, name := range []string{"Y", "R", "G", "B"} {
				if e, ok := dist.ChannelStats[name]; ok {
					fmt.Fprintf(out, "  %s: entropy %.4f, zeros %.1f%%\n", name, e, 100*dist.ChannelStats[name+"_zeros"])
				}
			}

			candidates, err := probe.Probe(g, probe.Options{Planes: planes, MaxBytes: maxBytes})
			if err != nil {
				return err
			}
			a.logger.Debug().Int("candidates", len(candidates)).Msg("probe finished")

			shown := 0
			for _, c := range candidates {
				if shown == top || c.Score <= 0 {
					break
				}
				shown++
				kind := c.FileType
				if kind == "" {
					kind = "data"
				}
				fmt.Fprintf(out, "%-12s score %.2f  %5d bytes  %-4s text %.2f  entropy %.2f\n",
					c.Method, c.Score, len(c.Data), kind, c.TextQuality, c.Entropy)
				if c.TextQuality > 0.7 {
					fmt.Fprintf(out, "             %q\n", preview(c.Data, 64))
				}
			}
			if shown == 0 {
				printWarning("No bit plane looks like a payload")
				return nil
			}

			if outdir != "" {
				res, err := probe.Save(candidates[0], outdir)
				if err != nil {
					return err
				}
				printSuccess("Best candidate (%s, %s) saved to %s", candidates[0].Method, res.MimeType, res.OutputFiles[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "Image to probe")
	cmd.Flags().StringVar(&outdir, "outdir", "", "Save the best candidate into this directory")
	cmd.Flags().IntSliceVar(&planes, "planes", []int{0, 1}, "Bit planes to read")
	cmd.Flags().IntVar(&top, "top", 5, "Number of candidates to list")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", probe.DefaultMaxBytes, "Bytes to read per stream")
	cmd.Flags().BoolVar(&gray, "gray", false, "Probe the luma plane only")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
