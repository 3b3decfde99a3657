package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thvl3/stegolab/pkg/codec"
	"github.com/thvl3/stegolab/pkg/filehandler"
	"github.com/thvl3/stegolab/pkg/models"
	"github.com/thvl3/stegolab/pkg/stegerr"
	"github.com/thvl3/stegolab/pkg/text/homoglyph"
)

// readText takes the cover text from --text or from the file given with --in
func readText(text, path string) (string, error) {
	switch {
	case text != "" && path != "":
		return "", errors.New("use either --text or --in, not both")
	case text != "":
		return text, nil
	case path != "":
		data, err := filehandler.ReadFileBytes(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", errors.New("a cover text is required (--text or --in)")
}

func newTextCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Hide payloads in text with look-alike Unicode letters",
	}
	cmd.AddCommand(newTextEmbedCmd(a), newTextExtractCmd(a), newTextCapacityCmd(a))
	return cmd
}

func newTextEmbedCmd(a *app) *cobra.Command {
	var (
		text, in, output     string
		message, payloadFile string
		paramsFile           string
		seed                 int64
	)

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Hide a payload in a text",
		Example: `  stegolab text embed --in letter.txt --message "hi" --out letter_stego.txt
  stegolab text embed --text "$(cat poem.txt)" --message "hi" --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cover, err := readText(text, in)
			if err != nil {
				return err
			}
			payload, err := readPayload(message, payloadFile)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				if seed, err = homoglyph.NewSeed(); err != nil {
					return err
				}
			}

			stego, params, err := homoglyph.Embed(cover, payload, seed)
			if err != nil {
				return fmt.Errorf("failed to embed: %w", err)
			}
			printInfo("Cover holds %d carrier letters, payload needs %d", homoglyph.Capacity(cover), len(payload)*8)

			if output == "" {
				fmt.Fprintln(out, stego)
			} else {
				if err := filehandler.SaveFile([]byte(stego), output); err != nil {
					return err
				}
				printSuccess("Stego text written to %s", output)
				if paramsFile == "" {
					paramsFile = output + paramsSuffix
				}
			}
			if paramsFile != "" {
				if err := codec.SaveParams(paramsFile, params); err != nil {
					return err
				}
				printInfo("Parameters saved to %s", paramsFile)
			}
			a.logger.Debug().Int64("seed", params.Seed).Int("bytes", params.ByteLength).Msg("text embedded")
			printSuccess("Seed %d, length %d bytes: keep both to extract", params.Seed, params.ByteLength)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Cover text")
	cmd.Flags().StringVarP(&in, "in", "i", "", "Cover text file")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Write the stego text here instead of stdout")
	cmd.Flags().StringVar(&message, "message", "", "Payload text")
	cmd.Flags().StringVar(&payloadFile, "payload", "", "Payload file")
	cmd.Flags().StringVar(&paramsFile, "params", "", "Parameter sidecar (default <out>"+paramsSuffix+" when --out is set)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Walk seed (default random)")
	return cmd
}

func newTextExtractCmd(a *app) *cobra.Command {
	var (
		text, in, output, paramsFile string
		seed                         int64
		length                       int
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Recover a payload from a text",
		Example: `  stegolab text extract --in letter_stego.txt
  stegolab text extract --in letter_stego.txt --seed 42 --length 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stego, err := readText(text, in)
			if err != nil {
				return err
			}

			explicit := cmd.Flags().Changed("seed") && cmd.Flags().Changed("length")
			if !explicit {
				if paramsFile == "" && in != "" {
					paramsFile = in + paramsSuffix
				}
				if paramsFile == "" {
					return errors.New("give --seed and --length, or a parameter file")
				}
				loaded, err := codec.LoadParams(paramsFile)
				if err != nil {
					return err
				}
				p, err := codec.ParamsAs[codec.HomoglyphParams](codec.MethodHomoglyph, loaded)
				if err != nil {
					return err
				}
				seed, length = p.Seed, p.ByteLength
			}

			data, err := homoglyph.Extract(stego, seed, length)
			res := models.NewExtractionResult(string(codec.MethodHomoglyph), "text", data)
			if err != nil {
				if !errors.Is(err, stegerr.ErrUnderrun) {
					return err
				}
				res.Warning = err.Error()
				printWarning("Partial payload: %v", err)
			}
			if output != "" {
				if err := filehandler.SaveFile(data, output); err != nil {
					return err
				}
				res.OutputFiles = append(res.OutputFiles, output)
				printInfo("Saved to %s", output)
			}
			a.logger.Debug().Int("bytes", res.DataSize).Msg("text extracted")

			printSuccess("Recovered %d bytes of %s data", res.DataSize, res.DataType)
			if res.DataType == "text" {
				fmt.Fprintln(out, string(data))
			} else {
				fmt.Fprintf(out, "%x\n", preview(data, 64))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Stego text")
	cmd.Flags().StringVarP(&in, "in", "i", "", "Stego text file")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Write the payload to this file")
	cmd.Flags().StringVar(&paramsFile, "params", "", "Parameter sidecar (default <in>"+paramsSuffix+")")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Walk seed")
	cmd.Flags().IntVar(&length, "length", 0, "Payload length in bytes")
	return cmd
}

func newTextCapacityCmd(_ *app) *cobra.Command {
	var text, in string

	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Count the letters of a text that can carry a bit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cover, err := readText(text, in)
			if err != nil {
				return err
			}
			n := homoglyph.Capacity(cover)
			printInfo("%d carrier letters: up to %d payload bytes", n, n/8)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Cover text")
	cmd.Flags().StringVarP(&in, "in", "i", "", "Cover text file")
	return cmd
}

func newGlyphsCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "glyphs",
		Short: "List the letter substitution table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range homoglyph.Table() {
				fmt.Fprintf(out, "%c  %c  U+%04X  %s\n", p.Plain, p.Glyph, p.Glyph, p.GlyphName())
			}
			return nil
		},
	}
}
