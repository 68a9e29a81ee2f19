package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xxxbrian/qx-converter/internal/batch"
	"github.com/xxxbrian/qx-converter/internal/ci"
	"github.com/xxxbrian/qx-converter/internal/config"
	"github.com/xxxbrian/qx-converter/internal/converter"
	"github.com/xxxbrian/qx-converter/internal/publish"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert every script in the input directory",
	Example: `  qxconv convert
  qxconv convert --input QuantumultX --loon Loon/plugins --surge Surge/modules
  qxconv convert --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyConvertFlags(cmd, cfg)
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		sum, err := runConvert(cmd.Context(), cfg, dryRun, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if dryRun {
			return nil
		}
		return ci.Emit(cfg.CIOutput, ci.ChangesKey, sum.AnyChanged)
	},
}

func init() {
	convertCmd.Flags().String("input", "", "Directory of QuantumultX scripts (overrides input_dir)")
	convertCmd.Flags().String("loon", "", "Loon plugin output directory (overrides loon_dir)")
	convertCmd.Flags().String("surge", "", "Surge module output directory (overrides surge_dir)")
	convertCmd.Flags().Bool("dry-run", false, "Report what would change without writing")
	convertCmd.Flags().String("ci-output", "", "File to append has_changes to (overrides ci_output)")
	rootCmd.AddCommand(convertCmd)
}

// applyConvertFlags copies explicitly set directory flags onto c.
func applyConvertFlags(cmd *cobra.Command, c *config.Config) {
	for flag, field := range map[string]*string{
		"input":     &c.InputDir,
		"loon":      &c.LoonDir,
		"surge":     &c.SurgeDir,
		"ci-output": &c.CIOutput,
	} {
		if cmd.Flags().Changed(flag) {
			*field, _ = cmd.Flags().GetString(flag)
		}
	}
}

// runConvert performs one batch pass and prints its summary to out.
// Only an unreadable input directory or cancellation is returned as an error.
func runConvert(ctx context.Context, c *config.Config, dryRun bool, out io.Writer) (batch.Summary, error) {
	files, err := batch.ListInputs(c.InputDir, c.Extensions)
	if err != nil {
		return batch.Summary{}, err
	}

	if !dryRun {
		for _, dir := range c.OutputDirs() {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return batch.Summary{}, fmt.Errorf("%w: %s: %w", publish.ErrUnwritableOutput, dir, err)
			}
		}
	}

	runner := batch.NewRunner(batch.Options{
		Converter:  converter.NewConverter(c.ConverterOptions()),
		Saver:      publish.Writer{DryRun: dryRun},
		OutputDirs: c.OutputDirs(),
		Logger:     slog.Default(),
	})
	sum, err := runner.Run(ctx, files)
	printSummary(out, sum, dryRun)
	return sum, err
}

func printSummary(out io.Writer, sum batch.Summary, dryRun bool) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if dryRun {
		fmt.Fprintln(out, color.YellowString("DRY RUN - no files were written"))
	}
	for _, f := range sum.Files {
		if f.Err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", red("✗"), f.Path, f.Err)
			continue
		}
		for _, path := range f.Written {
			fmt.Fprintf(out, "%s %s\n", green("✓"), path)
		}
	}

	fmt.Fprintf(out, "\nProcessed %s, changed %s, failed %s, verbatim %s\n",
		cyan(sum.Processed), green(sum.Changed), red(sum.Failed), yellow(sum.Verbatim))
	if sum.AnyChanged {
		fmt.Fprintln(out, green("has_changes=true"))
	} else {
		fmt.Fprintln(out, "has_changes=false")
	}
}
