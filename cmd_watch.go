package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xxxbrian/qx-converter/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Convert on every change to the input directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyConvertFlags(cmd, cfg)
		out := cmd.OutOrStdout()

		if _, err := runConvert(cmd.Context(), cfg, false, out); err != nil {
			return err
		}

		w := watch.NewWatcher(cfg.InputDir, cfg.Extensions, cfg.Watch.Debounce, slog.Default())
		return w.Run(cmd.Context(), func(ctx context.Context) error {
			_, err := runConvert(ctx, cfg, false, out)
			return err
		})
	},
}

func init() {
	watchCmd.Flags().String("input", "", "Directory of QuantumultX scripts (overrides input_dir)")
	watchCmd.Flags().String("loon", "", "Loon plugin output directory (overrides loon_dir)")
	watchCmd.Flags().String("surge", "", "Surge module output directory (overrides surge_dir)")
	rootCmd.AddCommand(watchCmd)
}
