// qxconv converts QuantumultX rewrite scripts into Loon plugins and
// Surge modules.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xxxbrian/qx-converter/internal/config"
)

var (
	configPath  string
	verboseFlag bool

	// cfg is loaded once in PersistentPreRunE and read by every subcommand.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "qxconv",
	Short: "Convert QuantumultX rewrite scripts to Loon and Surge",
	Long: `qxconv scans a directory of QuantumultX rewrite scripts and writes one
Loon .plugin and one Surge .sgmodule per script. Files are only rewritten
when their content changes, and the result is reported to CI as has_changes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		setupLogger(verboseFlag)

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./"+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

func setupLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
