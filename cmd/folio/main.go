package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/PabloGalante/folio-chat/internal/config"
	"github.com/PabloGalante/folio-chat/internal/observability"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

// quietAnnotation marks terminal commands whose logs would interleave
// with the conversation; they only log warnings unless --verbose is set.
const quietAnnotation = "quiet-logs"

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Portfolio chat assistant",
	Long: `folio serves and drives the portfolio chat assistant.

It relays visitor questions to a chat backend (REST, Gemini or a local
mock), keeps per-session transcripts and records every dispatch.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		level, format := cfg.Log.Level, cfg.Log.Format
		if cmd.Annotations[quietAnnotation] != "" {
			level, format = "warn", "console"
		}
		if verbose {
			level = "debug"
		}

		logger, err = observability.New(level, format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		observability.SetLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: folio.yaml in . or ./config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(dispatchesCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
