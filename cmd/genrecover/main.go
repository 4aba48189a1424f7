package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"genrecover/internal/config"
	"genrecover/internal/logging"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	outputFormat string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "genrecover",
	Short: "Recover usable files from truncated code-generation output",
	Long: `genrecover triages model responses that were cut short by a timeout,
a token limit or broken formatting.

It decides whether generation should continue, which files can be trusted,
which must be regenerated, and salvages what it can from raw text when no
structured parse succeeds.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
			cfg.Logging.DebugMode = true
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if outputFormat != "json" && outputFormat != "text" {
			return fmt.Errorf("unknown --format %q (want json or text)", outputFormat)
		}

		logger, err = logging.Initialize(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "genrecover.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "Output format: json or text")

	analyzeCmd.Flags().StringVar(&planPath, "plan", "", "File plan (YAML or JSON)")
	analyzeCmd.Flags().StringVar(&filesPath, "files", "", "Current file tree: a directory or a JSON path->content map")
	analyzeCmd.Flags().BoolVar(&emergencyFallback, "emergency-fallback", false, "Run raw-text extraction when analysis yields nothing")
	analyzeCmd.Flags().StringVarP(&outDir, "out", "o", "", "Write recovered files under this directory")

	extractCmd.Flags().BoolVar(&forceExtract, "force", false, "Extract even from buffers below the size minimum")
	extractCmd.Flags().StringVarP(&outDir, "out", "o", "", "Write recovered files under this directory")

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides server.listen_addr)")

	watchCmd.Flags().StringVar(&planPath, "plan", "", "File plan (YAML or JSON)")
	watchCmd.Flags().StringVarP(&outDir, "out", "o", "", "Write recovered files under this directory")
	watchCmd.Flags().BoolVar(&watchServe, "serve", false, "Also run the HTTP service")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
