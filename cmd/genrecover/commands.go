package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"genrecover/internal/articulation"
	"genrecover/internal/emergency"
	"genrecover/internal/metrics"
	"genrecover/internal/recovery"
	"genrecover/internal/server"
	"genrecover/internal/watch"
)

var (
	planPath          string
	filesPath         string
	outDir            string
	emergencyFallback bool
	forceExtract      bool
	listenAddr        string
	watchServe        bool
)

// analyzeCmd runs the decision engine over a saved response
var analyzeCmd = &cobra.Command{
	Use:   "analyze <buffer-file|->",
	Short: "Classify a possibly truncated response",
	Long: `Runs the recovery decision engine over a response buffer and prints the
resulting action: continuation, success, partial or none.

Example:
  genrecover analyze response.txt --plan plan.yaml --files ./project`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

// extractCmd runs raw-text extraction
var extractCmd = &cobra.Command{
	Use:   "extract <buffer-file|->",
	Short: "Recover files from raw text with no structured envelope",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

// serveCmd runs the HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analysis over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// watchCmd analyzes buffers in a spool directory when they stall
var watchCmd = &cobra.Command{
	Use:   "watch <spool-dir>",
	Short: "Analyze response buffers when they stop growing",
	Long: `Watches a spool directory of streamed response buffers. When a buffer has
been quiet for watch.stall_after, or a "<buffer>.done" marker appears, the
buffer is analyzed and the result printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.Name, cfg.Version)
	},
}

func newEngine() *recovery.Engine {
	return recovery.NewEngine(articulation.NewFileExtractor(), cfg.Recovery)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	buffer, err := readBuffer(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	plan, err := loadPlan(planPath)
	if err != nil {
		return err
	}
	current, err := loadCurrentFiles(filesPath)
	if err != nil {
		return err
	}

	result := newEngine().Analyze(buffer, current, plan)
	metrics.RecordAnalysis(string(result.Action), len(buffer), result.RecoveredCount)
	logger.Debug("analysis complete",
		zap.String("action", string(result.Action)),
		zap.Int("bytes", len(buffer)),
		zap.Int("recovered", result.RecoveredCount))

	if result.Action == recovery.ActionNone && emergencyFallback {
		res := emergency.NewExtractor(cfg.Emergency).ExtractDetailed(buffer, false)
		metrics.RecordEmergencyExtraction(len(buffer), len(res.Files))
		if len(res.Files) > 0 {
			logger.Info("emergency extraction recovered files", zap.String("method", res.Method), zap.Int("files", len(res.Files)))
			if err := writeOut(res.Files); err != nil {
				return err
			}
			return renderExtraction(cmd.OutOrStdout(), outputFormat, res)
		}
	}

	if err := writeOut(resultFiles(result)); err != nil {
		return err
	}
	return renderResult(cmd.OutOrStdout(), outputFormat, result, current)
}

func runExtract(cmd *cobra.Command, args []string) error {
	buffer, err := readBuffer(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}

	res := emergency.NewExtractor(cfg.Emergency).ExtractDetailed(buffer, forceExtract)
	metrics.RecordEmergencyExtraction(len(buffer), len(res.Files))

	if err := writeOut(res.Files); err != nil {
		return err
	}
	return renderExtraction(cmd.OutOrStdout(), outputFormat, res)
}

func runServe(cmd *cobra.Command, args []string) error {
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, newEngine(), emergency.NewExtractor(cfg.Emergency))
	logger.Info("starting server", zap.String("addr", cfg.Server.ListenAddr))
	return srv.Run(ctx)
}

func runWatch(cmd *cobra.Command, args []string) error {
	plan, err := loadPlan(planPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := newEngine()
	out := cmd.OutOrStdout()

	w, err := watch.New(args[0], cfg, func(ctx context.Context, t watch.Trigger) {
		result := engine.Analyze(t.Buffer, nil, plan)
		metrics.RecordAnalysis(string(result.Action), len(t.Buffer), result.RecoveredCount)
		logger.Info("buffer analyzed",
			zap.String("path", t.Path),
			zap.String("reason", t.Reason),
			zap.String("action", string(result.Action)))
		if err := writeOut(resultFiles(result)); err != nil {
			logger.Error("write recovered files", zap.Error(err))
		}
		if err := renderResult(out, outputFormat, result, nil); err != nil {
			logger.Error("render result", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		w.Stop()
		return nil
	})

	if watchServe {
		srv := server.New(cfg, engine, emergency.NewExtractor(cfg.Emergency))
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	return g.Wait()
}

// resultFiles returns the files a result hands to the caller.
func resultFiles(result recovery.RecoveryResult) map[string]string {
	if result.GoodFiles != nil {
		return result.GoodFiles
	}
	return result.Files
}

func writeOut(files map[string]string) error {
	if outDir == "" || len(files) == 0 {
		return nil
	}
	return writeFiles(outDir, files)
}
