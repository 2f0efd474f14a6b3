// Package cli contains the kanakanji commands.
package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"kanakanji/config"
	"kanakanji/converter"
	"kanakanji/logger"
	"kanakanji/metrics"
)

// app is the state shared by the commands of one invocation.
type app struct {
	envFile     string
	logLevel    string
	optionsFile string

	cfg  *config.Config
	opts converter.Options

	metricsSrv *http.Server
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "kanakanji",
		Short: "Kana to kanji conversion engine",
		Long: `kanakanji converts kana readings into ranked kanji candidates.

Example usage:
  kanakanji run はがいたい                  # One-shot conversion
  kanakanji run --style roman kanji       # Romaji input
  kanakanji session                       # Interactive typing session
  kanakanji train corpus.txt -o lm -n 5   # Train an n-gram model
  kanakanji dict build entries.tsv -o dict`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.init() },
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown()
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "environment file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides KANAKANJI_LOG_LEVEL)")
	root.PersistentFlags().StringVar(&a.optionsFile, "options", "", "YAML conversion options file")

	root.AddCommand(
		newTrainCommand(a),
		newInferCommand(a),
		newSessionCommand(a),
		newRunCommand(a),
		newDictCommand(a),
		newTableCommand(a),
		newEvaluateCommand(a),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) init() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	logger.Init(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel})
	a.cfg = cfg

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	if a.optionsFile != "" {
		if opts, err = config.LoadOptions(a.optionsFile, opts); err != nil {
			return err
		}
	}
	a.opts = opts

	if cfg.MetricsAddr != "" {
		a.metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server stopped")
			}
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (a *app) shutdown() error {
	if a.metricsSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.metricsSrv.Shutdown(ctx)
}
