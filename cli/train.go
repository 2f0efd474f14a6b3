package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"kanakanji/apperr"
	"kanakanji/logger"
	"kanakanji/ngram"
)

func newTrainCommand(a *app) *cobra.Command {
	var (
		outDir  string
		pattern string
		resume  string
		n       int
		d       float64
	)
	cmd := &cobra.Command{
		Use:   "train <corpus>",
		Short: "Train a character n-gram model",
		Long: `Train a character n-gram model from a corpus with one sentence per line.

Examples:
  kanakanji train corpus.txt -o lm -n 5
  kanakanji train more.txt -o lm2 --resume lm/lm   # continue from a snapshot`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			t, err := ngram.NewTrainer(n, d)
			if err != nil {
				return err
			}
			if resume != "" {
				if err := t.Resume(resume); err != nil {
					return err
				}
				logger.Info().Str("pattern", resume).Msg("resumed")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return apperr.New(apperr.TrainingIOFailure, "train", err)
			}
			defer f.Close()
			added, err := t.Train(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := filepath.Join(outDir, pattern)
			if err := t.Save(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trained %d sentences, n=%d, d=%g in %s\n",
				added, t.Order(), t.Discount(), time.Since(start).Round(time.Millisecond))
			for _, file := range ngram.Files(out) {
				fmt.Fprintln(cmd.OutOrStdout(), file)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	cmd.Flags().StringVar(&pattern, "pattern", "lm", "snapshot file name pattern")
	cmd.Flags().StringVar(&resume, "resume", "", "snapshot pattern to continue from")
	cmd.Flags().IntVarP(&n, "order", "n", 5, "n-gram order")
	cmd.Flags().Float64VarP(&d, "discount", "d", 0.75, "absolute discount")
	return cmd
}

func newInferCommand(a *app) *cobra.Command {
	var (
		another string
		alpha   float64
		prompt  string
		length  int
		gen     ngram.GenerateOptions
	)
	cmd := &cobra.Command{
		Use:   "infer <lm-pattern>",
		Short: "Generate text from an n-gram model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ngram.Load(args[0])
			if err != nil {
				return err
			}
			var s ngram.Scorer = base
			if another != "" {
				personal, err := ngram.Load(another)
				if err != nil {
					return err
				}
				if personal.Order() != base.Order() {
					logger.Warn().Int("base", base.Order()).Int("another", personal.Order()).Msg("model orders differ")
				}
				s = ngram.Blend{Base: base, Personal: personal, Alpha: alpha}
			}
			gen.MaxTokens = length
			g, err := ngram.Generate(cmd.Context(), s, prompt, gen)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), g.Text)
			fmt.Fprintf(cmd.OutOrStdout(), "elapsed: %s\n", g.Elapsed.Round(time.Microsecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&another, "another-lm", "", "second model pattern to blend in")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.5, "weight of the second model")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "text to continue")
	cmd.Flags().IntVarP(&length, "length", "l", 100, "maximum number of generated tokens")
	cmd.Flags().BoolVar(&gen.Sample, "sample", false, "sample instead of greedy decoding")
	cmd.Flags().Float64Var(&gen.Temperature, "temperature", 1, "sampling temperature")
	cmd.Flags().Uint64Var(&gen.Seed, "seed", 0, "sampling seed")
	return cmd
}
