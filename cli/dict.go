package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kanakanji/apperr"
	"kanakanji/dictionary"
	"kanakanji/ingest"
	"kanakanji/kanji"
	"kanakanji/logger"
	"kanakanji/tokenize"
)

func newDictCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Build and check dictionary resource directories",
	}
	cmd.AddCommand(newDictBuildCommand(), newDictCheckCommand())
	return cmd
}

func newDictBuildCommand() *cobra.Command {
	var (
		outDir     string
		connection string
		kanjidic   string
		corpus     string
		sysdict    string
	)
	cmd := &cobra.Command{
		Use:   "build [entries.tsv]",
		Short: "Build a dictionary directory",
		Long: `Build a dictionary directory from an entries TSV, a tokenized corpus or both.

Examples:
  kanakanji dict build entries.tsv --connection connection.tsv -o dict
  kanakanji dict build --corpus corpus.txt --sysdict uni -o dict
  kanakanji dict build entries.tsv --kanjidic kanjidic2.xml -o dict`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const op = "dict build"
			if len(args) == 0 && corpus == "" {
				return apperr.Errorf(apperr.InvalidArgument, op, "need an entries file or --corpus")
			}
			b := dictionary.NewBuilder()
			if corpus != "" {
				tok, err := tokenize.New(sysdict)
				if err != nil {
					return err
				}
				f, err := os.Open(corpus)
				if err != nil {
					return apperr.New(apperr.TrainingIOFailure, op, err)
				}
				defer f.Close()
				sentences, errs := ingest.Stream(cmd.Context(), f)
				if b, err = dictionary.BuildFromCorpus(cmd.Context(), tok, sentences); err != nil {
					return err
				}
				if err := <-errs; err != nil {
					return apperr.New(apperr.TrainingIOFailure, op, err)
				}
				logger.Info().Int("entries", b.Len()).Str("sysdict", tok.Name()).Msg("corpus tokenized")
			}
			if len(args) == 1 {
				if err := readInto(b.ReadTSV, args[0]); err != nil {
					return err
				}
			}
			if connection != "" {
				if err := readInto(b.ReadConnectionTSV, connection); err != nil {
					return err
				}
			}
			if kanjidic != "" {
				readings, err := kanji.LoadKanjidic2(kanjidic)
				if err != nil {
					return err
				}
				b.AddKanjidic(readings)
			}

			m, err := b.Write(outDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries in %d shards, max reading %d\n",
				outDir, m.Entries, len(m.Shards), m.MaxReadingLength)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "dict", "output directory")
	cmd.Flags().StringVar(&connection, "connection", "", "connection cost TSV")
	cmd.Flags().StringVar(&kanjidic, "kanjidic", "", "KANJIDIC2 XML for single-kanji entries")
	cmd.Flags().StringVar(&corpus, "corpus", "", "corpus to tokenize into entries")
	cmd.Flags().StringVar(&sysdict, "sysdict", "ipa", "tokenizer dictionary: ipa or uni")
	return cmd
}

func readInto(read func(io.Reader) error, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return apperr.New(apperr.LoadFailure, "dict build", err)
	}
	defer f.Close()
	return read(f)
}

func newDictCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <dir>",
		Short: "Load every shard of a dictionary directory and verify checksums",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dictionary.Load(cmd.Context(), args[0], dictionary.Options{Preload: true})
			if err != nil {
				return err
			}
			m := store.Manifest()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, format %s, %d entries in %d shards, connection %v\n",
				args[0], m.Format, m.Entries, len(m.Shards), m.Connection != nil)
			return nil
		},
	}
}
