package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kanakanji/apperr"
	"kanakanji/converter"
	"kanakanji/evaluate"
	"kanakanji/inputstyle"
	"kanakanji/tokenize"
)

func newTableCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Check and export input tables",
	}
	check := &cobra.Command{
		Use:   "check <file>",
		Short: "Report every format problem of a table file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return apperr.New(apperr.LoadFailure, "table check", err)
			}
			defer f.Close()
			problems, err := inputstyle.CheckFormat(f)
			if err != nil {
				return apperr.New(apperr.LoadFailure, "table check", err)
			}
			for _, p := range problems {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", args[0], p)
			}
			if len(problems) > 0 {
				return apperr.Errorf(apperr.LoadFailure, "table check", "%s: %d problems", args[0], len(problems))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a builtin or configured table in file format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.tables()
			if err != nil {
				return err
			}
			t, ok := m.Table(inputstyle.TableID(args[0]))
			if !ok {
				return apperr.Errorf(apperr.InvalidArgument, "table export", "unknown table %q", args[0])
			}
			return inputstyle.Export(t, cmd.OutOrStdout())
		},
	}
	cmd.AddCommand(check, export)
	return cmd
}

func newEvaluateCommand(a *app) *cobra.Command {
	var (
		workers int
		sysdict string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate <cases>",
		Short: "Measure top-1 and top-N accuracy",
		Long: `Convert every case and report accuracy. A case line is either
"reading<TAB>expected" or a plain sentence whose reading is derived with the tokenizer.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenize.New(sysdict)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return apperr.New(apperr.LoadFailure, "evaluate", err)
			}
			defer f.Close()
			cases, err := evaluate.ReadCases(cmd.Context(), f, tok)
			if err != nil {
				return err
			}
			e, release, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			rep, err := evaluate.Run(cmd.Context(), e, cases, a.opts, workers)
			if err != nil {
				return err
			}
			return printReport(cmd, rep, a.opts, asJSON)
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel conversions (default GOMAXPROCS)")
	cmd.Flags().StringVar(&sysdict, "sysdict", "ipa", "tokenizer dictionary for plain sentences")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, rep evaluate.Report, opts converter.Options, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(out, "line %d: %s => %s (want %s, rank %d)\n",
			f.Case.Line+1, f.Case.Reading, f.Top, f.Case.Expected, f.Rank)
	}
	fmt.Fprintf(out, "total %d  top1 %d (%.1f%%)  top%d %d (%.1f%%)\n",
		rep.Total, rep.Top1, 100*rep.Top1Rate(), opts.NBest, rep.TopN, 100*rep.TopNRate())
	return nil
}
