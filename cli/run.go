package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"kanakanji/converter"
	"kanakanji/inputstyle"
	"kanakanji/kanji"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		incremental bool
		styleName   string
		nbest       int
		asJSON      bool
		kanjidic    string
	)
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Convert one input",
		Long: `Convert one input and print the ranked candidates.

Examples:
  kanakanji run はがいたいのでしかいにみてもらった
  kanakanji run --style roman --incremental kanji
  kanakanji run --style table:azik kanji      # custom table from KANAKANJI_TABLE_FILES`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			style, err := inputstyle.ParseStyle(styleName)
			if err != nil {
				return err
			}
			opts := a.opts
			if nbest > 0 {
				opts.NBest = nbest
			}
			e, release, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			var readings kanji.Readings
			if kanjidic != "" {
				if readings, err = kanji.LoadKanjidic2(kanjidic); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			st := newStyles()
			show := func(res converter.Result) error {
				if asJSON {
					return json.NewEncoder(out).Encode(res)
				}
				fmt.Fprintln(out, st.Reading.Render(res.Reading))
				fmt.Fprint(out, st.candidates(res))
				if top, ok := res.Top(); ok && readings != nil {
					fmt.Fprintln(out, st.Help.Render("furigana: ")+furigana(readings, top))
				}
				return nil
			}

			if style == inputstyle.Direct && !incremental {
				res, err := e.Convert(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				return show(res)
			}
			return typeInput(cmd, e, opts, style, args[0], incremental, show)
		},
	}
	cmd.Flags().BoolVar(&incremental, "incremental", false, "type the input key by key and print every step")
	cmd.Flags().StringVar(&styleName, "style", "kana", "input style: kana, roman, kana-jis or table:<id>")
	cmd.Flags().IntVar(&nbest, "nbest", 0, "number of candidates (default from options)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().StringVar(&kanjidic, "kanjidic", "", "KANJIDIC2 XML; prints furigana for the top candidate")
	return cmd
}

// typeInput feeds input through a session one key at a time.
func typeInput(cmd *cobra.Command, e *converter.Engine, opts converter.Options, style inputstyle.Style,
	input string, every bool, show func(converter.Result) error) error {
	s, err := e.NewSession(opts)
	if err != nil {
		return err
	}
	defer e.CloseSession(s.ID())

	runes := []rune(input)
	for i, r := range runes {
		if err := s.Insert(string(r), style); err != nil {
			return err
		}
		if !every && i < len(runes)-1 {
			continue
		}
		res, err := s.Candidates(cmd.Context())
		if err != nil {
			return err
		}
		if err := show(res); err != nil {
			return err
		}
	}
	return nil
}
