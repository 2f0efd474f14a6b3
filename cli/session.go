package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kanakanji/apperr"
	"kanakanji/converter"
	"kanakanji/ingest"
	"kanakanji/inputstyle"
	"kanakanji/logger"
)

func newSessionCommand(a *app) *cobra.Command {
	var styleName string
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Interactive typing session",
		Long: `Read one line of keys at a time, type them into a session and print the candidates.

Lines starting with ':' are commands:
  ` + sessionHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			style, err := inputstyle.ParseStyle(styleName)
			if err != nil {
				return err
			}
			e, release, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			s, err := e.NewSession(a.opts)
			if err != nil {
				return err
			}
			defer e.CloseSession(s.ID())
			return runSession(cmd, s, style, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&styleName, "style", "roman", "input style: kana, roman, kana-jis or table:<id>")
	return cmd
}

type repl struct {
	s     *converter.Session
	style inputstyle.Style
	out   io.Writer
	st    styles
	last  converter.Result
}

func runSession(cmd *cobra.Command, s *converter.Session, style inputstyle.Style, in io.Reader, out io.Writer) error {
	r := &repl{s: s, style: style, out: out, st: newStyles()}
	fmt.Fprintln(out, r.st.Help.Render(sessionHelp))

	lines, errs := ingest.Stream(cmd.Context(), in)
	for line := range lines {
		quit, err := r.handle(cmd, line.Text)
		if err != nil {
			if apperr.KindOf(err) != apperr.InputRejected && apperr.KindOf(err) != apperr.InvalidArgument {
				return err
			}
			fmt.Fprintln(out, r.st.Help.Render("rejected: "+err.Error()))
		}
		if quit {
			return nil
		}
	}
	return <-errs
}

// handle runs one input line. It reports true when the session should end.
func (r *repl) handle(cmd *cobra.Command, line string) (bool, error) {
	if !strings.HasPrefix(line, ":") {
		for _, k := range line {
			if err := r.s.Insert(string(k), r.style); err != nil {
				return false, err
			}
		}
		return false, r.refresh(cmd)
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	n := 1
	if arg = strings.TrimSpace(arg); arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return false, apperr.Errorf(apperr.InvalidArgument, "session", "bad count %q", arg)
		}
		n = v
	}
	switch name {
	case "quit", "q":
		return true, nil
	case "del":
		r.s.DeleteBackward(n)
	case "fwd":
		r.s.DeleteForward(n)
	case "left":
		r.s.MoveCursorBy(-n)
	case "right":
		r.s.MoveCursorBy(n)
	case "clear":
		r.s.Reset()
	case "commit":
		if n > len(r.last.Candidates) {
			return false, apperr.Errorf(apperr.InvalidArgument, "session", "no candidate %d", n)
		}
		c := r.last.Candidates[n-1]
		if err := r.s.Commit(cmd.Context(), c); err != nil {
			return false, err
		}
		logger.Debug().Str("text", c.Text).Msg("commit")
		fmt.Fprintln(r.out, r.st.Top.Render(c.Text))
		r.last = converter.Result{}
		return false, nil
	default:
		return false, apperr.Errorf(apperr.InvalidArgument, "session", "unknown command %q", name)
	}
	return false, r.refresh(cmd)
}

func (r *repl) refresh(cmd *cobra.Command) error {
	res, err := r.s.Candidates(cmd.Context())
	if err != nil {
		return err
	}
	r.last = res
	text, cursor := r.s.Text()
	fmt.Fprintln(r.out, r.st.readingLine(text, cursor))
	fmt.Fprint(r.out, r.st.candidates(res))
	return nil
}
