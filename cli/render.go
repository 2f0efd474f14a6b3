package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kanakanji/converter"
	"kanakanji/kanji"
	"kanakanji/model"
)

type styles struct {
	Reading lipgloss.Style
	Cursor  lipgloss.Style
	Index   lipgloss.Style
	Top     lipgloss.Style
	Source  lipgloss.Style
	Help    lipgloss.Style
}

func newStyles() styles {
	primary := lipgloss.Color("#00ff9f")
	dim := lipgloss.Color("#6e7681")
	return styles{
		Reading: lipgloss.NewStyle().Bold(true).Foreground(primary),
		Cursor:  lipgloss.NewStyle().Reverse(true),
		Index:   lipgloss.NewStyle().Foreground(dim).Width(4).Align(lipgloss.Right),
		Top:     lipgloss.NewStyle().Bold(true),
		Source:  lipgloss.NewStyle().Foreground(dim),
		Help:    lipgloss.NewStyle().Foreground(dim),
	}
}

// readingLine shows the phonetic text with the cursor position marked.
func (s styles) readingLine(text string, cursor int) string {
	runes := []rune(text)
	cursor = min(max(cursor, 0), len(runes))
	at := " "
	rest := ""
	if cursor < len(runes) {
		at = string(runes[cursor])
		rest = string(runes[cursor+1:])
	}
	return s.Reading.Render(string(runes[:cursor])) + s.Cursor.Render(at) + s.Reading.Render(rest)
}

// candidates renders a numbered candidate list, 1-based.
func (s styles) candidates(res converter.Result) string {
	var b strings.Builder
	for i, c := range res.Candidates {
		text := c.Text
		if i == 0 {
			text = s.Top.Render(text)
		}
		fmt.Fprintf(&b, "%s %s %s\n", s.Index.Render(fmt.Sprintf("%d.", i+1)), text,
			s.Source.Render(fmt.Sprintf("(%s %.2f)", c.Source, c.Cost)))
	}
	for _, p := range res.Predictions {
		fmt.Fprintf(&b, "%s %s\n", s.Index.Render("»"), p.Text)
	}
	if res.Neural.Enabled {
		state := "converged"
		switch {
		case res.Neural.Degraded:
			state = "degraded"
		case !res.Neural.Converged:
			state = "budget"
		}
		b.WriteString(s.Help.Render(fmt.Sprintf("neural: %d calls, %s", res.Neural.Calls, state)))
		b.WriteByte('\n')
	}
	return b.String()
}

// furigana brackets the reading of every kanji of c, segment by segment.
func furigana(rd kanji.Readings, c model.Candidate) string {
	var pairs []kanji.Pair
	for _, seg := range c.Segments {
		pairs = append(pairs, rd.Align(seg.Surface, seg.Reading)...)
	}
	return kanji.Bracketed(pairs)
}

const sessionHelp = ":del N  :fwd N  :left  :right  :commit N  :clear  :quit"
