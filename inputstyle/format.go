package inputstyle

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"kanakanji/apperr"
)

// FormatErrorKind classifies a problem found in a table file.
type FormatErrorKind uint8

const (
	InvalidTabCount FormatErrorKind = iota
	UnknownBraceToken
	UnclosedBrace
	ShiftTokenNotAtTail
	DuplicateRule
)

func (k FormatErrorKind) String() string {
	switch k {
	case InvalidTabCount:
		return "invalid tab count"
	case UnknownBraceToken:
		return "unknown brace token"
	case UnclosedBrace:
		return "unclosed brace"
	case ShiftTokenNotAtTail:
		return "shift token not at tail"
	case DuplicateRule:
		return "duplicate rule"
	default:
		return "unknown"
	}
}

type Side uint8

const (
	SideKey Side = iota
	SideValue
)

func (s Side) String() string {
	if s == SideValue {
		return "value"
	}
	return "key"
}

// FormatError points at a 0-based line of a table file.
type FormatError struct {
	Line      int
	Kind      FormatErrorKind
	Side      Side
	FirstLine int // DuplicateRule only
}

func (e FormatError) Error() string {
	switch e.Kind {
	case UnknownBraceToken, UnclosedBrace:
		return fmt.Sprintf("line %d: %s in %s", e.Line, e.Kind, e.Side)
	case DuplicateRule:
		return fmt.Sprintf("line %d: %s, first defined at line %d", e.Line, e.Kind, e.FirstLine)
	default:
		return fmt.Sprintf("line %d: %s", e.Line, e.Kind)
	}
}

var braceTokens = map[string]Elem{
	"composition-separator": Separator(),
	"any character":         Any(),
	"lbracket":              R('{'),
	"rbracket":              R('}'),
}

// parseSide decodes one side of a rule line. Shift tokens are only allowed
// on the key side.
func parseSide(s string, side Side) ([]Elem, *FormatErrorKind) {
	var out []Elem
	for len(s) > 0 {
		if s[0] != '{' {
			r := []rune(s)[0]
			out = append(out, R(r))
			s = s[len(string(r)):]
			continue
		}
		end := strings.IndexByte(s, '}')
		if end < 0 {
			k := UnclosedBrace
			return nil, &k
		}
		e, ok := braceTokens[s[1:end]]
		if !ok {
			if key, found := strings.CutPrefix(s[1:end], "shift "); found && len([]rune(key)) == 1 {
				e, ok = Shift([]rune(key)[0]), true
			}
		}
		if !ok || (side == SideValue && e.Kind == ElemShift) {
			k := UnknownBraceToken
			return nil, &k
		}
		out = append(out, e)
		s = s[end+1:]
	}
	return out, nil
}

type parsedLine struct {
	line int
	rule Rule
}

func scan(r io.Reader) ([]parsedLine, []FormatError, error) {
	var (
		rules []parsedLine
		errs  []FormatError
		seen  = make(map[string]int)
	)
	sc := bufio.NewScanner(r)
	for line := 0; sc.Scan(); line++ {
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 2 {
			errs = append(errs, FormatError{Line: line, Kind: InvalidTabCount})
			continue
		}
		key, kerr := parseSide(fields[0], SideKey)
		if kerr != nil {
			errs = append(errs, FormatError{Line: line, Kind: *kerr, Side: SideKey})
			continue
		}
		value, verr := parseSide(fields[1], SideValue)
		if verr != nil {
			errs = append(errs, FormatError{Line: line, Kind: *verr, Side: SideValue})
			continue
		}
		for i, e := range key {
			if e.Kind == ElemShift && i != len(key)-1 {
				errs = append(errs, FormatError{Line: line, Kind: ShiftTokenNotAtTail})
				key = nil
				break
			}
		}
		if key == nil {
			continue
		}
		k := keyString(key)
		if first, dup := seen[k]; dup {
			errs = append(errs, FormatError{Line: line, Kind: DuplicateRule, FirstLine: first})
			continue
		}
		seen[k] = line
		rules = append(rules, parsedLine{line: line, rule: Rule{Key: key, Value: value}})
	}
	return rules, errs, sc.Err()
}

// CheckFormat validates a table file and returns every problem in line order.
func CheckFormat(r io.Reader) ([]FormatError, error) {
	_, errs, err := scan(r)
	return errs, err
}

// Parse reads a table file. Any format problem fails the load.
func Parse(name string, r io.Reader) (*Table, error) {
	lines, errs, err := scan(r)
	if err != nil {
		return nil, apperr.New(apperr.LoadFailure, "inputstyle.Parse", err)
	}
	if len(errs) > 0 {
		return nil, apperr.New(apperr.LoadFailure, "inputstyle.Parse", fmt.Errorf("table %s: %w", name, errs[0]))
	}
	rules := make([]Rule, len(lines))
	for i, l := range lines {
		rules[i] = l.rule
	}
	return NewTable(name, rules), nil
}

func encodeSide(elems []Elem) string {
	var b strings.Builder
	for _, e := range elems {
		switch e.Kind {
		case ElemAny:
			b.WriteString("{any character}")
		case ElemSeparator:
			b.WriteString("{composition-separator}")
		case ElemShift:
			b.WriteString("{shift " + string(e.R) + "}")
		default:
			switch e.R {
			case '{':
				b.WriteString("{lbracket}")
			case '}':
				b.WriteString("{rbracket}")
			default:
				b.WriteRune(e.R)
			}
		}
	}
	return b.String()
}

// Export writes t in the file format read by Parse.
func Export(t *Table, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, rule := range t.Rules() {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", encodeSide(rule.Key), encodeSide(rule.Value)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
