package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"kanakanji/apperr"
)

// Matrix is a square table of connection costs indexed by the right ID of
// the preceding entry and the left ID of the following one.
type Matrix struct {
	Format string    `msgpack:"format"`
	Size   int       `msgpack:"size"`
	Costs  []float32 `msgpack:"costs"`
}

func NewMatrix(size int) *Matrix {
	return &Matrix{Format: FormatTag, Size: size, Costs: make([]float32, size*size)}
}

func (m *Matrix) Set(right, left uint16, cost float32) {
	m.Costs[int(right)*m.Size+int(left)] = cost
}

// Connection returns 0 for IDs outside the table.
func (m *Matrix) Connection(right, left uint16) float64 {
	if m == nil || int(right) >= m.Size || int(left) >= m.Size {
		return 0
	}
	return float64(m.Costs[int(right)*m.Size+int(left)])
}

// ParseMatrixTSV reads a size line followed by right\tleft\tcost rows.
// Blank lines and lines starting with # are skipped.
func ParseMatrixTSV(r io.Reader) (*Matrix, error) {
	const op = "dictionary.ParseMatrixTSV"
	sc := bufio.NewScanner(r)
	var m *Matrix
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if m == nil {
			if len(fields) != 1 {
				return nil, apperr.Errorf(apperr.LoadFailure, op, "line %d: want matrix size", line)
			}
			size, err := strconv.Atoi(fields[0])
			if err != nil || size <= 0 || size > 1<<12 {
				return nil, apperr.Errorf(apperr.LoadFailure, op, "line %d: bad size %q", line, fields[0])
			}
			m = NewMatrix(size)
			continue
		}
		if len(fields) != 3 {
			return nil, apperr.Errorf(apperr.LoadFailure, op, "line %d: want 3 fields, got %d", line, len(fields))
		}
		right, err1 := strconv.Atoi(fields[0])
		left, err2 := strconv.Atoi(fields[1])
		cost, err3 := strconv.ParseFloat(fields[2], 32)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, apperr.Errorf(apperr.LoadFailure, op, "line %d: malformed row", line)
		}
		if right < 0 || left < 0 || right >= m.Size || left >= m.Size {
			return nil, apperr.Errorf(apperr.LoadFailure, op, "line %d: id out of range", line)
		}
		m.Set(uint16(right), uint16(left), float32(cost))
	}
	if err := sc.Err(); err != nil {
		return nil, apperr.New(apperr.LoadFailure, op, err)
	}
	if m == nil {
		return nil, apperr.Errorf(apperr.LoadFailure, op, "empty matrix")
	}
	return m, nil
}

func decodeMatrix(b []byte) (*Matrix, error) {
	var m Matrix
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.Format != FormatTag {
		return nil, fmt.Errorf("%w %q", ErrFormat, m.Format)
	}
	if m.Size < 0 || len(m.Costs) != m.Size*m.Size {
		return nil, fmt.Errorf("connection matrix holds %d costs for size %d", len(m.Costs), m.Size)
	}
	return &m, nil
}
