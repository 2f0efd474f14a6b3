// Package apperr defines the error kinds surfaced by the conversion engine.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	// LoadFailure is a missing or corrupt dictionary, table or model resource.
	LoadFailure
	// InputRejected is a malformed keystroke token. Callers ignore it.
	InputRejected
	// NoCandidates means the lattice produced no path.
	NoCandidates
	// NeuralUnavailable never fails a request; it is only reported.
	NeuralUnavailable
	// TrainingIOFailure is an unreadable corpus or unwritable snapshot.
	TrainingIOFailure
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case LoadFailure:
		return "load failure"
	case InputRejected:
		return "input rejected"
	case NoCandidates:
		return "no candidates"
	case NeuralUnavailable:
		return "neural unavailable"
	case TrainingIOFailure:
		return "training io failure"
	case InvalidArgument:
		return "invalid argument"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the operation that failed and the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrLoadFailure       = &Error{Kind: LoadFailure}
	ErrInputRejected     = &Error{Kind: InputRejected}
	ErrNoCandidates      = &Error{Kind: NoCandidates}
	ErrNeuralUnavailable = &Error{Kind: NeuralUnavailable}
	ErrTrainingIOFailure = &Error{Kind: TrainingIOFailure}
	ErrInvalidArgument   = &Error{Kind: InvalidArgument}
)

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
