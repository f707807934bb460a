package util

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide between degrading and propagating.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidArgument Kind = "invalid_argument"
	KindUpstream        Kind = "upstream"
	KindExtraction      Kind = "extraction"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUpstream        = errors.New("upstream service failed")
	ErrExtraction      = errors.New("text extraction failed")

	ErrUnsupportedType = fmt.Errorf("unsupported file type: %w", ErrInvalidArgument)
	ErrEmptyCollection = fmt.Errorf("collection is empty: %w", ErrInvalidArgument)
)

var sentinels = map[Kind]error{
	KindNotFound:        ErrNotFound,
	KindInvalidArgument: ErrInvalidArgument,
	KindUpstream:        ErrUpstream,
	KindExtraction:      ErrExtraction,
}

// Error carries a Kind and the stage that produced it.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Stage != "" && e.Err != nil:
		return e.Stage + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Stage != "":
		return e.Stage + ": " + string(e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match any *Error of that kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Wrap attaches kind and stage to err. A nil err yields nil.
func Wrap(kind Kind, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of the outermost classified error in err's chain, or
// "" when nothing in the chain is classified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return ""
}
