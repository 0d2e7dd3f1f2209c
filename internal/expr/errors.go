package expr

import (
	"errors"
	"fmt"
)

// Expression errors. Every error returned by this package wraps one of these.
var (
	ErrEmptyExpression    = errors.New("expression is required")
	ErrSyntax             = errors.New("syntax error")
	ErrDisallowedSyntax   = errors.New("disallowed syntax")
	ErrDisallowedFunction = errors.New("disallowed function")
	ErrUnknownVariable    = errors.New("unknown variable")
	ErrEvaluation         = errors.New("evaluation error")
)

// Error reports a problem at a byte offset of the expression source.
type Error struct {
	Kind error // one of the sentinel errors above
	Pos  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v at offset %d: %s", e.Kind, e.Pos, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func errorf(kind error, pos int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
