package transform

import "errors"

var (
	// ErrMissingBaseData reports that the base ticker has no observations in the window.
	ErrMissingBaseData = errors.New("missing base data")
	// ErrMissingFxData reports that the FX ticker has no observations in the window.
	ErrMissingFxData = errors.New("missing fx data")
	// ErrDivideByZeroConfig reports a zero divider; it is replaced by 1, never raised.
	ErrDivideByZeroConfig = errors.New("divider is zero, defaulted to 1")
)
