package models

import "errors"

var (
	ErrDataUnavailable   = errors.New("market data unavailable")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrModelNotFound     = errors.New("model not found")
	ErrInvalidFeature    = errors.New("invalid feature row")
	ErrEmptyInput        = errors.New("empty input")
	ErrLengthMismatch    = errors.New("length mismatch")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrUnknownInstrument = errors.New("unknown instrument")
)

// ErrorKind is a stable code identifying which failure a pipeline error carries.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindDataUnavailable   ErrorKind = "DATA_UNAVAILABLE"
	KindInsufficientData  ErrorKind = "INSUFFICIENT_DATA"
	KindModelNotFound     ErrorKind = "MODEL_NOT_FOUND"
	KindInvalidFeature    ErrorKind = "INVALID_FEATURE"
	KindEmptyInput        ErrorKind = "EMPTY_INPUT"
	KindLengthMismatch    ErrorKind = "LENGTH_MISMATCH"
	KindDivisionByZero    ErrorKind = "DIVISION_BY_ZERO"
	KindUnknownInstrument ErrorKind = "UNKNOWN_INSTRUMENT"
	KindInternal          ErrorKind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrDataUnavailable, KindDataUnavailable},
	{ErrInsufficientData, KindInsufficientData},
	{ErrModelNotFound, KindModelNotFound},
	{ErrInvalidFeature, KindInvalidFeature},
	{ErrEmptyInput, KindEmptyInput},
	{ErrLengthMismatch, KindLengthMismatch},
	{ErrDivisionByZero, KindDivisionByZero},
	{ErrUnknownInstrument, KindUnknownInstrument},
}

// KindOf classifies err. Unclassified errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Recoverable reports whether the caller can fix err by training first.
func Recoverable(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}
