package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrDuplicate     = errors.New("duplicate entry")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrEmptyModel    = errors.New("empty model after local filtering")
	ErrFinished      = errors.New("run already finished")

	// ErrMalformedCounts is an ErrInvalidInput for count strings.
	ErrMalformedCounts = fmt.Errorf("%w: malformed count string", ErrInvalidInput)
)
