package contracts

import (
	"errors"
	"fmt"
)

// Error kinds exposed to the API as {kind, message}.
const (
	KindSourceUnavailable   = "source_unavailable"
	KindInsufficientData    = "insufficient_data"
	KindReasoningTimeout    = "reasoning_timeout"
	KindReasoningError      = "reasoning_error"
	KindCapitalInsufficient = "capital_insufficient"
	KindDeadlineExceeded    = "deadline_exceeded"
	KindInternal            = "internal"
)

// Sentinel errors for errors.Is checks across package boundaries.
var (
	ErrSourceUnavailable   = errors.New("data source unavailable")
	ErrInsufficientData    = errors.New("insufficient history for signal")
	ErrReasoningTimeout    = errors.New("reasoning backend timed out")
	ErrReasoningError      = errors.New("reasoning backend failed")
	ErrCapitalInsufficient = errors.New("capital insufficient for one board lot")
	ErrDeadlineExceeded    = errors.New("phase deadline exceeded")
)

// DomainError pairs an error kind with context for transport.
type DomainError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	err     error
}

// NewDomainError wraps err under the given kind.
func NewDomainError(kind string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: err.Error(), err: err}
}

// DomainErrorf builds a DomainError from a format string.
func DomainErrorf(kind string, format string, args ...interface{}) *DomainError {
	err := fmt.Errorf(format, args...)
	return &DomainError{Kind: kind, Message: err.Error(), err: err}
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.err
}

// KindOf maps an error to its transport kind.
func KindOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, ErrReasoningTimeout):
		return KindReasoningTimeout
	case errors.Is(err, ErrReasoningError):
		return KindReasoningError
	case errors.Is(err, ErrCapitalInsufficient):
		return KindCapitalInsufficient
	case errors.Is(err, ErrDeadlineExceeded):
		return KindDeadlineExceeded
	default:
		return KindInternal
	}
}
