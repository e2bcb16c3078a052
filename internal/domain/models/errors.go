package models

import (
	"errors"
	"fmt"
)

var (
	ErrAnomalyNotFound    = errors.New("anomaly not found")
	ErrUnknownAnomalyType = errors.New("unknown anomaly type")
	ErrNoPriceData        = errors.New("no price data")
)

// ConfigLoadError means the threshold document could not be read or parsed.
// Threshold-dependent requests must not be served while it persists.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("load threshold config %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the underlying row store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError returns nil when err is nil so callers can wrap unconditionally.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ValidationError is a caller-supplied parameter outside its declared domain.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, a ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, a...)}
}
