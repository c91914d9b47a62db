package event

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload is the caller's fault: reported, never retried.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrDuplicate means the event was already applied.
	ErrDuplicate = errors.New("duplicate event")
	// ErrQuotaExceeded is terminal; the event is marked processed.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrTransient leaves the event eligible for upstream redelivery.
	ErrTransient = errors.New("transient error")
	// ErrNotFound covers missing pending annotations and reply targets.
	ErrNotFound = errors.New("not found")
)

// StoreError is returned by every persistence boundary.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
