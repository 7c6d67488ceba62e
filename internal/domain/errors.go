package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("notification not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTransition    = errors.New("invalid channel status transition")
	ErrUnknownChannel       = errors.New("unknown channel")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrBackendNotConfigured = errors.New("backend not configured")
	ErrCancelled            = errors.New("stream cancelled")
	ErrClientDisconnected   = fmt.Errorf("client disconnected: %w", ErrCancelled)
)

// ValidationError means the recipient lacks the contact data a channel needs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// TransportError wraps a backend that is unreachable, rejecting, or missing.
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func NewTransportError(backend string, err error) *TransportError {
	return &TransportError{Backend: backend, Err: err}
}

// FailureReason turns a channel error into the reason stored on the record.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Reason
	}
	if errors.Is(err, ErrTemplateNotFound) {
		return ErrTemplateNotFound.Error()
	}
	if errors.Is(err, ErrUnknownChannel) {
		return ErrUnknownChannel.Error()
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return transport.Error()
	}
	return err.Error()
}
