package payment

import (
	"errors"
	"fmt"
)

const GenericInitiationMessage = "Failed to initiate payment, please try again."

var (
	ErrIntentPending   = errors.New("a payment for this purchase is already pending")
	ErrSessionNotFound = errors.New("payment session not found")
	ErrNotSessionOwner = errors.New("payment session belongs to someone else")
	ErrTargetNotFound  = errors.New("payment target not found")
	ErrUnknownPurpose  = errors.New("no completion handler for purpose")
)

// IntentPendingError reports the push already holding a purchase intent so the caller can resume
// polling it. CheckoutRequestID is empty while that push is still being initiated.
type IntentPendingError struct {
	CheckoutRequestID string
}

func (e *IntentPendingError) Error() string {
	if e.CheckoutRequestID == "" {
		return ErrIntentPending.Error()
	}
	return fmt.Sprintf("%s: %s", ErrIntentPending, e.CheckoutRequestID)
}

func (e *IntentPendingError) Is(target error) bool { return target == ErrIntentPending }

// ValidationError is a local input problem that never reaches the gateway.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// InitiationError is a gateway rejection of an STK push request.
type InitiationError struct {
	Code    string
	Message string
}

func (e *InitiationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("initiation rejected (%s): %s", e.Code, e.Message)
	}
	return "initiation rejected: " + e.Message
}

// UserMessage is the gateway text when present, else the generic retry hint.
func (e *InitiationError) UserMessage() string {
	if e.Message == "" {
		return GenericInitiationMessage
	}
	return e.Message
}

func NewInitiationError(code, msg string) error {
	return &InitiationError{Code: code, Message: msg}
}

var (
	ErrStillPending = errors.New("gateway still reports the charge as pending")
	ErrEngineClosed = errors.New("payment engine is shutting down")
)
