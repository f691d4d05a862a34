package utils

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrOfferNotFound         = errors.New("offer not found")
	ErrInvalidOfferState     = errors.New("offer is not in a payable state")
	ErrProviderNotSettleable = errors.New("provider has no payout destination configured")
	ErrGatewayTimeout        = errors.New("gateway request timed out")
	ErrNotTransactionOwner   = errors.New("caller is not a party to this transaction")
	ErrDatabaseError         = errors.New("database error")
)

// ValidationError rejects bad input before any gateway call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// GatewayError carries the payment gateway's own error detail. Mutating
// calls are never retried automatically; Retryable marks idempotent reads
// that failed transiently.
type GatewayError struct {
	Op         string
	StatusCode int
	Detail     string
	Retryable  bool
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("gateway %s failed: %s (status %d)", e.Op, e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("gateway %s failed (status %d)", e.Op, e.StatusCode)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IllegalTransitionError indicates a state machine guard violation: the
// caller raced another writer or asked for a transition the lifecycle does
// not allow. It is a caller bug, not a transient failure.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

func NewIllegalTransitionError(from, to string) *IllegalTransitionError {
	return &IllegalTransitionError{From: from, To: to}
}

func IsIllegalTransition(err error) bool {
	var ite *IllegalTransitionError
	return errors.As(err, &ite)
}
