// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotFlat          = errors.New("position or pending entry already exists")
	ErrNotArmed         = errors.New("no armed trade to confirm")
	ErrNotInPosition    = errors.New("no open position")
	ErrNoLiveStop       = errors.New("no live stop order")
	ErrSelfCheckFailed  = errors.New("instrument self-check failed")
	ErrQuantityTooSmall = errors.New("computed quantity below one contract")
	ErrNotProfitable    = errors.New("price has not moved past entry")
	ErrOrderRejected    = errors.New("order rejected by gateway")
	ErrGatewayClosed    = errors.New("order gateway closed")
	ErrFeedUnavailable  = errors.New("market feed unavailable")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrJournalClosed    = errors.New("journal closed")
)

// GatewayError represents an error from the order gateway.
type GatewayError struct {
	Op      string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway error [%s]: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway error [%s]: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError creates a new GatewayError.
func NewGatewayError(op, message string, err error) *GatewayError {
	return &GatewayError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// OrderError represents an error related to one order leg.
type OrderError struct {
	OrderID string
	Leg     string
	Action  string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.Leg, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.Leg, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, leg, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Leg:     leg,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// ValidationError represents a configuration or input validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
