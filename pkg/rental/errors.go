package rental

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the rental service.
var (
	ErrProductNotFound         = errors.New("product not found")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrUserNotFound            = errors.New("user not found")
	ErrInsufficientStock       = errors.New("not enough stock")
	ErrInsufficientPoints      = errors.New("not enough loyalty points")
	ErrAlreadyCanceled         = errors.New("booking already canceled")
	ErrInvalidTransition       = errors.New("invalid booking transition")
	ErrDatesUnavailable        = errors.New("requested dates are unavailable")
	ErrReferenceTaken          = errors.New("reference number already taken")
	ErrInvalidDateRange        = errors.New("invalid date range")
	ErrInvalidDate             = errors.New("invalid date")
	ErrInvalidPrice            = errors.New("invalid price")
	ErrInvalidPoints           = errors.New("invalid points")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrInvalidReference        = errors.New("invalid reference number")
	ErrInvalidReceipt          = errors.New("invalid receipt reference")
	ErrInvalidBookingStatus    = errors.New("invalid booking status")
	ErrInvalidProduct          = errors.New("invalid product")
	ErrInvalidLoyaltyEntryType = errors.New("invalid loyalty entry type")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
