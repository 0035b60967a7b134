// Package apperr holds the error taxonomy shared by the sale engine and its HTTP surface.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInsufficientForExit    = fmt.Errorf("%w for exit movement", ErrInsufficientStock)
	ErrConcurrentModification = errors.New("stock changed, please retry")
	ErrBadConfirmation        = errors.New("confirmation phrase does not match")
	ErrUnauthorized           = errors.New("caller is not authorized for this operation")
	ErrLocked                 = errors.New("operation already in progress for this record")
)

// ValidationError is a malformed or out-of-range input. It is returned to the
// caller as-is and never reported as an incident.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ValidationErrors groups several field failures found in one request.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// Operations and steps named in partial failure reports.
const (
	OpCreateSale    = "create_sale"
	OpDeleteSale    = "delete_sale"
	OpStockMovement = "stock_movement"

	StepSalePersisting = "SalePersisting"
	StepStockReleasing = "StockReleasing"
	StepSaleRemoving   = "SaleRemoving"
)

// PartialFailure means a later step failed after an earlier side-effecting step
// succeeded. Compensated tells whether the automatic corrective action went through;
// either way an operator must check the record.
type PartialFailure struct {
	Operation       string
	Step            string
	SaleID          uint
	ProductID       uint
	Quantity        int
	Compensated     bool
	Cause           error
	CompensationErr error
}

func (e *PartialFailure) Error() string {
	msg := fmt.Sprintf("partial failure in %s at %s: %v", e.Operation, e.Step, e.Cause)
	switch {
	case e.CompensationErr != nil:
		msg += fmt.Sprintf(" (compensation failed: %v)", e.CompensationErr)
	case e.Compensated:
		msg += " (compensated)"
	default:
		msg += " (not compensated)"
	}
	return msg
}

func (e *PartialFailure) Unwrap() error { return e.Cause }

func IsValidation(err error) bool {
	var ve *ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}

func IsPartial(err error) bool {
	var pf *PartialFailure
	return errors.As(err, &pf)
}
