package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrValidation         = errors.New("invalid argument")
	ErrInvariantViolation = errors.New("refund would exceed remaining refundable amount")
	ErrConflict           = errors.New("concurrent modification detected")
	ErrProvider           = errors.New("payment provider call failed")
	ErrPaymentNotVerified = errors.New("payment is not verified")
	ErrTerminalState      = errors.New("entity is in a terminal state")

	// Infrastructure errors surfaced by repositories
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
)
