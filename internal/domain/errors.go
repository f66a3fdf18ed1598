package domain

import "errors"

// Sentinel errors shared by the services and mapped to HTTP codes at the API boundary
var (
	ErrValidation           = errors.New("validation")                     // 400
	ErrInsufficientFunds    = errors.New("insufficient funds")             // 400
	ErrInvalidOperation     = errors.New("invalid operation type")         // 400
	ErrNotFound             = errors.New("not found")                      // 404
	ErrForbidden            = errors.New("forbidden")                      // 403
	ErrConflict             = errors.New("conflict")                       // 409
	ErrImmutableTransaction = errors.New("ledger entries are append-only") // 500, never reached through the API
)
