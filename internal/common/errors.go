// Package common defines sentinel errors and small helpers shared by the
// relay components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// Credential errors.
	ErrNotConfigured        = errors.New("no storage account configured")
	ErrOutOfRange           = errors.New("account index out of range")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// Admin token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Transfer errors.
	ErrTransferFailed = errors.New("transfer failed")
	ErrDuplicateJob   = errors.New("job already queued")
	ErrShuttingDown   = errors.New("relay is shutting down")

	// ErrCancelled marks a job stopped on user request. It is reported to the
	// user distinctly from a failure.
	ErrCancelled = errors.New("cancelled")
)
