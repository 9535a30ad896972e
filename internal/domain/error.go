package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Credit ledger
	ErrNoCreditsLeft = errors.New("no generation credits left")
	ErrNoActiveGrant = errors.New("no active subscription grant")

	// Generation orchestration
	ErrJobAlreadyRunning    = errors.New("user already has a generation job in flight")
	ErrProviderSubmitFailed = errors.New("provider submission failed")
	ErrProviderJobFailed    = errors.New("provider reported job failure")
	ErrProviderJobTimedOut  = errors.New("provider job exceeded poll budget")

	// Ingress
	ErrRateLimited = errors.New("rate limited")
)
