package app

import "errors"

// Typed errors for the billing app layer. These enable transport mapping without
// relying on SDK-specific error types.
var (
	// ErrBadEvent indicates the incoming event payload is invalid or missing required fields.
	ErrBadEvent = errors.New("bad event")
	// ErrDatabase indicates a database-related failure.
	ErrDatabase = errors.New("database error")
	// ErrGateway indicates a failure from the Stripe gateway / API calls.
	ErrGateway = errors.New("gateway error")
	// ErrTrialAlreadyUsed is returned when a user asks for a second free trial.
	ErrTrialAlreadyUsed = errors.New("free trial already used")
	// ErrInvalidUser indicates a user id that cannot be stored.
	ErrInvalidUser = errors.New("invalid user id")
)
