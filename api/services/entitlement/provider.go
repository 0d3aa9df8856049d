package entitlement

//go:generate mockgen -source=provider.go -destination=mock/mock_provider.go -package=mock

import (
	"context"
	"errors"
)

// Provider is the billing provider client the store synchronizes against.
type Provider interface {
	// Initialize prepares the provider session. Safe to call repeatedly.
	Initialize(ctx context.Context) error
	// Identify ties the provider session to a local user id.
	Identify(ctx context.Context, userID string) error
	SubscriptionStatus(ctx context.Context) (bool, error)
	TrialStatus(ctx context.Context) (bool, error)
}

// TrialHistory is implemented by providers that know whether the identified user ever had a trial.
type TrialHistory interface {
	HadTrial(ctx context.Context) (bool, error)
}

// IdentityResetter is implemented by providers that keep the last identified user
// and must forget it when the session signs out.
type IdentityResetter interface {
	ResetIdentity(ctx context.Context) error
}

// Provider error classes. The store wraps every provider failure in one of these.
var (
	ErrProviderInit     = errors.New("billing provider init failed")
	ErrProviderIdentify = errors.New("billing provider identify failed")
	ErrProviderQuery    = errors.New("billing provider query failed")
)

func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrProviderInit):
		return "init"
	case errors.Is(err, ErrProviderIdentify):
		return "identify"
	case errors.Is(err, ErrProviderQuery):
		return "query"
	default:
		return "unknown"
	}
}
