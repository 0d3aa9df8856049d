package app

import (
	"context"
	"errors"
	"fmt"

	billingdb "github.com/tbeaudouin05/entitlements/api/services/billing/db"
)

// VerifySubscription resolves the billing standing of a user from the local
// trial grant and the linked Stripe subscription.
func (s *serviceImpl) VerifySubscription(ctx context.Context, userExternalID string) (VerifySubscriptionResponse, error) {
	now := s.now()

	trial, err := s.store.GetFreeTrial(ctx, userExternalID)
	if errors.Is(err, billingdb.ErrInvalidUserID) {
		return VerifySubscriptionResponse{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}
	if err != nil {
		return VerifySubscriptionResponse{}, fmt.Errorf("%w: error retrieving free trial: %v", ErrDatabase, err)
	}
	localTrial := trial != nil && trial.ActiveAt(now)

	ua, err := s.store.GetUserAccount(ctx, userExternalID)
	if err != nil {
		return VerifySubscriptionResponse{}, fmt.Errorf("%w: error retrieving user account: %v", ErrDatabase, err)
	}
	if ua == nil || ua.StripeSubscriptionID == "" {
		if localTrial {
			return VerifySubscriptionResponse{IsValidSubscription: true, ValidityType: ValidityTypeFreeTrial, HadTrial: true}, nil
		}
		return VerifySubscriptionResponse{InvalidityType: InvalidityTypeNoSubscription, HadTrial: trial != nil}, nil
	}

	subRetrieved, err := s.gw.GetSubscription(ctx, ua.StripeSubscriptionID)
	if err != nil {
		return VerifySubscriptionResponse{}, fmt.Errorf("%w: error getting subscription: %v", ErrGateway, err)
	}
	cust, err := s.gw.GetCustomer(ctx, ua.StripeCustomerID)
	if err != nil {
		return VerifySubscriptionResponse{}, fmt.Errorf("%w: error retrieving customer: %v", ErrGateway, err)
	}

	resp := VerifySubscriptionResponse{
		HadTrial:            trial != nil || subRetrieved.TrialEnd != 0,
		StripeCustomerEmail: cust.Email,
	}
	switch {
	case cust.Deleted && !localTrial:
		resp.InvalidityType = InvalidityTypeNoCustomer
	case cust.Deleted:
		resp.IsValidSubscription = true
		resp.ValidityType = ValidityTypeFreeTrial
	case IsSubscriptionActive(subRetrieved, now):
		resp.IsValidSubscription = true
		resp.ValidityType = ValidityTypePayingCustomer
	case IsSubscriptionTrialing(subRetrieved, now):
		resp.IsValidSubscription = true
		resp.ValidityType = ValidityTypeStripeTrial
	case localTrial:
		resp.IsValidSubscription = true
		resp.ValidityType = ValidityTypeFreeTrial
	case IsSubscriptionCancelled(subRetrieved, now):
		resp.InvalidityType = InvalidityTypeCancelled
	default:
		resp.InvalidityType = InvalidityTypeOther
	}
	return resp, nil
}
