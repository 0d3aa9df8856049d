package stripegw

import (
	"context"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/customer"
	"github.com/stripe/stripe-go/sub"

	gw "github.com/tbeaudouin05/entitlements/api/services/billing/gateway"
)

// SetKey configures the Stripe SDK key once during bootstrap.
func SetKey(key string) { stripe.Key = key }

// client is the Stripe SDK-backed implementation of the gateway.
type client struct{}

// New returns a StripeGateway backed by the official Stripe SDK.
func New() gw.StripeGateway { return client{} }

func (client) GetSubscription(ctx context.Context, id string) (stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	subPtr, err := sub.Get(id, params)
	if err != nil {
		return stripe.Subscription{}, err
	}
	if subPtr == nil {
		return stripe.Subscription{}, nil
	}
	return *subPtr, nil
}

func (client) GetCustomer(ctx context.Context, id string) (stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	custPtr, err := customer.Get(id, params)
	if err != nil {
		return stripe.Customer{}, err
	}
	if custPtr == nil {
		return stripe.Customer{}, nil
	}
	return *custPtr, nil
}
