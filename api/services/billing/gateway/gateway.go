package gateway

import (
	"context"

	stripe "github.com/stripe/stripe-go"
)

// StripeGateway abstracts the Stripe SDK operations the billing app needs.
// Methods return values (not pointers) so fakes stay trivial.
type StripeGateway interface {
	GetSubscription(ctx context.Context, id string) (stripe.Subscription, error)
	GetCustomer(ctx context.Context, id string) (stripe.Customer, error)
}
