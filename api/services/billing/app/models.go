package app

type InvalidityType string

type ValidityType string

const (
	InvalidityTypeNoSubscription InvalidityType = "noSubscription"
	InvalidityTypeCancelled      InvalidityType = "cancelled"
	InvalidityTypeNoCustomer     InvalidityType = "noCustomer"
	InvalidityTypeOther          InvalidityType = "other"
)

const (
	ValidityTypeFreeTrial      ValidityType = "freeTrial"
	ValidityTypeStripeTrial    ValidityType = "stripeTrial"
	ValidityTypePayingCustomer ValidityType = "payingCustomer"
)

// Stripe event types the webhook acts on.
const EventCheckoutSessionCompleted = "checkout.session.completed"

// VerifySubscriptionResponse is the billing standing of one user.
// Keep value types to avoid pointer proliferation in domain.
type VerifySubscriptionResponse struct {
	IsValidSubscription bool           `json:"isValidSubscription"`
	InvalidityType      InvalidityType `json:"invalidityType,omitempty"`
	ValidityType        ValidityType   `json:"validityType,omitempty"`
	// HadTrial is set once the user ever started a trial, local or Stripe-side.
	HadTrial            bool   `json:"hadTrial"`
	StripeCustomerEmail string `json:"stripeCustomerEmail,omitempty"`
}

// Subscribed reports a paying subscription. Trials do not count.
func (r VerifySubscriptionResponse) Subscribed() bool {
	return r.IsValidSubscription && r.ValidityType == ValidityTypePayingCustomer
}

// Trialing reports an open trial window from either source.
func (r VerifySubscriptionResponse) Trialing() bool {
	return r.IsValidSubscription &&
		(r.ValidityType == ValidityTypeFreeTrial || r.ValidityType == ValidityTypeStripeTrial)
}
