package app

import (
	"time"

	"github.com/stripe/stripe-go"
)

// IsSubscriptionCancelled returns true if the subscription is cancelled or past its cancel timestamp
func IsSubscriptionCancelled(sub stripe.Subscription, now time.Time) bool {
	if sub.CancelAt != 0 && now.Unix() > sub.CancelAt {
		return true
	}
	if sub.Status == stripe.SubscriptionStatusCanceled {
		return true
	}
	return false
}

// IsSubscriptionActive reports a paid, live subscription.
func IsSubscriptionActive(sub stripe.Subscription, now time.Time) bool {
	return sub.Status == stripe.SubscriptionStatusActive && !IsSubscriptionCancelled(sub, now)
}

// IsSubscriptionTrialing reports a Stripe-side trial whose end is still ahead.
func IsSubscriptionTrialing(sub stripe.Subscription, now time.Time) bool {
	return sub.Status == stripe.SubscriptionStatusTrialing &&
		sub.TrialEnd > now.Unix() &&
		!IsSubscriptionCancelled(sub, now)
}
