package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/webhook"

	billingdb "github.com/tbeaudouin05/entitlements/api/services/billing/db"
	gw "github.com/tbeaudouin05/entitlements/api/services/billing/gateway"
)

const defaultTrialDuration = 7 * 24 * time.Hour

// Gateway is the Stripe API surface the service depends on.
type Gateway = gw.StripeGateway

// Service defines the business operations for the billing domain.
type Service interface {
	Ping(ctx context.Context) error
	VerifySubscription(ctx context.Context, userExternalID string) (VerifySubscriptionResponse, error)
	StartTrial(ctx context.Context, userExternalID string) (billingdb.FreeTrial, error)
	HandleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	// NewClient returns a fresh per-session billing provider client.
	NewClient() *Client
}

type serviceImpl struct {
	gw            gw.StripeGateway
	store         *billingdb.Store
	trialDuration time.Duration
	webhookSecret string
	logger        *slog.Logger
	now           func() time.Time
	onChange      func(ctx context.Context, userExternalID string)
}

type Option func(*serviceImpl)

func WithTrialDuration(d time.Duration) Option {
	return func(s *serviceImpl) { s.trialDuration = d }
}

func WithWebhookSecret(secret string) Option {
	return func(s *serviceImpl) { s.webhookSecret = secret }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *serviceImpl) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) { s.now = now }
}

// WithAccountChangeHook registers fn to run after a user's billing standing changed
// (checkout linked, trial granted).
func WithAccountChangeHook(fn func(ctx context.Context, userExternalID string)) Option {
	return func(s *serviceImpl) { s.onChange = fn }
}

func NewService(g gw.StripeGateway, store *billingdb.Store, opts ...Option) Service {
	s := &serviceImpl{
		gw:            g,
		store:         store,
		trialDuration: defaultTrialDuration,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceImpl) NewClient() *Client {
	return &Client{svc: s}
}

// Ping checks that both the gateway and the database are usable.
func (s *serviceImpl) Ping(ctx context.Context) error {
	if s.gw == nil {
		return fmt.Errorf("%w: stripe gateway not configured", ErrGateway)
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}

// StartTrial grants the configured free trial. Each user gets one, ever.
func (s *serviceImpl) StartTrial(ctx context.Context, userExternalID string) (billingdb.FreeTrial, error) {
	trial, err := s.store.StartFreeTrial(ctx, userExternalID, s.now(), s.trialDuration)
	switch {
	case errors.Is(err, billingdb.ErrTrialUsed):
		return billingdb.FreeTrial{}, fmt.Errorf("%w: user %s", ErrTrialAlreadyUsed, userExternalID)
	case errors.Is(err, billingdb.ErrInvalidUserID):
		return billingdb.FreeTrial{}, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	case err != nil:
		return billingdb.FreeTrial{}, fmt.Errorf("%w: error starting free trial: %v", ErrDatabase, err)
	}
	s.logger.Info("free trial started", "user_external_id", userExternalID, "ends_at", trial.EndsAt)
	s.changed(ctx, userExternalID)
	return trial, nil
}

// HandleWebhook verifies the Stripe signature and dispatches the event by type.
// Event types with no handler are acknowledged and ignored.
func (s *serviceImpl) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("%w: webhook secret not configured", ErrBadEvent)
	}
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("%w: signature verification failed: %v", ErrBadEvent, err)
	}

	switch event.Type {
	case EventCheckoutSessionCompleted:
		return s.HandleCheckoutSessionCompleted(ctx, event)
	default:
		s.logger.Debug("ignoring stripe event", "type", event.Type, "id", event.ID)
		return nil
	}
}

// HandleCheckoutSessionCompleted processes the checkout.session.completed event
func (s *serviceImpl) HandleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error {
	if event.Data == nil {
		return fmt.Errorf("%w: event has no data", ErrBadEvent)
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("%w: error unmarshaling into CheckoutSession: %v", ErrBadEvent, err)
	}
	if session.ClientReferenceID == "" {
		return fmt.Errorf("%w: client reference ID not found in CheckoutSession", ErrBadEvent)
	}
	if session.Customer == nil || session.Customer.ID == "" {
		return fmt.Errorf("%w: customer ID not found in CheckoutSession", ErrBadEvent)
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return fmt.Errorf("%w: subscription ID not found in CheckoutSession", ErrBadEvent)
	}
	userExternalID := session.ClientReferenceID
	stripeCustomerID := session.Customer.ID
	newStripeSubscriptionID := session.Subscription.ID
	planID := planOf(session.Subscription)

	exists, existingSubID, err := s.store.CheckUserAccount(ctx, userExternalID)
	if errors.Is(err, billingdb.ErrInvalidUserID) {
		return fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if !exists || existingSubID == "" {
		s.logger.Info("no existing user account", "user_external_id", userExternalID)
		if err := s.store.UpsertUserAccount(ctx, userExternalID, newStripeSubscriptionID, planID, stripeCustomerID); err != nil {
			return fmt.Errorf("%w: error upserting user_account: %v", ErrDatabase, err)
		}
		s.changed(ctx, userExternalID)
		return nil
	}
	if existingSubID == newStripeSubscriptionID {
		s.logger.Info("checkout already linked", "user_external_id", userExternalID)
		return nil
	}

	s.logger.Info("existing user account found", "user_external_id", userExternalID)
	prevSub, err := s.gw.GetSubscription(ctx, existingSubID)
	if err != nil {
		return fmt.Errorf("%w: error fetching previous subscription: %v", ErrGateway, err)
	}
	if IsSubscriptionCancelled(prevSub, s.now()) {
		s.logger.Info("previous subscription cancelled, replacing with new subscription", "user_external_id", userExternalID)
		if err := s.store.UpsertUserAccount(ctx, userExternalID, newStripeSubscriptionID, planID, stripeCustomerID); err != nil {
			return fmt.Errorf("%w: error upserting user_account: %v", ErrDatabase, err)
		}
		s.changed(ctx, userExternalID)
		return nil
	}

	s.logger.Info("previous subscription active, recording new subscription as invalid", "user_external_id", userExternalID)
	if err := s.store.InsertInvalidSubscription(ctx, userExternalID, newStripeSubscriptionID, planID, stripeCustomerID); err != nil {
		return fmt.Errorf("%w: error inserting invalid subscription: %v", ErrDatabase, err)
	}
	return nil
}

func (s *serviceImpl) changed(ctx context.Context, userExternalID string) {
	if s.onChange != nil {
		s.onChange(ctx, userExternalID)
	}
}

func planOf(sub *stripe.Subscription) string {
	if sub.Plan != nil && sub.Plan.ID != "" {
		return sub.Plan.ID
	}
	return "no_need"
}
