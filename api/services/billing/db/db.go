package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tbeaudouin05/entitlements/api/database"
)

var (
	ErrInvalidUserID = errors.New("invalid user external id")
	// ErrTrialUsed is returned when a user already had a free trial.
	ErrTrialUsed = errors.New("free trial already used")
)

// UserAccount links a local user to its Stripe customer and subscription.
type UserAccount struct {
	UserExternalID       string
	StripeCustomerID     string
	StripeSubscriptionID string
	StripePlanID         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// FreeTrial is a trial window granted outside Stripe.
type FreeTrial struct {
	UserExternalID string
	StartedAt      time.Time
	EndsAt         time.Time
}

// ActiveAt reports whether the window is still open at t.
func (f FreeTrial) ActiveAt(t time.Time) bool {
	return t.Before(f.EndsAt)
}

// Store persists billing links and trial grants. User ids are stored hashed.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// HashUserID returns the SHA-256 hex digest of id as given, so distinct ids never
// share an account row. Blank ids are rejected.
func HashUserID(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, id)
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:]), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CheckUserAccount reports whether an account exists and returns its subscription id.
func (s *Store) CheckUserAccount(ctx context.Context, userExternalID string) (bool, string, error) {
	acct, err := s.GetUserAccount(ctx, userExternalID)
	if err != nil {
		return false, "", err
	}
	if acct == nil {
		return false, "", nil
	}
	return true, acct.StripeSubscriptionID, nil
}

// GetUserAccount returns nil, nil when the user has no account.
func (s *Store) GetUserAccount(ctx context.Context, userExternalID string) (*UserAccount, error) {
	hid, err := HashUserID(userExternalID)
	if err != nil {
		return nil, err
	}

	var (
		acct             UserAccount
		created, updated int64
	)
	err = s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT stripe_customer_id, stripe_subscription_id, stripe_plan_id, created_at, updated_at
		 FROM user_account WHERE user_external_id = ?`), hid,
	).Scan(&acct.StripeCustomerID, &acct.StripeSubscriptionID, &acct.StripePlanID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user account: %w", err)
	}
	acct.UserExternalID = userExternalID
	acct.CreatedAt = time.Unix(created, 0).UTC()
	acct.UpdatedAt = time.Unix(updated, 0).UTC()
	return &acct, nil
}

// UpsertUserAccount creates the account or points it at a new subscription.
func (s *Store) UpsertUserAccount(ctx context.Context, userExternalID, subscriptionID, planID, customerID string) error {
	hid, err := HashUserID(userExternalID)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO user_account (user_external_id, stripe_subscription_id, stripe_plan_id, stripe_customer_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_external_id) DO UPDATE SET
		   stripe_subscription_id = excluded.stripe_subscription_id,
		   stripe_plan_id = excluded.stripe_plan_id,
		   stripe_customer_id = excluded.stripe_customer_id,
		   updated_at = excluded.updated_at`),
		hid, subscriptionID, planID, customerID, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert user account: %w", err)
	}
	return nil
}

// InsertInvalidSubscription records a second checkout for a user that still has a live subscription.
func (s *Store) InsertInvalidSubscription(ctx context.Context, userExternalID, subscriptionID, planID, customerID string) error {
	hid, err := HashUserID(userExternalID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO invalid_subscription (user_external_id, stripe_subscription_id, stripe_plan_id, stripe_customer_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_external_id, stripe_subscription_id) DO NOTHING`),
		hid, subscriptionID, planID, customerID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert invalid subscription: %w", err)
	}
	return nil
}

// StartFreeTrial grants a trial window. A user gets at most one, ever.
func (s *Store) StartFreeTrial(ctx context.Context, userExternalID string, start time.Time, length time.Duration) (FreeTrial, error) {
	hid, err := HashUserID(userExternalID)
	if err != nil {
		return FreeTrial{}, err
	}
	trial := FreeTrial{
		UserExternalID: userExternalID,
		StartedAt:      start.UTC().Truncate(time.Second),
		EndsAt:         start.Add(length).UTC().Truncate(time.Second),
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO free_trial (user_external_id, started_at, ends_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_external_id) DO NOTHING`),
		hid, trial.StartedAt.Unix(), trial.EndsAt.Unix(),
	)
	if err != nil {
		return FreeTrial{}, fmt.Errorf("insert free trial: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return FreeTrial{}, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return FreeTrial{}, ErrTrialUsed
	}
	return trial, nil
}

// GetFreeTrial returns nil, nil when the user never had a trial.
func (s *Store) GetFreeTrial(ctx context.Context, userExternalID string) (*FreeTrial, error) {
	hid, err := HashUserID(userExternalID)
	if err != nil {
		return nil, err
	}
	var started, ends int64
	err = s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT started_at, ends_at FROM free_trial WHERE user_external_id = ?`), hid,
	).Scan(&started, &ends)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get free trial: %w", err)
	}
	return &FreeTrial{
		UserExternalID: userExternalID,
		StartedAt:      time.Unix(started, 0).UTC(),
		EndsAt:         time.Unix(ends, 0).UTC(),
	}, nil
}
