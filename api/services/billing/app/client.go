package app

import (
	"context"
	"sync"

	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
)

var (
	_ entitlement.Provider         = (*Client)(nil)
	_ entitlement.TrialHistory     = (*Client)(nil)
	_ entitlement.IdentityResetter = (*Client)(nil)
)

// Client is the billing provider of one session. Identify resolves the user's
// standing once; the status queries answer from that result.
type Client struct {
	svc *serviceImpl

	mu     sync.Mutex
	userID string
	status VerifySubscriptionResponse
}

func (c *Client) Initialize(ctx context.Context) error {
	return c.svc.Ping(ctx)
}

func (c *Client) Identify(ctx context.Context, userID string) error {
	status, err := c.svc.VerifySubscription(ctx, userID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.userID = userID
	c.status = status
	c.mu.Unlock()
	return nil
}

// ResetIdentity forgets the identified user so an anonymous session reports nothing.
func (c *Client) ResetIdentity(context.Context) error {
	c.mu.Lock()
	c.userID = ""
	c.status = VerifySubscriptionResponse{}
	c.mu.Unlock()
	return nil
}

func (c *Client) SubscriptionStatus(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Subscribed(), nil
}

func (c *Client) TrialStatus(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Trialing(), nil
}

func (c *Client) HadTrial(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.HadTrial, nil
}

// UserID returns the last identified user, empty when anonymous.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}
