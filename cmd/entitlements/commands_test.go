package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go"

	"github.com/tbeaudouin05/entitlements/api/bootstrap"
	"github.com/tbeaudouin05/entitlements/api/config"
	"github.com/tbeaudouin05/entitlements/api/database"
	"github.com/tbeaudouin05/entitlements/api/logging"
	billingdb "github.com/tbeaudouin05/entitlements/api/services/billing/db"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
)

type activeGateway struct{}

func (activeGateway) GetSubscription(_ context.Context, id string) (stripe.Subscription, error) {
	return stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusActive}, nil
}

func (activeGateway) GetCustomer(_ context.Context, id string) (stripe.Customer, error) {
	return stripe.Customer{ID: id}, nil
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "entitlements "+Version)
}

func TestRunCheck(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	store := billingdb.NewStore(db)
	require.NoError(t, store.UpsertUserAccount(context.Background(), "payer", "sub_1", "p", "cus_1"))

	cfg := &config.Config{TrialDuration: time.Hour, ProviderTimeout: time.Second}
	svc, sessions := bootstrap.Wire(activeGateway{}, store, cfg, logging.Discard())
	bootstrap.SetBillingService(svc)
	bootstrap.SetSessions(sessions)
	t.Cleanup(func() {
		bootstrap.SetBillingService(nil)
		bootstrap.SetSessions(nil)
	})

	tests := []struct {
		user    string
		feature entitlement.Feature
		granted bool
		present entitlement.Presentation
	}{
		{"payer", entitlement.FeatureScan, true, entitlement.PresentContent},
		{"nobody", entitlement.FeatureScan, false, entitlement.PresentUpgrade},
		{"nobody", entitlement.FeatureForum, true, entitlement.PresentContent},
		{"", entitlement.FeatureForum, false, entitlement.PresentSignIn},
	}
	for _, tt := range tests {
		t.Run(tt.user+"/"+string(tt.feature), func(t *testing.T) {
			var out bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)
			require.NoError(t, runCheck(context.Background(), cmd, tt.user, tt.feature))

			var got struct {
				Snapshot entitlement.Snapshot `json:"snapshot"`
				Decision entitlement.Decision `json:"decision"`
			}
			require.NoError(t, json.Unmarshal(out.Bytes(), &got))
			assert.Equal(t, tt.granted, got.Decision.Granted)
			assert.Equal(t, tt.present, got.Decision.Presentation)
			assert.False(t, got.Snapshot.Loading)
		})
	}
	assert.Zero(t, sessions.Len(), "check sessions are ended")
}
