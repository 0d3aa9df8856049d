package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tbeaudouin05/entitlements/api/config"
	"github.com/tbeaudouin05/entitlements/api/database"
	billingapp "github.com/tbeaudouin05/entitlements/api/services/billing/app"
	billingdb "github.com/tbeaudouin05/entitlements/api/services/billing/db"
	stripegw "github.com/tbeaudouin05/entitlements/api/services/billing/gateway/stripe"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
	"github.com/tbeaudouin05/entitlements/api/services/session"
)

var (
	billingService billingapp.Service
	sessions       *session.Registry
	initOnce       sync.Once
	initErr        error
)

// Init initializes config, database, and third-party clients, and wires services.
func Init() error {
	// If services have already been injected (e.g., tests), do not override or init heavy deps.
	if billingService != nil && sessions != nil {
		return nil
	}
	var err error
	if config.AppConfig == nil {
		config.AppConfig, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := config.AppConfig

	if err := database.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	stripegw.SetKey(cfg.StripeSecretKey)

	billingService, sessions = Wire(stripegw.New(), billingdb.NewStore(database.GetDB()), cfg, slog.Default())
	return nil
}

// Wire builds the billing service and the session registry around it. Checkout and
// trial grants resynchronize every live session of the affected user.
func Wire(gw billingapp.Gateway, store *billingdb.Store, cfg *config.Config, logger *slog.Logger) (billingapp.Service, *session.Registry) {
	var registry *session.Registry
	svc := billingapp.NewService(gw, store,
		billingapp.WithTrialDuration(cfg.TrialDuration),
		billingapp.WithWebhookSecret(cfg.StripeWebhookSecret),
		billingapp.WithLogger(logger.With("component", "billing")),
		billingapp.WithAccountChangeHook(func(ctx context.Context, userID string) {
			resyncUser(ctx, registry, userID, cfg.ProviderTimeout)
		}),
	)
	registry = session.NewRegistry(
		func() entitlement.Provider { return svc.NewClient() },
		session.WithLogger(logger.With("component", "session")),
		session.WithStoreOptions(entitlement.WithTimeout(cfg.ProviderTimeout)),
	)
	return svc, registry
}

// resyncLimit bounds how many sessions of one user resync at once.
const resyncLimit = 8

// resyncUser resynchronizes every live session of userID in parallel and returns
// once they settle or timeout elapses, whichever comes first.
func resyncUser(ctx context.Context, registry *session.Registry, userID string, timeout time.Duration) {
	live := registry.ForUser(userID)
	if len(live) == 0 {
		return
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var g errgroup.Group
	g.SetLimit(resyncLimit)
	for _, s := range live {
		g.Go(func() error {
			s.Resync(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

func GetBillingService() billingapp.Service { return billingService }

// SetBillingService allows tests to inject a stub implementation.
func SetBillingService(s billingapp.Service) { billingService = s }

func GetSessions() *session.Registry { return sessions }

// SetSessions allows tests to inject a registry.
func SetSessions(r *session.Registry) { sessions = r }

// Ensure runs Init() once per process and returns any initialization error.
func Ensure() error {
	initOnce.Do(func() {
		initErr = Init()
	})
	return initErr
}
