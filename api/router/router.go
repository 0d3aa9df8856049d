package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	bootstrap "github.com/tbeaudouin05/entitlements/api/bootstrap"
	billingapp "github.com/tbeaudouin05/entitlements/api/services/billing/app"
	grpcserver "github.com/tbeaudouin05/entitlements/api/services/entitlement/grpc"
	"github.com/tbeaudouin05/entitlements/api/services/session"
)

// NewRouter returns the central HTTP router for the API using grpc-gateway.
// It maps the gRPC EntitlementService to HTTP endpoints and adds the routes that
// have no RPC counterpart (watch stream, guarded content, webhook, metrics, health).
func NewRouter() http.Handler {
	// Initialize app dependencies (non-fatal if it fails here; handlers re-check).
	if err := bootstrap.Ensure(); err != nil {
		slog.Error("bootstrap ensure failed", "err", err)
	}
	return New(bootstrap.GetSessions(), bootstrap.GetBillingService(), slog.Default())
}

// New builds the router over explicit dependencies. billing may be nil.
func New(sessions *session.Registry, billing billingapp.Service, logger *slog.Logger) http.Handler {
	mux := runtime.NewServeMux(runtime.WithIncomingHeaderMatcher(grpcserver.HeaderMatcher))
	if sessions == nil {
		logger.Error("no session registry, only health and metrics are served")
	} else {
		srv := grpcserver.New(sessions, billing, logger.With("component", "grpc"))
		if err := grpcserver.RegisterGateway(context.Background(), mux, srv); err != nil {
			logger.Error("failed to register grpc-gateway", "err", err)
		}
		handle(mux, logger, http.MethodGet, "/v1/sessions/{session_id}/watch", watchHandler(sessions, logger))
		handle(mux, logger, http.MethodGet, "/v1/guard/{feature}", guardHandler(sessions))
	}

	handle(mux, logger, http.MethodPost, "/webhooks/stripe", webhookHandler(billing, logger))
	handle(mux, logger, http.MethodGet, "/healthz", healthHandler(billing))
	metrics := promhttp.Handler()
	handle(mux, logger, http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		metrics.ServeHTTP(w, r)
	})
	return mux
}

func handle(mux *runtime.ServeMux, logger *slog.Logger, method, pattern string, h runtime.HandlerFunc) {
	if err := mux.HandlePath(method, pattern, h); err != nil {
		logger.Error("failed to register route", "method", method, "pattern", pattern, "err", err)
	}
}

func healthHandler(billing billingapp.Service) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		if billing == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "billing not configured"})
			return
		}
		if err := billing.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
