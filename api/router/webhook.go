package router

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	billingapp "github.com/tbeaudouin05/entitlements/api/services/billing/app"
)

const maxWebhookBody = 64 << 10

func webhookHandler(billing billingapp.Service, logger *slog.Logger) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		if billing == nil {
			writeError(w, http.StatusServiceUnavailable, "billing not configured")
			return
		}
		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}

		err = billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		case errors.Is(err, billingapp.ErrBadEvent):
			logger.Warn("rejected stripe webhook", "err", err)
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Error("stripe webhook failed", "err", err)
			writeError(w, http.StatusInternalServerError, "webhook processing failed")
		}
	}
}
