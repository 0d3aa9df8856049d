package router

import (
	"context"
	"errors"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"github.com/tbeaudouin05/entitlements/api/config"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
	"github.com/tbeaudouin05/entitlements/api/services/session"
)

type decisionKey struct{}

// DecisionFromContext returns the guard decision RequireFeature attached to the request.
func DecisionFromContext(ctx context.Context) (entitlement.Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(entitlement.Decision)
	return d, ok
}

// RequireFeature lets a request through only when the session named by the
// X-Session-Id header may use feature. Sign-in prompts answer 401, upgrade
// prompts 402, both with the decision as body.
func RequireFeature(sessions *session.Registry, feature entitlement.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(config.SessionHeader)
			if id == "" {
				writeError(w, http.StatusUnauthorized, "missing "+config.SessionHeader+" header")
				return
			}
			sess, err := sessions.Get(id)
			if errors.Is(err, session.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown session")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}

			d := sess.Check(feature)
			switch d.Presentation {
			case entitlement.PresentSignIn:
				writeJSON(w, http.StatusUnauthorized, d)
			case entitlement.PresentUpgrade:
				writeJSON(w, http.StatusPaymentRequired, d)
			default:
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), decisionKey{}, d)))
			}
		})
	}
}

// guardHandler serves GET /v1/guard/{feature}: the decision itself once access is granted.
func guardHandler(sessions *session.Registry) runtime.HandlerFunc {
	content := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, _ := DecisionFromContext(r.Context())
		writeJSON(w, http.StatusOK, d)
	})
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		f, err := entitlement.ParseFeature(pathParams["feature"])
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		RequireFeature(sessions, f)(content).ServeHTTP(w, r)
	}
}
