package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	billing "github.com/tbeaudouin05/entitlements/api/services/billing/app"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
	"github.com/tbeaudouin05/entitlements/api/services/session"
)

// Domain is the ErrorInfo domain of every status this service returns.
const Domain = "entitlements.tbeaudouin05.github.com"

var (
	errMissingField = errors.New("missing field")
	errInvalidField = errors.New("invalid field")
)

type errorMapping struct {
	target error
	code   codes.Code
	reason string
}

var errorMappings = []errorMapping{
	{session.ErrNotFound, codes.NotFound, "SESSION_NOT_FOUND"},
	{entitlement.ErrUnknownFeature, codes.InvalidArgument, "UNKNOWN_FEATURE"},
	{errMissingField, codes.InvalidArgument, "MISSING_FIELD"},
	{errInvalidField, codes.InvalidArgument, "INVALID_FIELD"},
	{billing.ErrInvalidUser, codes.InvalidArgument, "INVALID_USER"},
	{billing.ErrBadEvent, codes.InvalidArgument, "BAD_EVENT"},
	{billing.ErrTrialAlreadyUsed, codes.AlreadyExists, "TRIAL_ALREADY_USED"},
	{billing.ErrDatabase, codes.Unavailable, "DATABASE_UNAVAILABLE"},
	{billing.ErrGateway, codes.Unavailable, "BILLING_PROVIDER_UNAVAILABLE"},
	{context.DeadlineExceeded, codes.DeadlineExceeded, "DEADLINE_EXCEEDED"},
	{context.Canceled, codes.Canceled, "CANCELED"},
}

// toStatus converts a service error into a gRPC status carrying an ErrorInfo detail.
func toStatus(err error, metadata map[string]string) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code, reason := codes.Internal, "INTERNAL"
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			code, reason = m.code, m.reason
			break
		}
	}

	st := status.New(code, err.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   Domain,
		Metadata: metadata,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// Reason extracts the ErrorInfo reason from a status error, or "" if absent.
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
