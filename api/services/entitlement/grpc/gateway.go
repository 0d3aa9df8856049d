package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tbeaudouin05/entitlements/api/config"
)

type gatewayRoute struct {
	method  string
	pattern string
	rpc     string
	body    bool
	call    unaryMethod
}

var gatewayRoutes = []gatewayRoute{
	{http.MethodPost, "/v1/sessions", MethodCreateSession, true, EntitlementServiceServer.CreateSession},
	{http.MethodPut, "/v1/sessions/{session_id}/identity", MethodSetIdentity, true, EntitlementServiceServer.SetIdentity},
	{http.MethodDelete, "/v1/sessions/{session_id}/identity", MethodSetIdentity, false, EntitlementServiceServer.SetIdentity},
	{http.MethodGet, "/v1/sessions/{session_id}/snapshot", MethodGetSnapshot, false, EntitlementServiceServer.GetSnapshot},
	{http.MethodGet, "/v1/sessions/{session_id}/features/{feature}", MethodCheckFeature, false, EntitlementServiceServer.CheckFeature},
	{http.MethodDelete, "/v1/sessions/{session_id}", MethodEndSession, false, EntitlementServiceServer.EndSession},
	{http.MethodPost, "/v1/users/{user_id}/trial", MethodStartTrial, false, EntitlementServiceServer.StartTrial},
}

// HeaderMatcher forwards the session header as gRPC metadata and defers to the
// default matcher for everything else.
func HeaderMatcher(key string) (string, bool) {
	if strings.EqualFold(key, config.SessionHeader) {
		return sessionMetadataKey, true
	}
	return runtime.DefaultHeaderMatcher(key)
}

// RegisterGateway maps the HTTP/JSON routes of EntitlementService onto mux and
// calls srv in-process.
func RegisterGateway(ctx context.Context, mux *runtime.ServeMux, srv EntitlementServiceServer) error {
	for _, rt := range gatewayRoutes {
		if err := mux.HandlePath(rt.method, rt.pattern, gatewayHandler(mux, srv, rt)); err != nil {
			return fmt.Errorf("register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}

func gatewayHandler(mux *runtime.ServeMux, srv EntitlementServiceServer, rt gatewayRoute) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		inbound, outbound := runtime.MarshalerForRequest(mux, r)
		ctx, err := runtime.AnnotateIncomingContext(r.Context(), mux, r, rt.rpc, runtime.WithHTTPPathPattern(rt.pattern))
		if err != nil {
			runtime.HTTPError(r.Context(), mux, outbound, w, r, err)
			return
		}

		in := &structpb.Struct{}
		if rt.body {
			if err := inbound.NewDecoder(r.Body).Decode(in); err != nil && !errors.Is(err, io.EOF) {
				runtime.HTTPError(ctx, mux, outbound, w, r, status.Errorf(codes.InvalidArgument, "decode request body: %v", err))
				return
			}
		}
		if in.Fields == nil {
			in.Fields = map[string]*structpb.Value{}
		}
		if v := r.URL.Query().Get("wait"); v != "" {
			wait, err := strconv.ParseBool(v)
			if err != nil {
				runtime.HTTPError(ctx, mux, outbound, w, r, toStatus(fmt.Errorf("%w: wait %q is not a boolean", errInvalidField, v), nil))
				return
			}
			in.Fields["wait"] = structpb.NewBoolValue(wait)
		}
		for key, val := range pathParams {
			in.Fields[key] = structpb.NewStringValue(val)
		}

		resp, err := rt.call(srv, ctx, in)
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}
		runtime.ForwardResponseMessage(ctx, mux, outbound, w, r, resp)
	}
}
