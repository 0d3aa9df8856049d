package grpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tbeaudouin05/entitlements/api/config"
	billing "github.com/tbeaudouin05/entitlements/api/services/billing/app"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
	"github.com/tbeaudouin05/entitlements/api/services/session"
)

// sessionMetadataKey is the incoming metadata key carrying a session id.
var sessionMetadataKey = strings.ToLower(config.SessionHeader)

// Server implements EntitlementServiceServer over the session registry and billing service.
type Server struct {
	sessions *session.Registry
	billing  billing.Service
	logger   *slog.Logger
}

var _ EntitlementServiceServer = (*Server)(nil)

// New returns a Server. billing may be nil, in which case StartTrial reports Unavailable.
func New(sessions *session.Registry, svc billing.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{sessions: sessions, billing: svc, logger: logger}
}

func (s *Server) CreateSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sess := s.sessions.Create(ctx)
	return toStruct(map[string]any{
		"session_id": sess.ID,
		"snapshot":   sess.Snapshot(),
	})
}

func (s *Server) SetIdentity(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(ctx, in)
	if err != nil {
		return nil, err
	}
	userID := stringField(in, "user_id")
	wait, err := boolField(in, "wait")
	if err != nil {
		return nil, err
	}
	snap, changed := sess.SetIdentity(ctx, userID, wait)
	return toStruct(map[string]any{
		"session_id": sess.ID,
		"changed":    changed,
		"snapshot":   snap,
	})
}

func (s *Server) GetSnapshot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(ctx, in)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{
		"session_id": sess.ID,
		"snapshot":   sess.Snapshot(),
	})
}

func (s *Server) CheckFeature(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(ctx, in)
	if err != nil {
		return nil, err
	}
	f, err := entitlement.ParseFeature(stringField(in, "feature"))
	if err != nil {
		return nil, toStatus(err, map[string]string{"feature": stringField(in, "feature")})
	}
	return toStruct(sess.Check(f))
}

func (s *Server) EndSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.End(id); err != nil {
		return nil, toStatus(err, map[string]string{"session_id": id})
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

func (s *Server) StartTrial(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID := strings.TrimSpace(stringField(in, "user_id"))
	if userID == "" {
		return nil, toStatus(fmt.Errorf("%w: user_id", errMissingField), nil)
	}
	if s.billing == nil {
		return nil, toStatus(fmt.Errorf("%w: billing not configured", billing.ErrGateway), nil)
	}
	trial, err := s.billing.StartTrial(ctx, userID)
	if err != nil {
		s.logger.Warn("start trial failed", "user_id", userID, "err", err)
		return nil, toStatus(err, map[string]string{"user_id": userID})
	}
	return toStruct(map[string]any{
		"user_id":    userID,
		"started_at": trial.StartedAt.Format(time.RFC3339),
		"ends_at":    trial.EndsAt.Format(time.RFC3339),
	})
}

func (s *Server) session(ctx context.Context, in *structpb.Struct) (*session.Session, error) {
	id, err := sessionID(ctx, in)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, toStatus(err, map[string]string{"session_id": id})
	}
	return sess, nil
}

// sessionID reads session_id from the request, falling back to incoming metadata.
func sessionID(ctx context.Context, in *structpb.Struct) (string, error) {
	if id := stringField(in, "session_id"); id != "" {
		return id, nil
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(sessionMetadataKey); len(vals) > 0 && vals[0] != "" {
			return vals[0], nil
		}
	}
	return "", toStatus(fmt.Errorf("%w: session_id", errMissingField), nil)
}

func stringField(in *structpb.Struct, key string) string {
	if in == nil {
		return ""
	}
	return in.GetFields()[key].GetStringValue()
}

// boolField treats an absent or null field as false and rejects anything but a bool.
func boolField(in *structpb.Struct, key string) (bool, error) {
	v := in.GetFields()[key]
	switch k := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return false, nil
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	default:
		return false, toStatus(fmt.Errorf("%w: %s must be a boolean", errInvalidField, key), nil)
	}
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, toStatus(fmt.Errorf("encode response: %w", err), nil)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, toStatus(fmt.Errorf("encode response: %w", err), nil)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, toStatus(fmt.Errorf("encode response: %w", err), nil)
	}
	return out, nil
}
