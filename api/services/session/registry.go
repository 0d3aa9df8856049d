package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbeaudouin05/entitlements/api/services/auth"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
)

// Registry holds the live sessions of the process.
type Registry struct {
	newProvider ProviderFactory
	guard       *entitlement.Guard
	storeOpts   []entitlement.Option
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithPolicy(p entitlement.Evaluator) Option {
	return func(r *Registry) { r.guard = entitlement.NewGuard(p) }
}

// WithStoreOptions configures every store the registry creates.
func WithStoreOptions(opts ...entitlement.Option) Option {
	return func(r *Registry) { r.storeOpts = append(r.storeOpts, opts...) }
}

func NewRegistry(newProvider ProviderFactory, opts ...Option) *Registry {
	r := &Registry{
		newProvider: newProvider,
		guard:       entitlement.NewGuard(entitlement.DefaultPolicy),
		logger:      slog.Default(),
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a session with no identity and kicks off its first synchronization.
func (r *Registry) Create(ctx context.Context) *Session {
	id := uuid.NewString()
	logger := r.logger.With("session_id", id)
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	opts := append([]entitlement.Option{entitlement.WithLogger(logger)}, r.storeOpts...)
	s := &Session{
		ID:        id,
		CreatedAt: r.now(),
		auth:      auth.NewSession(),
		store:     entitlement.NewStore(r.newProvider(), opts...),
		guard:     r.guard,
		logger:    logger,
		ctx:       sctx,
		cancel:    cancel,
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	s.store.Trigger(sctx, auth.Anonymous)
	logger.Info("session created")
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// End removes the session, resets its store and stops its background work.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.end()
	s.logger.Info("session ended", "age", r.now().Sub(s.CreatedAt))
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ForUser returns the sessions currently identified as userID.
func (r *Registry) ForUser(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if id, ok := s.Auth().Identity(); ok && id == userID {
			out = append(out, s)
		}
	}
	return out
}

// Close ends every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.end()
	}
}
