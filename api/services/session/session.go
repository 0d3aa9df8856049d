package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tbeaudouin05/entitlements/api/services/auth"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement"
)

var ErrNotFound = errors.New("session not found")

// ProviderFactory returns a billing provider client dedicated to one session.
type ProviderFactory func() entitlement.Provider

// Session pairs the authentication state of one client with its entitlement store.
type Session struct {
	ID        string
	CreatedAt time.Time

	// mu orders identity changes so the store is always triggered in the order
	// the transitions were applied.
	mu     sync.Mutex
	auth   *auth.Session
	store  *entitlement.Store
	guard  *entitlement.Guard
	logger *slog.Logger

	// ctx outlives the requests that trigger synchronizations and ends with the session.
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Session) Auth() auth.State { return s.auth.Current() }

func (s *Session) Snapshot() entitlement.Snapshot { return s.store.Snapshot() }

// Watch streams every snapshot replacement until the returned stop func is called
// or the session ends.
func (s *Session) Watch() (<-chan entitlement.Snapshot, func()) {
	ch, unsubscribe := s.store.Subscribe()
	stopped := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(stopped)
			unsubscribe()
		})
	}
	go func() {
		select {
		case <-s.ctx.Done():
			stop()
		case <-stopped:
		}
	}()
	return ch, stop
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// SetIdentity applies a login, user switch or logout (empty userID). The store is
// resynchronized only on an actual transition. With wait set, it returns once that
// synchronization settled or ctx ended; otherwise it returns the loading snapshot.
func (s *Session) SetIdentity(ctx context.Context, userID string, wait bool) (entitlement.Snapshot, bool) {
	next := auth.SignedIn(userID)

	s.mu.Lock()
	if !s.auth.Set(next) {
		s.mu.Unlock()
		return s.store.Snapshot(), false
	}
	done := s.store.Trigger(s.ctx, next)
	s.mu.Unlock()

	s.logger.Info("identity changed", "session_id", s.ID, "user_id", next.UserID, "authenticated", next.Authenticated)
	if !wait {
		return s.store.Snapshot(), true
	}
	select {
	case snap, ok := <-done:
		if ok {
			return snap, true
		}
	case <-ctx.Done():
	}
	return s.store.Snapshot(), true
}

// Resync recomputes the snapshot for the current identity, e.g. after a checkout
// or a trial grant changed the user's standing.
func (s *Session) Resync(ctx context.Context) entitlement.Snapshot {
	s.mu.Lock()
	done := s.store.Trigger(s.ctx, s.auth.Current())
	s.mu.Unlock()
	select {
	case snap, ok := <-done:
		if ok {
			return snap
		}
	case <-ctx.Done():
	}
	return s.store.Snapshot()
}

// Check decides how a guarded feature is presented to this session.
func (s *Session) Check(f entitlement.Feature) entitlement.Decision {
	return s.guard.Decide(s.auth.Current(), s.store.Snapshot(), f)
}

func (s *Session) end() {
	s.cancel()
	s.store.Reset()
}
