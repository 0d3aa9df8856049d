package auth

import (
	"context"
	"strings"
	"sync"
)

// State is what the authentication collaborator knows about the current user.
type State struct {
	Authenticated bool
	UserID        string
}

// Anonymous is the signed-out state.
var Anonymous = State{}

// SignedIn returns the state for an authenticated user. An empty id means signed out.
func SignedIn(userID string) State {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Anonymous
	}
	return State{Authenticated: true, UserID: userID}
}

// Identity returns the user id and whether an identity is present.
// Both flags must agree: an authenticated state without a user id has no identity.
func (s State) Identity() (string, bool) {
	if !s.Authenticated || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}

// Session tracks the authentication state of one client session.
type Session struct {
	mu    sync.RWMutex
	state State
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set replaces the state and reports whether it was a transition (login, logout or user switch).
func (s *Session) Set(next State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == next {
		return false
	}
	s.state = next
	return true
}

type contextKey struct{}

func WithState(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, contextKey{}, st)
}

func FromContext(ctx context.Context) (State, bool) {
	st, ok := ctx.Value(contextKey{}).(State)
	return st, ok
}
