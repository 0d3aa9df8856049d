package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tbeaudouin05/entitlements/api/services/auth"
)

const defaultProviderTimeout = 10 * time.Second

// Store owns the entitlement snapshot of one session and keeps it in sync with the billing provider.
//
// Every synchronization is tagged with a generation when it starts. Only the attempt
// holding the latest generation may commit, so a slow attempt for a previous identity
// can never overwrite the result of a newer one. Starting an attempt cancels the
// previous one, and provider calls of two attempts never interleave.
type Store struct {
	provider Provider
	logger   *slog.Logger
	metrics  *Metrics
	timeout  time.Duration
	now      func() time.Time

	// mu serializes generation issue and commits; readers go through current.
	mu      sync.Mutex
	gen     uint64
	current atomic.Pointer[Snapshot]
	cancel  context.CancelFunc

	// slot holds one token while an attempt talks to the provider.
	slot chan struct{}

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTimeout bounds each synchronization. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(p Provider, opts ...Option) *Store {
	s := &Store{
		provider: p,
		logger:   slog.Default(),
		metrics:  GetMetrics(),
		timeout:  defaultProviderTimeout,
		now:      time.Now,
		slot:     make(chan struct{}, 1),
		subs:     make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&Snapshot{})
	return s
}

// Snapshot returns the current snapshot. Never blocks on a synchronization.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Synchronize recomputes the snapshot for st and returns the store's snapshot once
// the attempt settles. Provider failures are logged and absorbed.
func (s *Store) Synchronize(ctx context.Context, st auth.State) Snapshot {
	return <-s.Trigger(ctx, st)
}

// Trigger marks the snapshot as loading before returning, then synchronizes in the
// background. The channel receives the store's snapshot once the attempt settles,
// whether it was applied, failed, or superseded.
func (s *Store) Trigger(ctx context.Context, st auth.State) <-chan Snapshot {
	ctx, gen, prev := s.begin(ctx)
	done := make(chan Snapshot, 1)
	go func() {
		defer close(done)
		done <- s.run(ctx, gen, prev, st)
	}()
	return done
}

// Reset drops the session state and invalidates any in-flight synchronization.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	empty := Snapshot{}
	s.current.Store(&empty)
	s.publish(empty)
}

// Subscribe returns a channel receiving every snapshot replacement. When the reader
// falls behind, older pending snapshots are dropped in favor of the latest one.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

// begin issues a new generation, cancels the attempt it supersedes and marks the
// snapshot as loading.
func (s *Store) begin(ctx context.Context) (context.Context, uint64, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	prev := *s.current.Load()
	next := prev
	next.Loading = true
	s.current.Store(&next)
	s.publish(next)
	return ctx, s.gen, prev
}

func (s *Store) run(ctx context.Context, gen uint64, prev Snapshot, st auth.State) Snapshot {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	userID, _ := st.Identity()
	start := time.Now()
	fetched, err := s.fetchExclusive(ctx, st, prev)
	elapsed := time.Since(start)

	if !s.commit(gen, userID, fetched, err) {
		s.metrics.RecordSync("stale", elapsed)
		s.logger.Debug("discarding superseded entitlement sync", "user_id", userID, "generation", gen)
		return s.Snapshot()
	}

	if err != nil {
		s.metrics.RecordProviderError(err)
		s.metrics.RecordSync("failed", elapsed)
		s.logger.Error("entitlement sync failed",
			"user_id", userID, "generation", gen, "err", err)
	} else {
		s.metrics.RecordSync("applied", elapsed)
		snap := s.Snapshot()
		s.logger.Info("entitlements synchronized",
			"user_id", userID,
			"generation", gen,
			"subscribed", snap.Subscribed,
			"trial", snap.InFreeTrial,
			"trial_expired", snap.TrialExpired,
			"elapsed", elapsed)
	}
	return s.Snapshot()
}

// commit applies the attempt's outcome if gen is still the latest generation.
// A failed attempt for the identity already in the snapshot only clears the loading
// flag. A failed attempt for another identity drops the previous user's entitlements.
func (s *Store) commit(gen uint64, userID string, fetched Snapshot, fetchErr error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}

	var next Snapshot
	if fetchErr != nil {
		next = *s.current.Load()
		if next.UserID != userID {
			next = Snapshot{UserID: userID}
		}
	} else {
		next = fetched.normalized()
		next.Generation = gen
		next.SyncedAt = s.now()
	}
	next.Loading = false
	s.current.Store(&next)
	s.publish(next)
	return true
}

// fetchExclusive runs fetch while holding the provider slot. Providers keep the last
// identified user, so an attempt must not call Identify between another attempt's
// Identify and its status queries.
func (s *Store) fetchExclusive(ctx context.Context, st auth.State, prev Snapshot) (Snapshot, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return Snapshot{}, fmt.Errorf("%w: waiting for provider: %w", ErrProviderInit, ctx.Err())
	}
	defer func() { <-s.slot }()
	return s.fetch(ctx, st, prev)
}

func (s *Store) fetch(ctx context.Context, st auth.State, prev Snapshot) (Snapshot, error) {
	userID, authenticated := st.Identity()

	if err := s.provider.Initialize(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrProviderInit, err)
	}

	if authenticated {
		if err := s.provider.Identify(ctx, userID); err != nil {
			return Snapshot{}, fmt.Errorf("%w: user %s: %w", ErrProviderIdentify, userID, err)
		}
	} else if r, ok := s.provider.(IdentityResetter); ok {
		if err := r.ResetIdentity(ctx); err != nil {
			return Snapshot{}, fmt.Errorf("%w: reset: %w", ErrProviderIdentify, err)
		}
	}

	subscribed, err := s.provider.SubscriptionStatus(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: subscription status: %w", ErrProviderQuery, err)
	}

	next := Snapshot{UserID: userID, Subscribed: subscribed}
	if subscribed || !authenticated {
		return next, nil
	}

	inTrial, err := s.provider.TrialStatus(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: trial status: %w", ErrProviderQuery, err)
	}
	next.InFreeTrial = inTrial
	if !inTrial {
		next.TrialExpired = s.hadTrial(ctx, userID, prev)
	}
	return next, nil
}

// hadTrial reports whether userID used a trial before. The previous snapshot of the
// same user counts, so a trial lapsing mid-session is still recognised.
func (s *Store) hadTrial(ctx context.Context, userID string, prev Snapshot) bool {
	if prev.UserID == userID && (prev.InFreeTrial || prev.TrialExpired) {
		return true
	}
	h, ok := s.provider.(TrialHistory)
	if !ok {
		return false
	}
	had, err := h.HadTrial(ctx)
	if err != nil {
		s.logger.Warn("trial history unavailable", "user_id", userID, "err", err)
		return false
	}
	return had
}

// publish must be called with mu held so subscribers see replacements in commit order.
func (s *Store) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
