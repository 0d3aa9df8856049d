package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeaudouin05/entitlements/api/logging"
	"github.com/tbeaudouin05/entitlements/api/services/auth"
	"github.com/tbeaudouin05/entitlements/api/services/entitlement/mock"
)

func newTestStore(p Provider, opts ...Option) *Store {
	return NewStore(p, append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

// fakeProvider is a stateful provider keyed by the last identified user.
// Identify blocks while a gate is registered for the user.
type fakeProvider struct {
	mu        sync.Mutex
	identity  string
	subs      map[string]bool
	trials    map[string]bool
	hadTrial  map[string]bool
	gates     map[string]chan struct{}
	entered   chan string
	subErr    error
	blockCtx  bool
	ignoreCtx bool
	cancelled map[string]bool
	resets    int
	initCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		subs:      map[string]bool{},
		trials:    map[string]bool{},
		hadTrial:  map[string]bool{},
		gates:     map[string]chan struct{}{},
		cancelled: map[string]bool{},
		entered:   make(chan string, 16),
	}
}

func (f *fakeProvider) Initialize(ctx context.Context) error {
	f.mu.Lock()
	f.initCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) Identify(ctx context.Context, userID string) error {
	f.mu.Lock()
	gate := f.gates[userID]
	f.mu.Unlock()

	f.entered <- userID
	if gate != nil {
		if f.ignoreCtx {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	f.mu.Lock()
	f.identity = userID
	if ctx.Err() != nil {
		f.cancelled[userID] = true
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) ResetIdentity(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = ""
	f.resets++
	return nil
}

func (f *fakeProvider) SubscriptionStatus(ctx context.Context) (bool, error) {
	if f.blockCtx {
		<-ctx.Done()
		return false, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return false, f.subErr
	}
	return f.subs[f.identity], nil
}

func (f *fakeProvider) TrialStatus(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trials[f.identity], nil
}

func (f *fakeProvider) HadTrial(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hadTrial[f.identity], nil
}

func TestStore_InitialSnapshot(t *testing.T) {
	s := newTestStore(newFakeProvider())
	assert.Equal(t, Snapshot{}, s.Snapshot())
}

func TestStore_SubscribedSkipsTrialQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mock.NewMockProvider(ctrl)
	gomock.InOrder(
		p.EXPECT().Initialize(gomock.Any()).Return(nil),
		p.EXPECT().Identify(gomock.Any(), "u1").Return(nil),
		p.EXPECT().SubscriptionStatus(gomock.Any()).Return(true, nil),
	)

	snap := newTestStore(p).Synchronize(context.Background(), auth.SignedIn("u1"))

	assert.True(t, snap.Subscribed)
	assert.False(t, snap.InFreeTrial)
	assert.False(t, snap.Loading)
	assert.Equal(t, "u1", snap.UserID)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestStore_UnauthenticatedSkipsIdentifyAndTrial(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mock.NewMockProvider(ctrl)
	p.EXPECT().Initialize(gomock.Any()).Return(nil)
	p.EXPECT().SubscriptionStatus(gomock.Any()).Return(false, nil)

	snap := newTestStore(p).Synchronize(context.Background(), auth.Anonymous)

	assert.False(t, snap.Subscribed)
	assert.False(t, snap.InFreeTrial)
	assert.False(t, snap.Loading)
}

type resettingProvider struct {
	*mock.MockProvider
	*mock.MockIdentityResetter
}

func TestStore_UnauthenticatedResetsProviderIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := resettingProvider{mock.NewMockProvider(ctrl), mock.NewMockIdentityResetter(ctrl)}
	gomock.InOrder(
		p.MockProvider.EXPECT().Initialize(gomock.Any()).Return(nil),
		p.MockIdentityResetter.EXPECT().ResetIdentity(gomock.Any()).Return(nil),
		p.MockProvider.EXPECT().SubscriptionStatus(gomock.Any()).Return(false, nil),
	)

	snap := newTestStore(p).Synchronize(context.Background(), auth.Anonymous)
	assert.False(t, snap.Subscribed)
}

func TestStore_TrialQueriedWhenNotSubscribed(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mock.NewMockProvider(ctrl)
	p.EXPECT().Initialize(gomock.Any()).Return(nil)
	p.EXPECT().Identify(gomock.Any(), "u1").Return(nil)
	p.EXPECT().SubscriptionStatus(gomock.Any()).Return(false, nil)
	p.EXPECT().TrialStatus(gomock.Any()).Return(true, nil)

	snap := newTestStore(p).Synchronize(context.Background(), auth.SignedIn("u1"))

	assert.False(t, snap.Subscribed)
	assert.True(t, snap.InFreeTrial)
	assert.False(t, snap.TrialExpired)
}

func TestStore_ProviderFailureKeepsPriorSnapshot(t *testing.T) {
	p := newFakeProvider()
	p.subs["u1"] = true
	s := newTestStore(p)

	prior := s.Synchronize(context.Background(), auth.SignedIn("u1"))
	require.True(t, prior.Subscribed)

	p.subErr = errors.New("stripe unavailable")
	after := s.Synchronize(context.Background(), auth.SignedIn("u1"))

	assert.Equal(t, prior, after)
	assert.False(t, after.Loading)
}

func TestStore_FirstFailureLeavesDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mock.NewMockProvider(ctrl)
	p.EXPECT().Initialize(gomock.Any()).Return(errors.New("no api key"))

	snap := newTestStore(p).Synchronize(context.Background(), auth.SignedIn("u1"))

	assert.Equal(t, Snapshot{UserID: "u1"}, snap)
}

func TestStore_IdentifyFailureIsAbsorbed(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mock.NewMockProvider(ctrl)
	p.EXPECT().Initialize(gomock.Any()).Return(nil)
	p.EXPECT().Identify(gomock.Any(), "u1").Return(errors.New("db down"))

	snap := newTestStore(p).Synchronize(context.Background(), auth.SignedIn("u1"))

	assert.False(t, snap.Loading)
	assert.False(t, snap.Subscribed)
}

func TestStore_LoadingSetBeforeProviderReturns(t *testing.T) {
	p := newFakeProvider()
	gate := make(chan struct{})
	p.gates["u1"] = gate
	s := newTestStore(p)

	done := s.Trigger(context.Background(), auth.SignedIn("u1"))
	assert.True(t, s.Snapshot().Loading, "loading must be visible as soon as Trigger returns")

	<-p.entered
	close(gate)
	snap := <-done
	assert.False(t, snap.Loading)
}

func TestStore_LateStaleResultIsDiscarded(t *testing.T) {
	p := newFakeProvider()
	p.subs["userB"] = true
	gateA := make(chan struct{})
	p.gates["userA"] = gateA
	s := newTestStore(p)

	doneA := s.Trigger(context.Background(), auth.SignedIn("userA"))
	require.Equal(t, "userA", <-p.entered)

	doneB := s.Trigger(context.Background(), auth.SignedIn("userB"))
	require.Equal(t, "userB", <-p.entered)
	snapB := <-doneB
	require.True(t, snapB.Subscribed)
	require.Equal(t, "userB", snapB.UserID)

	close(gateA)
	<-doneA

	final := s.Snapshot()
	assert.Equal(t, "userB", final.UserID)
	assert.True(t, final.Subscribed)
	assert.False(t, final.Loading)
	assert.Equal(t, snapB.Generation, final.Generation)
}

func TestStore_SupersededSlowCallNeverOverwrites(t *testing.T) {
	p := newFakeProvider()
	gateB := make(chan struct{})
	p.gates["userB"] = gateB
	s := newTestStore(p)

	doneB := s.Trigger(context.Background(), auth.SignedIn("userB"))
	<-p.entered
	// A newer attempt for userA supersedes B; B's late result must not clear loading.
	doneA := s.Trigger(context.Background(), auth.SignedIn("userA"))
	<-p.entered
	snapA := <-doneA
	assert.Equal(t, "userA", snapA.UserID)

	close(gateB)
	<-doneB
	assert.Equal(t, "userA", s.Snapshot().UserID)
}

func TestStore_SlowAttemptCannotLeakIntoNewerIdentity(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCtx = true
	p.subs["userA"] = true
	gateA := make(chan struct{})
	p.gates["userA"] = gateA
	s := newTestStore(p)

	doneA := s.Trigger(context.Background(), auth.SignedIn("userA"))
	require.Equal(t, "userA", <-p.entered)

	doneB := s.Trigger(context.Background(), auth.SignedIn("userB"))
	select {
	case u := <-p.entered:
		t.Fatalf("identify(%s) ran while another attempt held the provider", u)
	case <-time.After(50 * time.Millisecond):
	}

	close(gateA)
	require.Equal(t, "userB", <-p.entered)
	<-doneA
	snapB := <-doneB

	assert.Equal(t, "userB", snapB.UserID)
	assert.False(t, snapB.Subscribed)
	assert.False(t, snapB.Loading)
	assert.Equal(t, snapB, s.Snapshot())

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.True(t, p.cancelled["userA"], "superseded attempt must see its context cancelled")
	assert.False(t, p.cancelled["userB"])
}

func TestStore_FailedSyncAfterUserSwitchFailsClosed(t *testing.T) {
	p := newFakeProvider()
	p.subs["userA"] = true
	s := newTestStore(p)

	require.True(t, s.Synchronize(context.Background(), auth.SignedIn("userA")).Subscribed)

	p.mu.Lock()
	p.subErr = errors.New("stripe unavailable")
	p.mu.Unlock()
	snap := s.Synchronize(context.Background(), auth.SignedIn("userB"))

	assert.Equal(t, Snapshot{UserID: "userB"}, snap)
	d := NewGuard(nil).Decide(auth.SignedIn("userB"), snap, FeatureScan)
	assert.Equal(t, PresentUpgrade, d.Presentation)
	assert.False(t, d.Granted)
}

func TestStore_FailedSignOutSyncDropsEntitlements(t *testing.T) {
	p := newFakeProvider()
	p.subs["userA"] = true
	s := newTestStore(p)

	require.True(t, s.Synchronize(context.Background(), auth.SignedIn("userA")).Subscribed)

	p.mu.Lock()
	p.subErr = errors.New("stripe unavailable")
	p.mu.Unlock()
	snap := s.Synchronize(context.Background(), auth.Anonymous)

	assert.Equal(t, Snapshot{}, snap)
}

func TestStore_TimeoutIsProviderFailure(t *testing.T) {
	p := newFakeProvider()
	p.blockCtx = true
	s := newTestStore(p, WithTimeout(20*time.Millisecond))

	snap := s.Synchronize(context.Background(), auth.SignedIn("u1"))

	assert.False(t, snap.Loading)
	assert.False(t, snap.Subscribed)
	assert.Equal(t, uint64(0), snap.Generation)
}

func TestStore_TrialExpiredFromHistory(t *testing.T) {
	p := newFakeProvider()
	p.hadTrial["u1"] = true
	s := newTestStore(p)

	snap := s.Synchronize(context.Background(), auth.SignedIn("u1"))

	assert.False(t, snap.InFreeTrial)
	assert.True(t, snap.TrialExpired)
}

func TestStore_TrialLapsingMidSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := mock.NewMockProvider(ctrl)
	p.EXPECT().Initialize(gomock.Any()).Return(nil).Times(2)
	p.EXPECT().Identify(gomock.Any(), "u1").Return(nil).Times(2)
	p.EXPECT().SubscriptionStatus(gomock.Any()).Return(false, nil).Times(2)
	gomock.InOrder(
		p.EXPECT().TrialStatus(gomock.Any()).Return(true, nil),
		p.EXPECT().TrialStatus(gomock.Any()).Return(false, nil),
	)
	s := newTestStore(p)

	first := s.Synchronize(context.Background(), auth.SignedIn("u1"))
	require.True(t, first.InFreeTrial)

	second := s.Synchronize(context.Background(), auth.SignedIn("u1"))
	assert.False(t, second.InFreeTrial)
	assert.True(t, second.TrialExpired)
}

func TestStore_TrialHistoryNotCarriedAcrossUsers(t *testing.T) {
	p := newFakeProvider()
	p.trials["u1"] = true
	s := newTestStore(p)

	require.True(t, s.Synchronize(context.Background(), auth.SignedIn("u1")).InFreeTrial)

	snap := s.Synchronize(context.Background(), auth.SignedIn("u2"))
	assert.False(t, snap.InFreeTrial)
	assert.False(t, snap.TrialExpired)
}

func TestStore_ResetInvalidatesInFlight(t *testing.T) {
	p := newFakeProvider()
	p.subs["u1"] = true
	gate := make(chan struct{})
	p.gates["u1"] = gate
	s := newTestStore(p)

	done := s.Trigger(context.Background(), auth.SignedIn("u1"))
	<-p.entered
	s.Reset()
	close(gate)
	<-done

	assert.Equal(t, Snapshot{}, s.Snapshot())
}

func TestStore_SubscribeSeesLoadingThenResult(t *testing.T) {
	p := newFakeProvider()
	p.subs["u1"] = true
	s := newTestStore(p)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Synchronize(context.Background(), auth.SignedIn("u1"))

	first := <-ch
	second := <-ch
	assert.True(t, first.Loading)
	assert.False(t, second.Loading)
	assert.True(t, second.Subscribed)
}

func TestStore_SubscribeKeepsLatestWhenBehind(t *testing.T) {
	p := newFakeProvider()
	s := newTestStore(p)
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 10; i++ {
		s.Synchronize(context.Background(), auth.SignedIn("u1"))
	}

	var last Snapshot
	for len(ch) > 0 {
		last = <-ch
	}
	assert.Equal(t, s.Snapshot(), last)
}

func TestStore_InvariantAcrossOutcomes(t *testing.T) {
	for _, st := range []auth.State{auth.Anonymous, auth.SignedIn("u1")} {
		for _, sub := range []bool{false, true} {
			for _, trial := range []bool{false, true} {
				p := newFakeProvider()
				p.subs["u1"] = sub
				p.trials["u1"] = trial
				p.subs[""] = sub
				p.trials[""] = trial

				snap := newTestStore(p).Synchronize(context.Background(), st)

				assert.False(t, snap.Subscribed && snap.InFreeTrial, "state=%+v sub=%v trial=%v", st, sub, trial)
				if _, ok := st.Identity(); !ok {
					assert.False(t, snap.InFreeTrial)
				}
			}
		}
	}
}
