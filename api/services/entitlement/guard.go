package entitlement

import (
	"fmt"

	"github.com/tbeaudouin05/entitlements/api/services/auth"
)

// Presentation is what a guarded surface shows.
type Presentation int

const (
	PresentSignIn Presentation = iota + 1
	PresentUpgrade
	PresentContent
)

func (p Presentation) String() string {
	switch p {
	case PresentSignIn:
		return "sign_in"
	case PresentUpgrade:
		return "upgrade"
	case PresentContent:
		return "content"
	default:
		return "unknown"
	}
}

func (p Presentation) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Presentation) UnmarshalText(b []byte) error {
	for _, c := range []Presentation{PresentSignIn, PresentUpgrade, PresentContent} {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown presentation %q", b)
}

// Decision is the guard outcome for one check. It is derived on every call and never stored.
type Decision struct {
	Feature      Feature      `json:"feature"`
	Presentation Presentation `json:"presentation"`
	Granted      bool         `json:"granted"`
	TrialExpired bool         `json:"trial_expired"`
	Message      string       `json:"message,omitempty"`
}

// Guard picks the presentation for a feature from auth state and the access policy.
type Guard struct {
	policy  Evaluator
	metrics *Metrics
}

func NewGuard(policy Evaluator) *Guard {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Guard{policy: policy, metrics: GetMetrics()}
}

// Decide evaluates, in order: authentication, then the access policy.
// The policy is not consulted for signed-out users.
func (g *Guard) Decide(st auth.State, snap Snapshot, f Feature) Decision {
	d := g.decide(st, snap, f)
	g.metrics.RecordDecision(f, d.Presentation)
	return d
}

func (g *Guard) decide(st auth.State, snap Snapshot, f Feature) Decision {
	if _, ok := st.Identity(); !ok {
		return Decision{
			Feature:      f,
			Presentation: PresentSignIn,
			Message:      fmt.Sprintf("Sign in to use %s.", f),
		}
	}

	if !g.policy.Allowed(snap, f) {
		d := Decision{Feature: f, Presentation: PresentUpgrade}
		if snap.TrialExpired && !snap.Subscribed {
			d.TrialExpired = true
			d.Message = fmt.Sprintf("Your free trial has ended. Subscribe to keep using %s.", f)
		} else {
			d.Message = fmt.Sprintf("Upgrade to a subscription to unlock %s.", f)
		}
		return d
	}

	return Decision{Feature: f, Presentation: PresentContent, Granted: true}
}
