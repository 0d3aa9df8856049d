package entitlement

import (
	"errors"
	"fmt"
	"strings"
)

// Feature identifies a gated product capability.
type Feature string

const (
	FeatureScan    Feature = "scan"
	FeatureListing Feature = "listing"
	FeatureForum   Feature = "forum"
)

var ErrUnknownFeature = errors.New("unknown feature")

// freeTier lists what users get without a subscription or trial.
// Features missing from the table are denied.
var freeTier = map[Feature]bool{
	FeatureListing: true,
	FeatureForum:   true,
	FeatureScan:    false,
}

// Features returns the known feature keys.
func Features() []Feature {
	return []Feature{FeatureScan, FeatureListing, FeatureForum}
}

// ParseFeature validates a feature key coming off the wire.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := freeTier[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

// Allowed reports whether snap grants access to f.
// Subscribers and trial users get everything, including keys added later.
func Allowed(snap Snapshot, f Feature) bool {
	if snap.Subscribed {
		return true
	}
	if snap.InFreeTrial {
		return true
	}
	return freeTier[f]
}

// Evaluator decides access for a snapshot and feature.
type Evaluator interface {
	Allowed(snap Snapshot, f Feature) bool
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(snap Snapshot, f Feature) bool

func (fn EvaluatorFunc) Allowed(snap Snapshot, f Feature) bool { return fn(snap, f) }

// DefaultPolicy is the production access policy.
var DefaultPolicy Evaluator = EvaluatorFunc(Allowed)
