package agent

import (
	"context"
	"fmt"
)

// ErrFeatureDenied marks a strategy request the user is not gated into.
var ErrFeatureDenied = fmt.Errorf("feature not available")

// Feature keys checked by the factory before handing out a strategy.
const (
	FeatureFastStrategy     = "strategy.fast"
	FeatureThoroughStrategy = "strategy.thorough"
	FeatureAutoStrategy     = "strategy.auto"
)

// FeatureGate decides whether a user may use a gated feature.
type FeatureGate interface {
	Allow(ctx context.Context, userID, feature string) bool
}

// StaticGate is a FeatureGate backed by a fixed map. Missing keys are
// denied.
type StaticGate struct {
	enabled map[string]bool
}

// NewStaticGate creates a StaticGate.
func NewStaticGate(enabled map[string]bool) *StaticGate {
	return &StaticGate{enabled: enabled}
}

func (g *StaticGate) Allow(ctx context.Context, userID, feature string) bool {
	return g.enabled[feature]
}

// AllowAll admits every feature. Useful for tests and single-user runs.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, string, string) bool { return true }

// Factory builds the strategy for a turn, applying feature gating.
// A denied gate aborts selection; no strategy is constructed and no
// loop is entered.
type Factory struct {
	deps Deps
	gate FeatureGate
}

// NewFactory creates a Factory. A nil gate admits everything.
func NewFactory(deps Deps, gate FeatureGate) *Factory {
	if gate == nil {
		gate = AllowAll{}
	}
	return &Factory{deps: deps, gate: gate}
}

// For returns the strategy for the requested mode. An empty or unknown
// mode resolves to the normal loop, which is never gated.
func (f *Factory) For(ctx context.Context, userID string, mode Mode) (Strategy, error) {
	normal := NewLoopStrategy(f.deps, string(ModeNormal), normalIterations)

	switch mode {
	case ModeFast:
		if !f.gate.Allow(ctx, userID, FeatureFastStrategy) {
			return nil, fmt.Errorf("%w: %s", ErrFeatureDenied, FeatureFastStrategy)
		}
		return NewFastStrategy(f.deps), nil
	case ModeThorough:
		if !f.gate.Allow(ctx, userID, FeatureThoroughStrategy) {
			return nil, fmt.Errorf("%w: %s", ErrFeatureDenied, FeatureThoroughStrategy)
		}
		return NewLoopStrategy(f.deps, string(ModeThorough), thoroughIterations), nil
	case ModeAuto:
		if !f.gate.Allow(ctx, userID, FeatureAutoStrategy) {
			return nil, fmt.Errorf("%w: %s", ErrFeatureDenied, FeatureAutoStrategy)
		}
		// Auto may delegate to any shape, so its delegates need their
		// gates too; a denied delegate falls back to normal.
		fast := Strategy(normal)
		if f.gate.Allow(ctx, userID, FeatureFastStrategy) {
			fast = NewFastStrategy(f.deps)
		}
		thorough := Strategy(normal)
		if f.gate.Allow(ctx, userID, FeatureThoroughStrategy) {
			thorough = NewLoopStrategy(f.deps, string(ModeThorough), thoroughIterations)
		}
		return NewAutoStrategy(f.deps, fast, normal, thorough), nil
	default:
		return normal, nil
	}
}
