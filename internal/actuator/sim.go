package actuator

import (
	"fmt"
	"sync"
	"time"

	"github.com/tmkoski/powertrim/internal/decision"
)

// #region sim-optimizer

// SimOptimizer is an in-memory TargetOptimizer. It models one scalar control
// value per target (brightness level, frequency cap, bandwidth share) and
// restores the previous value on revert, the same bookkeeping a real
// platform optimizer needs.
type SimOptimizer struct {
	target  string
	mu      sync.Mutex
	value   float64            // current control value, 0-1 where 1 = unconstrained
	prior   map[string]float64 // action id → value before that action
	applied map[string]bool
}

// NewSimOptimizer creates a simulated optimizer for the given target,
// starting unconstrained.
func NewSimOptimizer(target string) *SimOptimizer {
	return &SimOptimizer{
		target:  target,
		value:   1.0,
		prior:   make(map[string]float64),
		applied: make(map[string]bool),
	}
}

// Available implements TargetOptimizer.
func (o *SimOptimizer) Available() bool { return true }

// Apply constrains the control value proportionally to the action intensity.
func (o *SimOptimizer) Apply(action decision.OptimizationAction) ActionResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.applied[action.ID] {
		return ActionResult{ActionID: action.ID, Success: true, Message: "already applied"}
	}
	o.prior[action.ID] = o.value
	o.value = 1.0 - action.Intensity
	o.applied[action.ID] = true
	return ActionResult{
		ActionID:  action.ID,
		Success:   true,
		Message:   fmt.Sprintf("%s: %s limited to %.0f%%", o.target, action.Type, o.value*100),
		AppliedAt: time.Now().UTC(),
	}
}

// Revert restores the control value recorded before the action.
func (o *SimOptimizer) Revert(actionID string) ActionResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	prev, ok := o.prior[actionID]
	if !ok {
		return ActionResult{ActionID: actionID, Message: "no recorded prior state"}
	}
	o.value = prev
	delete(o.prior, actionID)
	delete(o.applied, actionID)
	return ActionResult{
		ActionID:  actionID,
		Success:   true,
		Message:   fmt.Sprintf("%s restored to %.0f%%", o.target, o.value*100),
		AppliedAt: time.Now().UTC(),
	}
}

// Value returns the current control value, for status surfaces and tests.
func (o *SimOptimizer) Value() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// #endregion sim-optimizer

// #region default-registry

// NewSimRegistry returns a registry with a simulated optimizer for every
// known target component.
func NewSimRegistry() *Registry {
	r := NewRegistry()
	for _, target := range decision.KnownTargets {
		r.Register(target, NewSimOptimizer(target))
	}
	return r
}

// #endregion default-registry
