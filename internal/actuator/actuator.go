package actuator

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/tmkoski/powertrim/internal/decision"
)

// #region action-result

// ActionResult reports the outcome of an apply or revert. Failures are
// results, not Go errors: the loop treats them as per-action facts.
type ActionResult struct {
	ActionID  string
	Success   bool
	Message   string
	AppliedAt time.Time
}

// #endregion action-result

// #region interfaces

// Actuator applies and reverts named optimization actions.
type Actuator interface {
	Apply(action decision.OptimizationAction) ActionResult
	Revert(actionID string) ActionResult
	ListActive() []string
}

// TargetOptimizer is the capability a component exposes to accept
// optimization actions for one target. Implementations track enough previous
// state to undo an action by id.
type TargetOptimizer interface {
	Apply(action decision.OptimizationAction) ActionResult
	Revert(actionID string) ActionResult
	Available() bool
}

// #endregion interfaces

// #region registry

// Registry routes actions to the optimizer registered for their target
// component. It satisfies Actuator.
type Registry struct {
	mu         sync.Mutex
	optimizers map[string]TargetOptimizer
	owner      map[string]string // action id → target component
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		optimizers: make(map[string]TargetOptimizer),
		owner:      make(map[string]string),
	}
}

// Register binds an optimizer to a target component, replacing any previous
// binding.
func (r *Registry) Register(target string, opt TargetOptimizer) {
	r.mu.Lock()
	r.optimizers[target] = opt
	r.mu.Unlock()
	log.Printf("[ACT] registered optimizer for target %q", target)
}

// Apply dispatches the action to its target's optimizer.
func (r *Registry) Apply(action decision.OptimizationAction) ActionResult {
	r.mu.Lock()
	opt, ok := r.optimizers[action.TargetComponent]
	r.mu.Unlock()
	if !ok {
		return ActionResult{
			ActionID: action.ID,
			Message:  fmt.Sprintf("no optimizer for target %q", action.TargetComponent),
		}
	}
	if !opt.Available() {
		return ActionResult{
			ActionID: action.ID,
			Message:  fmt.Sprintf("optimizer for %q unavailable", action.TargetComponent),
		}
	}
	res := opt.Apply(action)
	if res.Success {
		r.mu.Lock()
		r.owner[action.ID] = action.TargetComponent
		r.mu.Unlock()
	}
	return res
}

// Revert undoes a previously applied action by id.
func (r *Registry) Revert(actionID string) ActionResult {
	r.mu.Lock()
	target, ok := r.owner[actionID]
	var opt TargetOptimizer
	if ok {
		opt = r.optimizers[target]
	}
	r.mu.Unlock()
	if !ok || opt == nil {
		return ActionResult{ActionID: actionID, Message: "unknown action id"}
	}
	res := opt.Revert(actionID)
	if res.Success {
		r.mu.Lock()
		delete(r.owner, actionID)
		r.mu.Unlock()
	}
	return res
}

// ListActive returns the ids of all actions currently believed in effect,
// sorted for deterministic reconciliation.
func (r *Registry) ListActive() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.owner))
	for id := range r.owner {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// #endregion registry
