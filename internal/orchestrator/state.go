// Package orchestrator sequences the multi-step fund, refund, withdraw and
// create transaction pipelines against the escrow contract.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/fairfund-scanner/internal/types"
)

// Step identifies where in its pipeline an action currently is
type Step string

const (
	StepCheckingAllowance Step = "checking-allowance"
	StepApproving         Step = "approving"
	StepCheckingBalance   Step = "checking-balance"
	StepSubmitting        Step = "submitting"
	StepConfirming        Step = "confirming"
)

// ActionState is the observable state of one action pipeline. Each
// (action, project) pair is tracked independently and moves
// idle -> pending -> {success, error}; a new invocation resets it.
type ActionState struct {
	Action    types.ActionKind   `json:"action"`
	ProjectID uint64             `json:"projectId"`
	Status    types.ActionStatus `json:"status"`
	Step      Step               `json:"step,omitempty"`
	Code      string             `json:"code,omitempty"`
	Message   string             `json:"message,omitempty"`
	TxHash    string             `json:"txHash,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// stateRegistry tracks the latest state per (action, project) pair
type stateRegistry struct {
	mu     sync.RWMutex
	states map[string]ActionState
	now    func() time.Time
}

func newStateRegistry(now func() time.Time) *stateRegistry {
	if now == nil {
		now = time.Now
	}
	return &stateRegistry{states: make(map[string]ActionState), now: now}
}

func stateKey(action types.ActionKind, projectID uint64) string {
	return fmt.Sprintf("%s:%d", action, projectID)
}

// get returns the tracked state, or an idle state when the pair has never
// been invoked.
func (r *stateRegistry) get(action types.ActionKind, projectID uint64) ActionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if state, ok := r.states[stateKey(action, projectID)]; ok {
		return state
	}
	return ActionState{Action: action, ProjectID: projectID, Status: types.ActionIdle}
}

// begin atomically reserves the pair for a new run. It refuses when a run is
// already pending, returning that run's state untouched.
func (r *stateRegistry) begin(action types.ActionKind, projectID uint64) (ActionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := stateKey(action, projectID)
	if current, ok := r.states[key]; ok && current.Status == types.ActionPending {
		return current, false
	}
	state := ActionState{
		Action:    action,
		ProjectID: projectID,
		Status:    types.ActionPending,
		UpdatedAt: r.now(),
	}
	r.states[key] = state
	return state, true
}

func (r *stateRegistry) put(state ActionState) ActionState {
	state.UpdatedAt = r.now()
	r.mu.Lock()
	r.states[stateKey(state.Action, state.ProjectID)] = state
	r.mu.Unlock()
	return state
}

// pending records a pipeline advancing to step, keeping any tx hash already
// attached.
func (r *stateRegistry) pending(action types.ActionKind, projectID uint64, step Step, txHash string) ActionState {
	return r.put(ActionState{
		Action:    action,
		ProjectID: projectID,
		Status:    types.ActionPending,
		Step:      step,
		TxHash:    txHash,
	})
}

// fail records a terminal error with its service error code and message
func (r *stateRegistry) fail(action types.ActionKind, projectID uint64, step Step, txHash string, err error) ActionState {
	code := types.ErrCodeTxFailed
	message := err.Error()
	if serviceErr, ok := err.(*types.ServiceError); ok {
		code = serviceErr.Code
		message = serviceErr.Message
	}
	return r.put(ActionState{
		Action:    action,
		ProjectID: projectID,
		Status:    types.ActionError,
		Step:      step,
		Code:      code,
		Message:   message,
		TxHash:    txHash,
	})
}

// succeed records a terminal success
func (r *stateRegistry) succeed(action types.ActionKind, projectID uint64, txHash string) ActionState {
	return r.put(ActionState{
		Action:    action,
		ProjectID: projectID,
		Status:    types.ActionSuccess,
		TxHash:    txHash,
	})
}
