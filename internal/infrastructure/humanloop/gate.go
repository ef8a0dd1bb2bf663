// Package humanloop adapts the domain/humanloop interrupt aggregate into a
// concrete HITL gate node handlers can call through
// execution.Callbacks.OnHITLRequest.
package humanloop

import (
	"context"
	"time"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/humanloop"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// Gate persists an interrupt for every HITL request it receives, then polls
// the repository at ~pollInterval granularity until the interrupt resolves
// or its deadline passes (spec's scheduler-level polling-timer requirement,
// implemented here as the concrete callback the scheduler invokes during
// node dispatch rather than as a separate goroutine inside the scheduler
// itself).
type Gate struct {
	repo         humanloop.Repository
	pollInterval time.Duration
}

// NewGate builds a Gate with the spec's ~1s polling granularity.
func NewGate(repo humanloop.Repository) *Gate {
	return &Gate{repo: repo, pollInterval: time.Second}
}

// NewGateWithInterval overrides the poll interval, mainly for tests.
func NewGateWithInterval(repo humanloop.Repository, interval time.Duration) *Gate {
	return &Gate{repo: repo, pollInterval: interval}
}

// Callback binds Resolve to ctx in the shape execution.Callbacks.
// OnHITLRequest expects. Bind it per run, e.g.
// Callbacks{OnHITLRequest: gate.Callback(ctx)}.
func (g *Gate) Callback(ctx context.Context) func(execdomain.HITLRequest) (execdomain.HITLResponse, error) {
	return func(req execdomain.HITLRequest) (execdomain.HITLResponse, error) {
		return g.Resolve(ctx, req)
	}
}

// Resolve runs the persist-then-poll gate described on Gate.
func (g *Gate) Resolve(ctx context.Context, req execdomain.HITLRequest) (execdomain.HITLResponse, error) {
	interrupt, err := humanloop.NewInterrupt(req.RunID, req.NodeID, reasonForMode(req.Mode), req.Context, nil, req.ExpiresAt)
	if err != nil {
		return execdomain.HITLResponse{}, err
	}
	if err := g.repo.Save(ctx, interrupt); err != nil {
		return execdomain.HITLResponse{}, err
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return execdomain.HITLResponse{}, pkgerrors.Cancelled(req.RunID)
		case now := <-ticker.C:
			if !req.ExpiresAt.IsZero() && now.After(req.ExpiresAt) {
				return execdomain.HITLResponse{Action: execdomain.HITLReject, Reason: "expired"}, pkgerrors.HITLTimedOut(req.ID)
			}

			found, err := g.repo.FindByID(ctx, interrupt.ID())
			if err != nil {
				continue
			}
			if !found.IsResolved() {
				continue
			}
			return responseFromInterrupt(found), nil
		}
	}
}

func responseFromInterrupt(interrupt *humanloop.Interrupt) execdomain.HITLResponse {
	action := execdomain.HITLAction(interrupt.Action())
	if action == "" {
		action = execdomain.HITLApprove
	}
	return execdomain.HITLResponse{Action: action, Data: interrupt.DecisionData()}
}

func reasonForMode(mode string) humanloop.InterruptReason {
	if mode == "input_needed" {
		return humanloop.ReasonInputNeeded
	}
	return humanloop.ReasonApprovalRequired
}
