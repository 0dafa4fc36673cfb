package usecase

import (
	"context"

	"github.com/qmuntal/stateless"
	"github.com/vitos/edgex_trade_bot/internal/domain"
)

const (
	triggerUnwind  = "Unwind"
	triggerRemove  = "Remove"
	triggerReplace = "Replace"
)

// newLifecycle builds the state machine of a single strategy record:
//
//	ESTABLISHED --Unwind--> UNWINDING --Remove--> REMOVED
//	ESTABLISHED --Replace-------------------------> REMOVED
//
// Every transition is written back to rec.State.
func newLifecycle(rec *domain.StrategyRecord) *stateless.StateMachine {
	initial := rec.State
	if initial == "" {
		initial = domain.StateEstablished
	}
	sm := stateless.NewStateMachine(initial)

	sm.Configure(domain.StateEstablished).
		Permit(triggerUnwind, domain.StateUnwinding).
		Permit(triggerReplace, domain.StateRemoved)
	sm.Configure(domain.StateUnwinding).
		Permit(triggerRemove, domain.StateRemoved)
	sm.Configure(domain.StateRemoved)

	sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		rec.State = t.Destination.(domain.StrategyState)
	})
	rec.State = initial
	return sm
}

// advance fires the given triggers in order, skipping those not permitted in
// the current state. It reports whether the record reached REMOVED.
func advance(ctx context.Context, rec *domain.StrategyRecord, triggers ...string) bool {
	sm := newLifecycle(rec)
	for _, t := range triggers {
		ok, err := sm.CanFireCtx(ctx, t)
		if err != nil || !ok {
			continue
		}
		_ = sm.FireCtx(ctx, t)
	}
	return rec.State == domain.StateRemoved
}
