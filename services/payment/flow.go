package payment

import (
	"context"
	"fmt"

	"harambee/models"
)

// PlanFunc turns a purchase-context input into a charge plan, resolving its target first.
type PlanFunc[T any] func(ctx context.Context, ownerID string, input T) (Plan, error)

// FlowController runs one purchase context on the shared session engine.
type FlowController[T any] struct {
	engine *Engine
	kind   models.PurposeKind
	plan   PlanFunc[T]
}

// NewFlowController registers handler for kind on the engine.
func NewFlowController[T any](engine *Engine, kind models.PurposeKind, plan PlanFunc[T], handler PurposeHandler) (*FlowController[T], error) {
	if engine == nil || plan == nil {
		return nil, fmt.Errorf("flow %s initialization error: engine and plan are required", kind)
	}
	if err := engine.Register(kind, handler); err != nil {
		return nil, err
	}
	return &FlowController[T]{engine: engine, kind: kind, plan: plan}, nil
}

func (f *FlowController[T]) Kind() models.PurposeKind { return f.kind }

// Start plans the charge and hands it to the engine. The returned session is pending.
func (f *FlowController[T]) Start(ctx context.Context, ownerID string, input T) (*models.PaymentSession, error) {
	plan, err := f.plan(ctx, ownerID, input)
	if err != nil {
		return nil, err
	}
	if plan.Purpose.Kind != f.kind {
		return nil, fmt.Errorf("Start: plan purpose %s does not match flow %s", plan.Purpose.Kind, f.kind)
	}
	return f.engine.Begin(ctx, ownerID, plan)
}
