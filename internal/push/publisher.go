package push

import (
	"context"

	"providence/internal/domain"
	"providence/internal/topology"
)

// Publisher emits change events for connected frontends and downstream
// consumers. Implementations must never block the intake path on delivery.
type Publisher interface {
	// UpdateStateTransitions announces newly committed transitions.
	UpdateStateTransitions(ctx context.Context, subscriptionID string, transitions []domain.StateTransition) error

	// UpdateTree announces a structural or aggregated-state change of one
	// environment tree; the payload carries the full snapshot.
	UpdateTree(ctx context.Context, subscriptionID string, nodes []topology.NodeSnapshot) error

	// DeleteTree announces environment removal.
	DeleteTree(ctx context.Context, subscriptionID string) error

	// InternalJobUpdated announces a background job state change.
	InternalJobUpdated(ctx context.Context, job domain.InternalJob) error

	// UpdateDeploymentWindows announces changed deployment windows.
	UpdateDeploymentWindows(ctx context.Context, subscriptionID string, deployments []domain.Deployment) error

	Close() error
}

// Nop discards all push events.
// Params: none.
// Returns: publisher used when push is disabled and in tests.
type Nop struct{}

func (Nop) UpdateStateTransitions(context.Context, string, []domain.StateTransition) error {
	return nil
}

func (Nop) UpdateTree(context.Context, string, []topology.NodeSnapshot) error { return nil }

func (Nop) DeleteTree(context.Context, string) error { return nil }

func (Nop) InternalJobUpdated(context.Context, domain.InternalJob) error { return nil }

func (Nop) UpdateDeploymentWindows(context.Context, string, []domain.Deployment) error { return nil }

func (Nop) Close() error { return nil }
