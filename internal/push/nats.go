package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"providence/internal/config"
	"providence/internal/domain"
	"providence/internal/topology"
)

const pushStreamMaxAge = 24 * time.Hour

// Event names published on the push subjects.
const (
	EventStateTransitions  = "updateStateTransitions"
	EventTree              = "updateTree"
	EventTreeDeleted       = "deleteTree"
	EventJobUpdated        = "internalJobUpdated"
	EventDeploymentWindows = "updateDeploymentWindows"
)

// envelope is the wire frame of one push event.
// Params: event name, environment scope, and event-specific payload.
// Returns: JSON frame published to <prefix>.<event> subjects.
type envelope struct {
	Event          string    `json:"event"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	EmittedAt      time.Time `json:"emittedAt"`
	Payload        any       `json:"payload,omitempty"`
}

// NATSPublisher publishes push events into a JetStream stream.
// Params: NATS connection and subject prefix settings.
// Returns: publisher implementation for multi-consumer fan-out.
type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// NewNATSPublisher creates a JetStream publisher for push events.
// Params: push config with URL list and subject prefix.
// Returns: initialized publisher or setup error.
func NewNATSPublisher(cfg config.PushConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect push nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for push: %w", err)
	}
	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if err := ensureStream(js, streamName(prefix), prefix+".>"); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSPublisher{nc: nc, js: js, prefix: prefix}, nil
}

// streamName derives the stream name from the subject prefix.
// Params: normalized subject prefix.
// Returns: upper-snake stream name.
func streamName(prefix string) string {
	return strings.ToUpper(strings.ReplaceAll(prefix, ".", "_")) + "_EVENTS"
}

// ensureStream ensures the push stream exists.
// Params: JetStream context, stream name, and subject wildcard.
// Returns: stream create/lookup error.
func ensureStream(js nats.JetStreamContext, stream, subject string) error {
	if _, err := js.StreamInfo(stream); err == nil {
		return nil
	} else if err != nats.ErrStreamNotFound && !strings.Contains(strings.ToLower(err.Error()), "stream not found") {
		return fmt.Errorf("stream info %q: %w", stream, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    pushStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", stream, err)
	}
	return nil
}

// publish sends one envelope on <prefix>.<event>.
// Params: context, event name, environment scope, and payload.
// Returns: marshal/publish error.
func (p *NATSPublisher) publish(ctx context.Context, event, subscriptionID string, payload any) error {
	body, err := json.Marshal(envelope{
		Event:          event,
		SubscriptionID: subscriptionID,
		EmittedAt:      time.Now().UTC(),
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("marshal push event %q: %w", event, err)
	}
	msg := nats.NewMsg(p.prefix + "." + event)
	msg.Data = body
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish push event %q: %w", event, err)
	}
	return nil
}

// UpdateStateTransitions announces newly committed transitions.
// Params: environment scope and transition batch.
// Returns: publish error.
func (p *NATSPublisher) UpdateStateTransitions(ctx context.Context, subscriptionID string, transitions []domain.StateTransition) error {
	return p.publish(ctx, EventStateTransitions, subscriptionID, transitions)
}

// UpdateTree announces a tree change with its full snapshot.
// Params: environment scope and node snapshots, root first.
// Returns: publish error.
func (p *NATSPublisher) UpdateTree(ctx context.Context, subscriptionID string, nodes []topology.NodeSnapshot) error {
	return p.publish(ctx, EventTree, subscriptionID, nodes)
}

// DeleteTree announces environment removal.
// Params: environment scope.
// Returns: publish error.
func (p *NATSPublisher) DeleteTree(ctx context.Context, subscriptionID string) error {
	return p.publish(ctx, EventTreeDeleted, subscriptionID, nil)
}

// InternalJobUpdated announces a background job state change.
// Params: job row after the change.
// Returns: publish error.
func (p *NATSPublisher) InternalJobUpdated(ctx context.Context, job domain.InternalJob) error {
	return p.publish(ctx, EventJobUpdated, job.EnvironmentSubscriptionID, job)
}

// UpdateDeploymentWindows announces changed deployment windows.
// Params: environment scope and current window list.
// Returns: publish error.
func (p *NATSPublisher) UpdateDeploymentWindows(ctx context.Context, subscriptionID string, deployments []domain.Deployment) error {
	return p.publish(ctx, EventDeploymentWindows, subscriptionID, deployments)
}

// Close closes the NATS connection.
// Params: none.
// Returns: nil after connection close.
func (p *NATSPublisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	p.nc.Close()
	return nil
}
