package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"providence/internal/clock"
	"providence/internal/domain"
	"providence/internal/metrics"
)

// Sender delivers one rendered batch over one channel.
// Params: context and collected batch.
// Returns: delivery error; the dispatcher logs and drops failed batches.
type Sender interface {
	Channel() string
	Send(ctx context.Context, batch Batch) error
}

// pendingBatch accumulates matched transitions for one rule.
// Params: entries in arrival order plus the first-match instant.
// Returns: dispatch unit once the rule interval elapses.
type pendingBatch struct {
	rule    domain.NotificationConfiguration
	envName string
	entries []Entry
	since   time.Time
}

// Dispatcher batches matching transitions per notification rule and flushes
// each batch after the rule's interval. Delivery failures never propagate to
// the intake path.
type Dispatcher struct {
	mu              sync.Mutex
	pending         map[string]*pendingBatch
	senders         []Sender
	clock           clock.Clock
	defaultInterval int
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

// NewDispatcher creates a dispatcher.
// Params: default batching interval in seconds, channel senders, clock,
// logger, and metrics.
// Returns: initialized dispatcher; no background loop is started here.
func NewDispatcher(defaultIntervalSec int, senders []Sender, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		pending:         make(map[string]*pendingBatch),
		senders:         senders,
		clock:           clk,
		defaultInterval: defaultIntervalSec,
		logger:          logger,
		metrics:         m,
	}
}

// Offer evaluates one committed transition against the notification rules
// and appends it to the pending batch of every matching rule.
// Params: transition, element display name, and rules of its environment.
// Returns: number of rules that matched.
func (d *Dispatcher) Offer(transition domain.StateTransition, elementName string, rules []domain.NotificationConfiguration) int {
	matched := 0
	entry := Entry{
		ElementID:            transition.ElementID,
		ElementName:          elementName,
		CheckID:              transition.CheckID,
		AlertName:            transition.AlertName,
		ComponentType:        transition.ComponentType,
		State:                transition.ElementState.State,
		SourceTimestamp:      transition.ElementState.SourceTimestamp,
		TriggeredByElementID: transition.ElementState.TriggeredByElementID,
		TriggeredByAlertName: transition.ElementState.TriggeredByAlertName,
		Escalated:            transition.ElementState.Escalated,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, rule := range rules {
		if !rule.Matches(transition.EnvironmentSubscriptionID, transition.ComponentType, transition.ElementState.State) {
			continue
		}
		matched++
		batch, ok := d.pending[rule.ID]
		if !ok {
			batch = &pendingBatch{
				rule:    rule,
				envName: transition.EnvironmentName,
				since:   d.clock.Now(),
			}
			d.pending[rule.ID] = batch
		}
		batch.entries = append(batch.entries, entry)
	}
	return matched
}

// DispatchDue flushes every pending batch whose rule interval has elapsed.
// Params: context for channel sends.
// Returns: number of dispatched batches.
func (d *Dispatcher) DispatchDue(ctx context.Context) int {
	return d.dispatch(ctx, false)
}

// Flush dispatches all pending batches regardless of interval, for shutdown.
// Params: context for channel sends.
// Returns: number of dispatched batches.
func (d *Dispatcher) Flush(ctx context.Context) int {
	return d.dispatch(ctx, true)
}

func (d *Dispatcher) dispatch(ctx context.Context, force bool) int {
	now := d.clock.Now()

	d.mu.Lock()
	due := make([]*pendingBatch, 0, len(d.pending))
	for id, batch := range d.pending {
		if !force && now.Sub(batch.since) < batch.rule.Interval(d.defaultInterval) {
			continue
		}
		due = append(due, batch)
		delete(d.pending, id)
	}
	d.mu.Unlock()

	for _, pending := range due {
		batch := Batch{
			RuleID:          pending.rule.ID,
			EmailAddresses:  append([]string(nil), pending.rule.EmailAddresses...),
			EnvironmentName: pending.envName,
			Entries:         pending.entries,
			CollectedAt:     now,
		}
		for _, sender := range d.senders {
			if err := sender.Send(ctx, batch); err != nil {
				d.logger.Error("notification dispatch failed",
					"ruleId", batch.RuleID,
					"channel", sender.Channel(),
					"entries", len(batch.Entries),
					"error", err)
				if d.metrics != nil {
					d.metrics.NotificationBatches.WithLabelValues(sender.Channel(), "error").Inc()
				}
				continue
			}
			d.logger.Info("notification batch dispatched",
				"ruleId", batch.RuleID,
				"channel", sender.Channel(),
				"entries", len(batch.Entries))
			if d.metrics != nil {
				d.metrics.NotificationBatches.WithLabelValues(sender.Channel(), "ok").Inc()
			}
		}
	}
	return len(due)
}

// PendingRules reports rule ids with queued entries, for tests and readiness.
// Params: none.
// Returns: count of rules with a pending batch.
func (d *Dispatcher) PendingRules() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
