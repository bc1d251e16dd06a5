package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"providence/internal/clock"
	"providence/internal/domain"
	"providence/internal/history"
	"providence/internal/metrics"
	"providence/internal/notify"
	"providence/internal/push"
	"providence/internal/store"
	"providence/internal/topology"
)

// ReasonPersistenceFailure is the rejection reason used when the store
// refused a commit. Transports treat it as retryable.
const ReasonPersistenceFailure = "persistence failure"

// envRules caches per-environment masterdata for one batch.
// Params: ignore rules, notification rules, and deployments of one
// environment, loaded at most once per ProcessBatch call.
type envRules struct {
	ignore        []domain.AlertIgnoreRule
	notifications []domain.NotificationConfiguration
	deployments   []domain.Deployment
}

// Processor runs the intake pipeline for alert batches.
// Params: topology registry, store, recorder, dispatcher, and push publisher.
// Returns: the single write path mutating environment trees.
type Processor struct {
	registry   *topology.Registry
	store      store.Store
	recorder   *history.Recorder
	dispatcher *notify.Dispatcher
	publisher  push.Publisher
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewProcessor creates an intake processor.
// Params: collaborators for state, persistence, notification, and push.
// Returns: initialized processor.
func NewProcessor(
	registry *topology.Registry,
	st store.Store,
	recorder *history.Recorder,
	dispatcher *notify.Dispatcher,
	publisher push.Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Processor {
	return &Processor{
		registry:   registry,
		store:      st,
		recorder:   recorder,
		dispatcher: dispatcher,
		publisher:  publisher,
		clock:      clk,
		logger:     logger,
		metrics:    m,
	}
}

// ProcessBatch processes one alert batch and reports per-message outcomes.
// Params: context and decoded messages in batch order.
// Returns: one outcome per message in the same order; a failing message
// never affects its siblings.
func (p *Processor) ProcessBatch(ctx context.Context, messages []domain.AlertMessage) []domain.Outcome {
	outcomes := make([]domain.Outcome, 0, len(messages))
	rulesByEnv := make(map[string]*envRules)

	for _, message := range messages {
		outcome := p.processOne(ctx, message, rulesByEnv)
		outcomes = append(outcomes, outcome)
		if p.metrics != nil {
			p.metrics.AlertsProcessed.WithLabelValues(string(outcome.Status)).Inc()
		}
	}
	return outcomes
}

// processOne runs the full pipeline for one message.
// Params: message and the batch-scoped masterdata cache.
// Returns: per-message outcome.
func (p *Processor) processOne(ctx context.Context, message domain.AlertMessage, rulesByEnv map[string]*envRules) domain.Outcome {
	if err := message.Validate(); err != nil {
		p.logger.Warn("alert rejected", "recordId", message.RecordID, "error", err)
		return domain.Rejected(message.RecordID, err.Error())
	}

	seen, err := p.store.SeenRecord(ctx, message.RecordID)
	if err != nil {
		p.logger.Error("dedup lookup failed", "recordId", message.RecordID, "error", err)
		return domain.Rejected(message.RecordID, ReasonPersistenceFailure)
	}
	if seen {
		// Replayed record: already fully processed, absorbed without effect.
		p.logger.Debug("duplicate alert absorbed", "recordId", message.RecordID)
		return domain.Accepted(message.RecordID)
	}

	tree, ok := p.registry.Tree(message.SubscriptionID)
	if !ok {
		p.logger.Warn("alert for unknown environment",
			"recordId", message.RecordID, "subscriptionId", message.SubscriptionID)
		return domain.Rejected(message.RecordID, fmt.Sprintf("unknown environment %q", message.SubscriptionID))
	}

	rules, err := p.environmentRules(ctx, message.SubscriptionID, rulesByEnv)
	if err != nil {
		p.logger.Error("masterdata load failed",
			"recordId", message.RecordID, "subscriptionId", message.SubscriptionID, "error", err)
		return domain.Rejected(message.RecordID, ReasonPersistenceFailure)
	}

	if ruleName, matched := p.matchIgnoreRule(message, rules.ignore); matched {
		audit := domain.IgnoreAudit{
			RecordID:                  message.RecordID,
			EnvironmentSubscriptionID: message.SubscriptionID,
			ElementID:                 message.ComponentID,
			CheckID:                   message.CheckID,
			AlertName:                 message.AlertName,
			RuleName:                  ruleName,
			State:                     message.State,
			IgnoredAt:                 p.clock.Now(),
		}
		if err := p.store.SaveIgnoreAudit(ctx, audit); err != nil {
			p.logger.Error("ignore audit write failed", "recordId", message.RecordID, "error", err)
		}
		p.logger.Info("alert ignored",
			"recordId", message.RecordID, "rule", ruleName, "stream", message.Stream().String())
		return domain.Ignored(message.RecordID, ruleName)
	}

	next := domain.ElementState{
		State:              message.State,
		SourceTimestamp:    message.SourceTimestamp,
		GeneratedTimestamp: message.TimeGenerated,
		CustomFields:       message.CustomFields(),
	}
	result, err := tree.ApplyLeafState(message.Stream(), next)
	if err != nil {
		var orphan *domain.OrphanAlertError
		if errors.As(err, &orphan) {
			p.logger.Warn("alert for unknown element",
				"recordId", message.RecordID,
				"subscriptionId", orphan.SubscriptionID,
				"elementId", orphan.ElementID)
			return domain.Rejected(message.RecordID, err.Error())
		}
		p.logger.Error("state apply failed", "recordId", message.RecordID, "error", err)
		return domain.Rejected(message.RecordID, err.Error())
	}

	if result.OutOfOrder {
		// Stale update: absorbed without state change, ordering safety.
		p.logger.Debug("out-of-order alert dropped",
			"recordId", message.RecordID,
			"stream", message.Stream().String(),
			"sourceTimestamp", message.SourceTimestamp)
		return domain.Accepted(message.RecordID)
	}
	if !result.Changed {
		// Same-state repeat: no transition, nothing to record.
		return domain.Accepted(message.RecordID)
	}

	transitions := p.buildTransitions(tree, message.RecordID, result)
	if err := p.recorder.Commit(ctx, message.RecordID, transitions); err != nil {
		if errors.Is(err, store.ErrDuplicateRecord) {
			return domain.Accepted(message.RecordID)
		}
		// Tree and store must move together: undo the apply so a redelivery
		// of this record id goes through the full pipeline again.
		tree.RevertLeafState(message.Stream(), result)
		p.logger.Error("transition commit failed", "recordId", message.RecordID, "error", err)
		return domain.Rejected(message.RecordID, ReasonPersistenceFailure)
	}
	if p.metrics != nil {
		p.metrics.TransitionsRecorded.Add(float64(len(transitions)))
	}

	p.fanOut(ctx, tree, transitions, rules)
	return domain.Accepted(message.RecordID)
}

// environmentRules loads (once per batch) the rules of one environment.
// Params: environment subscription id and the batch-scoped cache.
// Returns: cached rules or store error.
func (p *Processor) environmentRules(ctx context.Context, subscriptionID string, cache map[string]*envRules) (*envRules, error) {
	if cached, ok := cache[subscriptionID]; ok {
		return cached, nil
	}
	ignore, err := p.store.ListIgnoreRules(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list ignore rules: %w", err)
	}
	notifications, err := p.store.ListNotificationConfigs(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list notification configs: %w", err)
	}
	deployments, err := p.store.ListDeployments(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	rules := &envRules{ignore: ignore, notifications: notifications, deployments: deployments}
	cache[subscriptionID] = rules
	return rules, nil
}

// matchIgnoreRule finds the first active ignore rule matching the message.
// Params: message and its environment's ignore rules.
// Returns: matched rule name and flag; broken rules are skipped, not fatal.
func (p *Processor) matchIgnoreRule(message domain.AlertMessage, rules []domain.AlertIgnoreRule) (string, bool) {
	now := p.clock.Now()
	for _, rule := range rules {
		if !rule.ActiveAt(now) {
			continue
		}
		matched, err := rule.IgnoreCondition.Matches(message.Stream())
		if err != nil {
			evalErr := &domain.RuleEvaluationError{RuleName: rule.Name, Err: err}
			p.logger.Warn("ignore rule evaluation failed", "rule", rule.Name, "error", evalErr)
			continue
		}
		if matched {
			return rule.Name, true
		}
	}
	return "", false
}

// buildTransitions derives the transition batch of one accepted alert.
// Params: environment tree, source record id, and the apply result.
// Returns: leaf transition first, then changed ancestors leaf-side up.
func (p *Processor) buildTransitions(tree *topology.Tree, recordID uuid.UUID, result topology.ApplyResult) []domain.StateTransition {
	transitions := make([]domain.StateTransition, 0, 1+len(result.ChangedAncestors))
	transitions = append(transitions, domain.StateTransition{
		GUID:                      uuid.New(),
		RecordID:                  recordID,
		EnvironmentSubscriptionID: tree.SubscriptionID(),
		EnvironmentName:           tree.Name(),
		ElementID:                 result.Leaf.Key.ElementID,
		CheckID:                   result.Leaf.Key.CheckID,
		AlertName:                 result.Leaf.Key.AlertName,
		ComponentType:             result.LeafNode.ComponentType,
		ElementState:              result.Leaf.State,
		ProgressState:             domain.ProgressStateNew,
	})
	for _, ancestor := range result.ChangedAncestors {
		transitions = append(transitions, domain.StateTransition{
			GUID:                      uuid.New(),
			EnvironmentSubscriptionID: tree.SubscriptionID(),
			EnvironmentName:           tree.Name(),
			ElementID:                 ancestor.ElementID,
			ComponentType:             ancestor.ComponentType,
			ElementState:              ancestor.State,
			ProgressState:             domain.ProgressStateNew,
		})
	}
	return transitions
}

// fanOut hands committed transitions to notification and push.
// Params: environment tree, committed transitions, and environment rules.
// Returns: none; downstream failures are logged, never propagated.
func (p *Processor) fanOut(ctx context.Context, tree *topology.Tree, transitions []domain.StateTransition, rules *envRules) {
	now := p.clock.Now()
	for _, transition := range transitions {
		if domain.InDeploymentWindow(rules.deployments, transition.ElementID, now) {
			// Recorded in history, excluded from notification dispatch.
			p.logger.Debug("transition inside deployment window",
				"elementId", transition.ElementID, "state", transition.ElementState.State)
			continue
		}
		elementName := ""
		if node, ok := tree.Element(transition.ElementID); ok {
			elementName = node.Name
		}
		p.dispatcher.Offer(transition, elementName, rules.notifications)
	}

	if err := p.publisher.UpdateStateTransitions(ctx, tree.SubscriptionID(), transitions); err != nil {
		p.logger.Warn("push publish failed",
			"subscriptionId", tree.SubscriptionID(), "event", "updateStateTransitions", "error", err)
	}
	if err := p.publisher.UpdateTree(ctx, tree.SubscriptionID(), tree.Snapshot()); err != nil {
		p.logger.Warn("push publish failed",
			"subscriptionId", tree.SubscriptionID(), "event", "updateTree", "error", err)
	}
}
