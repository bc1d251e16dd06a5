package escalate

import (
	"context"
	"log/slog"
	"time"

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

// escalatedSuffix marks synthetic alert names on escalation transitions.
const escalatedSuffix = ":escalated"

// Scanner promotes streams stuck in warning according to increase rules.
// Params: registry, store, recorder, dispatcher, and push collaborators.
// Returns: periodic scan engine driven by the service ticker.
type Scanner struct {
	registry   *topology.Registry
	store      store.Store
	recorder   *history.Recorder
	dispatcher *notify.Dispatcher
	publisher  push.Publisher
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewScanner creates an escalation scanner.
// Params: collaborators shared with the intake pipeline.
// Returns: initialized scanner.
func NewScanner(
	registry *topology.Registry,
	st store.Store,
	recorder *history.Recorder,
	dispatcher *notify.Dispatcher,
	publisher push.Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Scanner {
	return &Scanner{
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

// ScanOnce evaluates every environment once.
// Params: context for store reads and commits.
// Returns: number of escalations performed.
func (s *Scanner) ScanOnce(ctx context.Context) int {
	escalated := 0
	for _, subscriptionID := range s.registry.SubscriptionIDs() {
		tree, ok := s.registry.Tree(subscriptionID)
		if !ok {
			continue
		}
		escalated += s.scanEnvironment(ctx, tree)
	}
	return escalated
}

// scanEnvironment evaluates one environment's non-ok streams.
// Params: environment tree.
// Returns: escalations performed in this environment.
func (s *Scanner) scanEnvironment(ctx context.Context, tree *topology.Tree) int {
	subscriptionID := tree.SubscriptionID()
	rules, err := s.store.ListIncreaseRules(ctx, subscriptionID)
	if err != nil {
		s.logger.Error("increase rule load failed", "subscriptionId", subscriptionID, "error", err)
		return 0
	}
	if len(rules) == 0 {
		return 0
	}

	now := s.clock.Now()
	escalated := 0
	for _, stream := range tree.NonOkStreams() {
		// Escalation is idempotent: an already escalated stream stays
		// escalated until it recovers.
		if stream.Escalated {
			continue
		}
		// Only warning can be increased; error is already the worst state.
		if stream.State.State != domain.StateWarning {
			continue
		}
		rule, ok := domain.BestIncreaseRule(rules, stream.Key)
		if !ok {
			continue
		}
		if now.Sub(stream.Since) < rule.TriggerTime() {
			continue
		}
		if s.escalateStream(ctx, tree, stream, now) {
			escalated++
		}
	}
	return escalated
}

// escalateStream applies one synthetic error transition for a dwelled stream.
// Params: environment tree, stream snapshot, and scan instant.
// Returns: true when the escalation was applied and committed.
func (s *Scanner) escalateStream(ctx context.Context, tree *topology.Tree, stream topology.StreamSnapshot, now time.Time) bool {
	next := domain.ElementState{
		State:                domain.StateError,
		SourceTimestamp:      now,
		GeneratedTimestamp:   now,
		CustomFields:         stream.State.CustomFields,
		TriggeredByElementID: stream.Key.ElementID,
		TriggeredByCheckID:   stream.Key.CheckID,
		TriggeredByAlertName: stream.Key.AlertName + escalatedSuffix,
		Escalated:            true,
	}
	result, err := tree.ApplyLeafState(stream.Key, next)
	if err != nil {
		s.logger.Error("escalation apply failed", "stream", stream.Key.String(), "error", err)
		return false
	}
	if !result.Changed {
		return false
	}

	transitions := s.buildTransitions(tree, result)
	if err := s.recorder.Commit(ctx, uuid.Nil, transitions); err != nil {
		// Undo the escalated marker so the next scan retries the stream.
		tree.RevertLeafState(stream.Key, result)
		s.logger.Error("escalation commit failed", "stream", stream.Key.String(), "error", err)
		return false
	}
	s.logger.Info("stream escalated",
		"subscriptionId", tree.SubscriptionID(),
		"stream", stream.Key.String(),
		"dwell", now.Sub(stream.Since))
	if s.metrics != nil {
		s.metrics.Escalations.Inc()
		s.metrics.TransitionsRecorded.Add(float64(len(transitions)))
	}

	s.fanOut(ctx, tree, transitions, now)
	return true
}

// buildTransitions derives the transition batch of one escalation.
// Params: environment tree and the apply result.
// Returns: leaf transition first, then changed ancestors leaf-side up.
func (s *Scanner) buildTransitions(tree *topology.Tree, result topology.ApplyResult) []domain.StateTransition {
	transitions := make([]domain.StateTransition, 0, 1+len(result.ChangedAncestors))
	transitions = append(transitions, domain.StateTransition{
		GUID:                      uuid.New(),
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

// fanOut hands escalation transitions to notification and push.
// Params: environment tree, committed transitions, and scan instant.
// Returns: none; downstream failures are logged only.
func (s *Scanner) fanOut(ctx context.Context, tree *topology.Tree, transitions []domain.StateTransition, now time.Time) {
	subscriptionID := tree.SubscriptionID()
	notifications, err := s.store.ListNotificationConfigs(ctx, subscriptionID)
	if err != nil {
		s.logger.Error("notification rule load failed", "subscriptionId", subscriptionID, "error", err)
		notifications = nil
	}
	deployments, err := s.store.ListDeployments(ctx, subscriptionID)
	if err != nil {
		s.logger.Error("deployment load failed", "subscriptionId", subscriptionID, "error", err)
		deployments = nil
	}

	for _, transition := range transitions {
		if domain.InDeploymentWindow(deployments, transition.ElementID, now) {
			continue
		}
		elementName := ""
		if node, ok := tree.Element(transition.ElementID); ok {
			elementName = node.Name
		}
		s.dispatcher.Offer(transition, elementName, notifications)
	}

	if err := s.publisher.UpdateStateTransitions(ctx, subscriptionID, transitions); err != nil {
		s.logger.Warn("push publish failed",
			"subscriptionId", subscriptionID, "event", "updateStateTransitions", "error", err)
	}
}
