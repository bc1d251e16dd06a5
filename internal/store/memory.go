package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"providence/internal/domain"
	"providence/internal/topology"
)

// MemoryStore keeps all persisted state in process memory.
// Params: guarded maps per record family.
// Returns: store implementation for single-instance mode and tests.
type MemoryStore struct {
	mu sync.RWMutex

	environments []topology.Definition
	transitions  []domain.StateTransition
	intervals    []*domain.HistoryInterval
	audits       []domain.IgnoreAudit
	records      map[uuid.UUID]struct{}

	ignoreRules   map[string][]domain.AlertIgnoreRule
	increaseRules map[string][]domain.StateIncreaseRule
	notifyConfigs map[string][]domain.NotificationConfiguration
	deployments   map[string][]domain.Deployment

	jobs map[uuid.UUID]domain.InternalJob
}

// NewMemoryStore creates an empty in-memory store.
// Params: none.
// Returns: initialized store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:       make(map[uuid.UUID]struct{}),
		ignoreRules:   make(map[string][]domain.AlertIgnoreRule),
		increaseRules: make(map[string][]domain.StateIncreaseRule),
		notifyConfigs: make(map[string][]domain.NotificationConfiguration),
		deployments:   make(map[string][]domain.Deployment),
		jobs:          make(map[uuid.UUID]domain.InternalJob),
	}
}

// ListEnvironments returns seeded environment definitions.
// Params: unused context.
// Returns: definition list copy.
func (s *MemoryStore) ListEnvironments(_ context.Context) ([]topology.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]topology.Definition(nil), s.environments...), nil
}

// SeedEnvironment registers one environment definition.
// Params: definition to store.
// Returns: none; used by single-instance bootstrap and tests.
func (s *MemoryStore) SeedEnvironment(definition topology.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.environments = append(s.environments, definition)
}

// CommitTransitions appends transitions and rolls history intervals atomically.
// Params: source record id (uuid.Nil for synthetic transitions) and the
// transition set of one accepted alert.
// Returns: ErrDuplicateRecord when the record id was already committed.
func (s *MemoryStore) CommitTransitions(_ context.Context, recordID uuid.UUID, transitions []domain.StateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if recordID != uuid.Nil {
		if _, seen := s.records[recordID]; seen {
			return ErrDuplicateRecord
		}
	}

	for _, transition := range transitions {
		s.transitions = append(s.transitions, transition)
		s.rollIntervalLocked(transition)
	}
	if recordID != uuid.Nil {
		s.records[recordID] = struct{}{}
	}
	return nil
}

// rollIntervalLocked closes the stream's open interval and opens the next.
// Params: accepted transition; caller holds the write lock.
// Returns: exactly one open interval per stream afterwards.
func (s *MemoryStore) rollIntervalLocked(transition domain.StateTransition) {
	key := transition.Stream()
	for _, interval := range s.intervals {
		if interval.EndDate != nil {
			continue
		}
		if interval.EnvironmentSubscriptionID != transition.EnvironmentSubscriptionID || interval.Stream() != key {
			continue
		}
		endDate := transition.ElementState.SourceTimestamp
		interval.EndDate = &endDate
	}
	s.intervals = append(s.intervals, &domain.HistoryInterval{
		EnvironmentSubscriptionID: transition.EnvironmentSubscriptionID,
		ElementID:                 transition.ElementID,
		CheckID:                   transition.CheckID,
		AlertName:                 transition.AlertName,
		ComponentType:             transition.ComponentType,
		State:                     transition.ElementState.State,
		StartDate:                 transition.ElementState.SourceTimestamp,
	})
}

// SeenRecord reports whether the record id was already committed.
// Params: record id from an intake message.
// Returns: dedup flag.
func (s *MemoryStore) SeenRecord(_ context.Context, recordID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, seen := s.records[recordID]
	return seen, nil
}

// SaveIgnoreAudit appends one suppression audit row.
// Params: audit payload.
// Returns: nil.
func (s *MemoryStore) SaveIgnoreAudit(_ context.Context, audit domain.IgnoreAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, audit)
	return nil
}

// IgnoreAudits returns all recorded suppression audits.
// Params: none.
// Returns: audit slice copy for tests.
func (s *MemoryStore) IgnoreAudits() []domain.IgnoreAudit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.IgnoreAudit(nil), s.audits...)
}

// Transitions returns all committed transitions.
// Params: none.
// Returns: transition slice copy for tests.
func (s *MemoryStore) Transitions() []domain.StateTransition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StateTransition(nil), s.transitions...)
}

// ReadHistory returns intervals overlapping the range for the scope.
// Params: environment, element/componentType scope, and [start, end) range.
// Returns: matching intervals sorted by start date.
func (s *MemoryStore) ReadHistory(_ context.Context, subscriptionID string, scope domain.SlaScope, start, end time.Time) ([]domain.HistoryInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HistoryInterval, 0)
	for _, interval := range s.intervals {
		if interval.EnvironmentSubscriptionID != subscriptionID {
			continue
		}
		if scope.ElementID != "" && interval.ElementID != scope.ElementID {
			continue
		}
		if scope.ComponentType != "" && !strings.EqualFold(interval.ComponentType, scope.ComponentType) {
			continue
		}
		if !interval.StartDate.Before(end) {
			continue
		}
		if interval.EndDate != nil && !interval.EndDate.After(start) {
			continue
		}
		out = append(out, *interval)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// OpenIntervals returns currently open intervals of one environment.
// Params: environment subscription id.
// Returns: open interval copies.
func (s *MemoryStore) OpenIntervals(_ context.Context, subscriptionID string) ([]domain.HistoryInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HistoryInterval, 0)
	for _, interval := range s.intervals {
		if interval.EndDate == nil && interval.EnvironmentSubscriptionID == subscriptionID {
			out = append(out, *interval)
		}
	}
	return out, nil
}

// PurgeHistory removes closed intervals and transitions older than the cutoff.
// Params: retention cutoff instant.
// Returns: number of removed rows.
func (s *MemoryStore) PurgeHistory(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	keptIntervals := s.intervals[:0]
	for _, interval := range s.intervals {
		if interval.EndDate != nil && interval.EndDate.Before(before) {
			removed++
			continue
		}
		keptIntervals = append(keptIntervals, interval)
	}
	s.intervals = keptIntervals

	keptTransitions := s.transitions[:0]
	for _, transition := range s.transitions {
		if transition.ElementState.SourceTimestamp.Before(before) {
			removed++
			continue
		}
		keptTransitions = append(keptTransitions, transition)
	}
	s.transitions = keptTransitions
	return removed, nil
}

// ListIgnoreRules returns ignore rules of one environment.
// Params: environment subscription id.
// Returns: rule slice copy.
func (s *MemoryStore) ListIgnoreRules(_ context.Context, subscriptionID string) ([]domain.AlertIgnoreRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AlertIgnoreRule(nil), s.ignoreRules[subscriptionID]...), nil
}

// PutIgnoreRule registers one ignore rule.
// Params: rule payload.
// Returns: validation error for inverted windows.
func (s *MemoryStore) PutIgnoreRule(rule domain.AlertIgnoreRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("ignore rule %q: %w", rule.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreRules[rule.EnvironmentSubscriptionID] = append(s.ignoreRules[rule.EnvironmentSubscriptionID], rule)
	return nil
}

// ListIncreaseRules returns state-increase rules of one environment.
// Params: environment subscription id.
// Returns: rule slice copy.
func (s *MemoryStore) ListIncreaseRules(_ context.Context, subscriptionID string) ([]domain.StateIncreaseRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StateIncreaseRule(nil), s.increaseRules[subscriptionID]...), nil
}

// PutIncreaseRule registers one state-increase rule.
// Params: rule payload.
// Returns: none.
func (s *MemoryStore) PutIncreaseRule(rule domain.StateIncreaseRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increaseRules[rule.EnvironmentSubscriptionID] = append(s.increaseRules[rule.EnvironmentSubscriptionID], rule)
}

// ListNotificationConfigs returns notification rules of one environment.
// Params: environment subscription id.
// Returns: rule slice copy.
func (s *MemoryStore) ListNotificationConfigs(_ context.Context, subscriptionID string) ([]domain.NotificationConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.NotificationConfiguration(nil), s.notifyConfigs[subscriptionID]...), nil
}

// PutNotificationConfig registers one notification rule.
// Params: rule payload.
// Returns: none.
func (s *MemoryStore) PutNotificationConfig(config domain.NotificationConfiguration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyConfigs[config.EnvironmentSubscriptionID] = append(s.notifyConfigs[config.EnvironmentSubscriptionID], config)
}

// ListDeployments returns deployment windows of one environment.
// Params: environment subscription id.
// Returns: deployment slice copy.
func (s *MemoryStore) ListDeployments(_ context.Context, subscriptionID string) ([]domain.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Deployment(nil), s.deployments[subscriptionID]...), nil
}

// PutDeployment registers one deployment window.
// Params: deployment payload.
// Returns: none.
func (s *MemoryStore) PutDeployment(deployment domain.Deployment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments[deployment.EnvironmentSubscriptionID] = append(s.deployments[deployment.EnvironmentSubscriptionID], deployment)
}

// CreateJob stores one queued background job.
// Params: job row with queued state.
// Returns: error for duplicate job ids.
func (s *MemoryStore) CreateJob(_ context.Context, job domain.InternalJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob returns one job by id.
// Params: job id.
// Returns: job row or ErrNotFound.
func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (domain.InternalJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.InternalJob{}, ErrNotFound
	}
	return job, nil
}

// ClaimNextJob atomically moves the oldest queued job to running.
// Params: job type and claim time.
// Returns: claimed job and found flag.
func (s *MemoryStore) ClaimNextJob(_ context.Context, jobType domain.JobType, now time.Time) (domain.InternalJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest domain.InternalJob
	found := false
	for _, job := range s.jobs {
		if job.Type != jobType || job.State != domain.JobStateQueued {
			continue
		}
		if !found || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
			found = true
		}
	}
	if !found {
		return domain.InternalJob{}, false, nil
	}
	startedAt := now
	oldest.State = domain.JobStateRunning
	oldest.StartedAt = &startedAt
	s.jobs[oldest.ID] = oldest
	return oldest, true, nil
}

// CompleteJob finalizes one running job as done or failed.
// Params: job id, optional result blob, optional error detail, and finish time.
// Returns: updated job row or ErrNotFound.
func (s *MemoryStore) CompleteJob(_ context.Context, id uuid.UUID, result []byte, jobErr string, now time.Time) (domain.InternalJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.InternalJob{}, ErrNotFound
	}
	finishedAt := now
	job.FinishedAt = &finishedAt
	if jobErr != "" {
		job.State = domain.JobStateFailed
		job.Error = jobErr
		job.Result = nil
	} else {
		job.State = domain.JobStateDone
		job.Result = append([]byte(nil), result...)
	}
	s.jobs[id] = job
	return job, nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}
