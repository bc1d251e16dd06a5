package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"providence/internal/domain"
	"providence/internal/topology"
)

var (
	// ErrNotFound indicates an absent record.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateRecord indicates the record id was already committed.
	ErrDuplicateRecord = errors.New("duplicate record")
)

// Store is the persistence collaborator consumed by the core.
// Params: transactional transition/history writes, rule and deployment
// reads, SLA job lifecycle, and masterdata lookup.
// Returns: backend persistence behavior; engine choice stays behind this
// interface.
type Store interface {
	topology.Lookup

	// CommitTransitions atomically appends the transitions, closes each
	// stream's open history interval, opens the next one, and marks the
	// source record id as processed when it is set. All-or-nothing:
	// a partial commit must never become visible.
	CommitTransitions(ctx context.Context, recordID uuid.UUID, transitions []domain.StateTransition) error

	// SeenRecord reports whether a record id was already committed.
	SeenRecord(ctx context.Context, recordID uuid.UUID) (bool, error)

	// SaveIgnoreAudit records one alert suppressed by an ignore rule.
	SaveIgnoreAudit(ctx context.Context, audit domain.IgnoreAudit) error

	// ReadHistory returns intervals overlapping [start, end) for the scope.
	ReadHistory(ctx context.Context, subscriptionID string, scope domain.SlaScope, start, end time.Time) ([]domain.HistoryInterval, error)

	// OpenIntervals returns every currently open interval of an environment.
	OpenIntervals(ctx context.Context, subscriptionID string) ([]domain.HistoryInterval, error)

	// PurgeHistory deletes closed intervals and transitions older than the cutoff.
	PurgeHistory(ctx context.Context, before time.Time) (int, error)

	// Rule and deployment reads; the CRUD surface writing them is external.
	ListIgnoreRules(ctx context.Context, subscriptionID string) ([]domain.AlertIgnoreRule, error)
	ListIncreaseRules(ctx context.Context, subscriptionID string) ([]domain.StateIncreaseRule, error)
	ListNotificationConfigs(ctx context.Context, subscriptionID string) ([]domain.NotificationConfiguration, error)
	ListDeployments(ctx context.Context, subscriptionID string) ([]domain.Deployment, error)

	// Background job lifecycle.
	CreateJob(ctx context.Context, job domain.InternalJob) error
	GetJob(ctx context.Context, id uuid.UUID) (domain.InternalJob, error)
	ClaimNextJob(ctx context.Context, jobType domain.JobType, now time.Time) (domain.InternalJob, bool, error)
	CompleteJob(ctx context.Context, id uuid.UUID, result []byte, jobErr string, now time.Time) (domain.InternalJob, error)

	Close() error
}
