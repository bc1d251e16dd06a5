package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"providence/internal/domain"
	"providence/internal/topology"
)

// PostgresStore persists core state in PostgreSQL via a pgx pool.
// Params: connection pool built from the configured DSN.
// Returns: store implementation for multi-instance deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and ensures the schema.
// Params: context and DSN.
// Returns: initialized store or connection/schema error.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// ensureSchema creates tables and indexes when they do not exist.
// Params: context for DDL statements.
// Returns: first DDL error.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS environments (
			subscription_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			nodes JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS alert_records (
			record_id UUID PRIMARY KEY,
			committed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS state_transitions (
			guid UUID PRIMARY KEY,
			record_id UUID,
			subscription_id TEXT NOT NULL,
			environment_name TEXT NOT NULL DEFAULT '',
			element_id TEXT NOT NULL,
			check_id TEXT NOT NULL DEFAULT '',
			alert_name TEXT NOT NULL DEFAULT '',
			component_type TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			source_timestamp TIMESTAMPTZ NOT NULL,
			generated_timestamp TIMESTAMPTZ NOT NULL,
			triggered_by_element TEXT NOT NULL DEFAULT '',
			triggered_by_check TEXT NOT NULL DEFAULT '',
			triggered_by_alert TEXT NOT NULL DEFAULT '',
			escalated BOOLEAN NOT NULL DEFAULT FALSE,
			custom_fields JSONB,
			progress_state TEXT NOT NULL DEFAULT 'new'
		)`,
		`CREATE INDEX IF NOT EXISTS state_transitions_stream_idx
			ON state_transitions(subscription_id, element_id, check_id, alert_name, source_timestamp)`,
		`CREATE TABLE IF NOT EXISTS history_intervals (
			id BIGSERIAL PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			element_id TEXT NOT NULL,
			check_id TEXT NOT NULL DEFAULT '',
			alert_name TEXT NOT NULL DEFAULT '',
			component_type TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS history_intervals_scope_idx
			ON history_intervals(subscription_id, element_id, start_date)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS history_intervals_open_idx
			ON history_intervals(subscription_id, element_id, check_id, alert_name)
			WHERE end_date IS NULL`,
		`CREATE TABLE IF NOT EXISTS ignore_audit (
			record_id UUID NOT NULL,
			subscription_id TEXT NOT NULL,
			element_id TEXT NOT NULL,
			check_id TEXT NOT NULL DEFAULT '',
			alert_name TEXT NOT NULL DEFAULT '',
			rule_name TEXT NOT NULL,
			state TEXT NOT NULL,
			ignored_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ignore_rules (
			name TEXT NOT NULL,
			subscription_id TEXT NOT NULL,
			creation_date TIMESTAMPTZ NOT NULL,
			expiration_date TIMESTAMPTZ NOT NULL,
			condition JSONB NOT NULL,
			PRIMARY KEY (subscription_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS increase_rules (
			id BIGSERIAL PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			component_id TEXT NOT NULL DEFAULT '',
			check_id TEXT NOT NULL DEFAULT '',
			alert_name TEXT NOT NULL DEFAULT '',
			trigger_time_seconds INT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS notification_configs (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			email_addresses JSONB NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			interval_seconds INT NOT NULL DEFAULT 0,
			component_types JSONB NOT NULL DEFAULT '[]',
			states JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS deployments (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			element_ids JSONB NOT NULL DEFAULT '[]',
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ,
			repeat_type TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS internal_jobs (
			id UUID PRIMARY KEY,
			type TEXT NOT NULL,
			state TEXT NOT NULL,
			subscription_id TEXT NOT NULL,
			request JSONB NOT NULL,
			result JSONB,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS internal_jobs_queue_idx
			ON internal_jobs(type, state, created_at)`,
	}
	for _, statement := range statements {
		if _, err := s.pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ListEnvironments loads environment definitions from masterdata tables.
// Params: context.
// Returns: definitions with decoded node lists.
func (s *PostgresStore) ListEnvironments(ctx context.Context) ([]topology.Definition, error) {
	rows, err := s.pool.Query(ctx, `SELECT subscription_id, name, nodes FROM environments ORDER BY subscription_id`)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	definitions := make([]topology.Definition, 0)
	for rows.Next() {
		var definition topology.Definition
		var nodes []byte
		if err := rows.Scan(&definition.SubscriptionID, &definition.Name, &nodes); err != nil {
			return nil, fmt.Errorf("scan environment: %w", err)
		}
		if err := json.Unmarshal(nodes, &definition.Nodes); err != nil {
			return nil, fmt.Errorf("decode environment %q nodes: %w", definition.SubscriptionID, err)
		}
		definitions = append(definitions, definition)
	}
	return definitions, rows.Err()
}

// CommitTransitions writes transitions and rolls intervals in one transaction.
// Params: source record id and transitions of one accepted alert.
// Returns: ErrDuplicateRecord for replayed record ids; otherwise the whole
// commit succeeds or nothing becomes visible.
func (s *PostgresStore) CommitTransitions(ctx context.Context, recordID uuid.UUID, transitions []domain.StateTransition) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if recordID != uuid.Nil {
		tag, err := tx.Exec(ctx,
			`INSERT INTO alert_records (record_id) VALUES ($1) ON CONFLICT (record_id) DO NOTHING`, recordID)
		if err != nil {
			return fmt.Errorf("mark record: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrDuplicateRecord
		}
	}

	for _, transition := range transitions {
		var customFields []byte
		if len(transition.ElementState.CustomFields) > 0 {
			customFields, err = json.Marshal(transition.ElementState.CustomFields)
			if err != nil {
				return fmt.Errorf("encode custom fields: %w", err)
			}
		}
		progress := transition.ProgressState
		if progress == "" {
			progress = domain.ProgressStateNew
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO state_transitions (
				guid, record_id, subscription_id, environment_name, element_id,
				check_id, alert_name, component_type, state,
				source_timestamp, generated_timestamp,
				triggered_by_element, triggered_by_check, triggered_by_alert,
				escalated, custom_fields, progress_state
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			transition.GUID, nullUUID(transition.RecordID), transition.EnvironmentSubscriptionID,
			transition.EnvironmentName, transition.ElementID, transition.CheckID, transition.AlertName,
			transition.ComponentType, transition.ElementState.State,
			transition.ElementState.SourceTimestamp, transition.ElementState.GeneratedTimestamp,
			transition.ElementState.TriggeredByElementID, transition.ElementState.TriggeredByCheckID,
			transition.ElementState.TriggeredByAlertName, transition.ElementState.Escalated,
			customFields, progress,
		); err != nil {
			return fmt.Errorf("insert transition: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE history_intervals SET end_date = $5
			WHERE subscription_id = $1 AND element_id = $2 AND check_id = $3 AND alert_name = $4
			  AND end_date IS NULL`,
			transition.EnvironmentSubscriptionID, transition.ElementID, transition.CheckID,
			transition.AlertName, transition.ElementState.SourceTimestamp,
		); err != nil {
			return fmt.Errorf("close interval: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO history_intervals (
				subscription_id, element_id, check_id, alert_name, component_type, state, start_date
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			transition.EnvironmentSubscriptionID, transition.ElementID, transition.CheckID,
			transition.AlertName, transition.ComponentType, transition.ElementState.State,
			transition.ElementState.SourceTimestamp,
		); err != nil {
			return fmt.Errorf("open interval: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transitions: %w", err)
	}
	return nil
}

// SeenRecord reports whether the record id was already committed.
// Params: record id from an intake message.
// Returns: dedup flag.
func (s *PostgresStore) SeenRecord(ctx context.Context, recordID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM alert_records WHERE record_id = $1)`, recordID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("seen record: %w", err)
	}
	return exists, nil
}

// SaveIgnoreAudit inserts one suppression audit row.
// Params: audit payload.
// Returns: insert error.
func (s *PostgresStore) SaveIgnoreAudit(ctx context.Context, audit domain.IgnoreAudit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ignore_audit (record_id, subscription_id, element_id, check_id, alert_name, rule_name, state, ignored_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		audit.RecordID, audit.EnvironmentSubscriptionID, audit.ElementID, audit.CheckID,
		audit.AlertName, audit.RuleName, audit.State, audit.IgnoredAt)
	if err != nil {
		return fmt.Errorf("save ignore audit: %w", err)
	}
	return nil
}

// ReadHistory returns intervals overlapping the range for the scope.
// Params: environment, element/componentType scope, and [start, end) range.
// Returns: matching intervals sorted by start date.
func (s *PostgresStore) ReadHistory(ctx context.Context, subscriptionID string, scope domain.SlaScope, start, end time.Time) ([]domain.HistoryInterval, error) {
	query := `
		SELECT subscription_id, element_id, check_id, alert_name, component_type, state, start_date, end_date
		FROM history_intervals
		WHERE subscription_id = $1
		  AND start_date < $2
		  AND (end_date IS NULL OR end_date > $3)`
	args := []any{subscriptionID, end, start}
	if scope.ElementID != "" {
		query += ` AND element_id = $4`
		args = append(args, scope.ElementID)
	} else if scope.ComponentType != "" {
		query += ` AND lower(component_type) = lower($4)`
		args = append(args, scope.ComponentType)
	}
	query += ` ORDER BY start_date`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()
	return scanIntervals(rows)
}

// OpenIntervals returns currently open intervals of one environment.
// Params: environment subscription id.
// Returns: open interval rows.
func (s *PostgresStore) OpenIntervals(ctx context.Context, subscriptionID string) ([]domain.HistoryInterval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subscription_id, element_id, check_id, alert_name, component_type, state, start_date, end_date
		FROM history_intervals
		WHERE subscription_id = $1 AND end_date IS NULL`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("open intervals: %w", err)
	}
	defer rows.Close()
	return scanIntervals(rows)
}

func scanIntervals(rows pgx.Rows) ([]domain.HistoryInterval, error) {
	out := make([]domain.HistoryInterval, 0)
	for rows.Next() {
		var interval domain.HistoryInterval
		if err := rows.Scan(
			&interval.EnvironmentSubscriptionID, &interval.ElementID, &interval.CheckID,
			&interval.AlertName, &interval.ComponentType, &interval.State,
			&interval.StartDate, &interval.EndDate,
		); err != nil {
			return nil, fmt.Errorf("scan interval: %w", err)
		}
		out = append(out, interval)
	}
	return out, rows.Err()
}

// PurgeHistory deletes closed intervals and old transitions before the cutoff.
// Params: retention cutoff instant.
// Returns: number of deleted rows.
func (s *PostgresStore) PurgeHistory(ctx context.Context, before time.Time) (int, error) {
	intervalTag, err := s.pool.Exec(ctx,
		`DELETE FROM history_intervals WHERE end_date IS NOT NULL AND end_date < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge intervals: %w", err)
	}
	transitionTag, err := s.pool.Exec(ctx,
		`DELETE FROM state_transitions WHERE source_timestamp < $1`, before)
	if err != nil {
		return int(intervalTag.RowsAffected()), fmt.Errorf("purge transitions: %w", err)
	}
	return int(intervalTag.RowsAffected() + transitionTag.RowsAffected()), nil
}

// ListIgnoreRules returns ignore rules of one environment.
// Params: environment subscription id.
// Returns: decoded rule list.
func (s *PostgresStore) ListIgnoreRules(ctx context.Context, subscriptionID string) ([]domain.AlertIgnoreRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, subscription_id, creation_date, expiration_date, condition
		FROM ignore_rules WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list ignore rules: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AlertIgnoreRule, 0)
	for rows.Next() {
		var rule domain.AlertIgnoreRule
		var condition []byte
		if err := rows.Scan(&rule.Name, &rule.EnvironmentSubscriptionID, &rule.CreationDate, &rule.ExpirationDate, &condition); err != nil {
			return nil, fmt.Errorf("scan ignore rule: %w", err)
		}
		if err := json.Unmarshal(condition, &rule.IgnoreCondition); err != nil {
			return nil, fmt.Errorf("decode ignore condition %q: %w", rule.Name, err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// ListIncreaseRules returns state-increase rules of one environment.
// Params: environment subscription id.
// Returns: rule list.
func (s *PostgresStore) ListIncreaseRules(ctx context.Context, subscriptionID string) ([]domain.StateIncreaseRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subscription_id, component_id, check_id, alert_name, trigger_time_seconds, is_active
		FROM increase_rules WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list increase rules: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StateIncreaseRule, 0)
	for rows.Next() {
		var rule domain.StateIncreaseRule
		if err := rows.Scan(&rule.EnvironmentSubscriptionID, &rule.ComponentID, &rule.CheckID,
			&rule.AlertName, &rule.TriggerTimeSeconds, &rule.IsActive); err != nil {
			return nil, fmt.Errorf("scan increase rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// ListNotificationConfigs returns notification rules of one environment.
// Params: environment subscription id.
// Returns: decoded rule list.
func (s *PostgresStore) ListNotificationConfigs(ctx context.Context, subscriptionID string) ([]domain.NotificationConfiguration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subscription_id, email_addresses, is_active, interval_seconds, component_types, states
		FROM notification_configs WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list notification configs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.NotificationConfiguration, 0)
	for rows.Next() {
		var config domain.NotificationConfiguration
		var emails, componentTypes, states []byte
		if err := rows.Scan(&config.ID, &config.EnvironmentSubscriptionID, &emails, &config.IsActive,
			&config.NotificationIntervalSeconds, &componentTypes, &states); err != nil {
			return nil, fmt.Errorf("scan notification config: %w", err)
		}
		if err := json.Unmarshal(emails, &config.EmailAddresses); err != nil {
			return nil, fmt.Errorf("decode notification config %q emails: %w", config.ID, err)
		}
		if err := json.Unmarshal(componentTypes, &config.ComponentTypes); err != nil {
			return nil, fmt.Errorf("decode notification config %q component types: %w", config.ID, err)
		}
		if err := json.Unmarshal(states, &config.States); err != nil {
			return nil, fmt.Errorf("decode notification config %q states: %w", config.ID, err)
		}
		out = append(out, config)
	}
	return out, rows.Err()
}

// ListDeployments returns deployment windows of one environment.
// Params: environment subscription id.
// Returns: decoded deployment list.
func (s *PostgresStore) ListDeployments(ctx context.Context, subscriptionID string) ([]domain.Deployment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subscription_id, element_ids, start_date, end_date, repeat_type
		FROM deployments WHERE subscription_id = $1`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Deployment, 0)
	for rows.Next() {
		var deployment domain.Deployment
		var elementIDs []byte
		var repeatType string
		if err := rows.Scan(&deployment.ID, &deployment.EnvironmentSubscriptionID, &elementIDs,
			&deployment.StartDate, &deployment.EndDate, &repeatType); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		if err := json.Unmarshal(elementIDs, &deployment.ElementIDs); err != nil {
			return nil, fmt.Errorf("decode deployment %q elements: %w", deployment.ID, err)
		}
		if repeatType != "" {
			deployment.RepeatInformation = &domain.RepeatInformation{Type: domain.RepeatType(repeatType)}
		}
		out = append(out, deployment)
	}
	return out, rows.Err()
}

// CreateJob inserts one queued background job.
// Params: job row with queued state.
// Returns: insert error.
func (s *PostgresStore) CreateJob(ctx context.Context, job domain.InternalJob) error {
	request, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("encode job request: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO internal_jobs (id, type, state, subscription_id, request, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		job.ID, job.Type, job.State, job.EnvironmentSubscriptionID, request, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetJob returns one job by id.
// Params: job id.
// Returns: job row or ErrNotFound.
func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (domain.InternalJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, type, state, subscription_id, request, result, error, created_at, started_at, finished_at
		FROM internal_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.InternalJob{}, ErrNotFound
	}
	return job, err
}

// ClaimNextJob atomically moves the oldest queued job to running.
// Params: job type and claim time.
// Returns: claimed job and found flag; concurrent workers never claim twice.
func (s *PostgresStore) ClaimNextJob(ctx context.Context, jobType domain.JobType, now time.Time) (domain.InternalJob, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE internal_jobs SET state = $1, started_at = $2
		WHERE id = (
			SELECT id FROM internal_jobs
			WHERE type = $3 AND state = $4
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, type, state, subscription_id, request, result, error, created_at, started_at, finished_at`,
		domain.JobStateRunning, now, jobType, domain.JobStateQueued)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.InternalJob{}, false, nil
	}
	if err != nil {
		return domain.InternalJob{}, false, err
	}
	return job, true, nil
}

// CompleteJob finalizes one running job as done or failed.
// Params: job id, optional result blob, optional error detail, and finish time.
// Returns: updated job row or ErrNotFound.
func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, result []byte, jobErr string, now time.Time) (domain.InternalJob, error) {
	state := domain.JobStateDone
	if jobErr != "" {
		state = domain.JobStateFailed
		result = nil
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE internal_jobs SET state = $1, result = $2, error = $3, finished_at = $4
		WHERE id = $5
		RETURNING id, type, state, subscription_id, request, result, error, created_at, started_at, finished_at`,
		state, result, jobErr, now, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.InternalJob{}, ErrNotFound
	}
	return job, err
}

func scanJob(row pgx.Row) (domain.InternalJob, error) {
	var job domain.InternalJob
	var request []byte
	var result []byte
	if err := row.Scan(&job.ID, &job.Type, &job.State, &job.EnvironmentSubscriptionID,
		&request, &result, &job.Error, &job.CreatedAt, &job.StartedAt, &job.FinishedAt); err != nil {
		return domain.InternalJob{}, err
	}
	if err := json.Unmarshal(request, &job.Request); err != nil {
		return domain.InternalJob{}, fmt.Errorf("decode job %s request: %w", job.ID, err)
	}
	job.Result = result
	return job, nil
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// Close releases the connection pool.
// Params: none.
// Returns: nil.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
