package sla

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"providence/internal/clock"
	"providence/internal/domain"
	"providence/internal/push"
	"providence/internal/store"
)

func newRunnerFixture(t *testing.T) (*Runner, *store.MemoryStore, *clock.Manual) {
	t.Helper()
	memory := store.NewMemoryStore()
	manual := clock.NewManual(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := NewRunner(memory, push.Nop{}, manual, logger, nil, 1, time.Millisecond)
	return runner, memory, manual
}

func queueJob(t *testing.T, memory *store.MemoryStore, manual *clock.Manual, request domain.SlaRequest) uuid.UUID {
	t.Helper()
	job := domain.InternalJob{
		ID:                        uuid.New(),
		Type:                      domain.JobTypeSla,
		State:                     domain.JobStateQueued,
		EnvironmentSubscriptionID: "sub-1",
		Request:                   request,
		CreatedAt:                 manual.Now(),
	}
	if err := memory.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job.ID
}

func TestProcessNextComputesAndStoresResult(t *testing.T) {
	t.Parallel()

	runner, memory, manual := newRunnerFixture(t)

	// Seed a half-hour outage via the regular commit path.
	start := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	commit := func(state domain.State, at time.Time) {
		t.Helper()
		err := memory.CommitTransitions(context.Background(), uuid.New(), []domain.StateTransition{{
			GUID:                      uuid.New(),
			EnvironmentSubscriptionID: "sub-1",
			ElementID:                 "comp-a",
			CheckID:                   "http",
			AlertName:                 "latency",
			ElementState:              domain.ElementState{State: state, SourceTimestamp: at},
		}})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	commit(domain.StateError, start)
	commit(domain.StateOk, end)

	jobID := queueJob(t, memory, manual, domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 4, 1, 11, 0, 0, 0, time.UTC),
	})

	processed, err := runner.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !processed {
		t.Fatalf("no job processed")
	}

	job, err := memory.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.State != domain.JobStateDone {
		t.Fatalf("job state = %s, error = %q", job.State, job.Error)
	}
	var result Result
	if err := json.Unmarshal(job.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.CalculatedValue != 0.75 {
		t.Fatalf("availability = %v, want 0.75", result.CalculatedValue)
	}
}

func TestProcessNextFailsJobsWithBadScope(t *testing.T) {
	t.Parallel()

	runner, memory, manual := newRunnerFixture(t)
	jobID := queueJob(t, memory, manual, domain.SlaRequest{
		StartDate: manual.Now().Add(-time.Hour),
		EndDate:   manual.Now(),
	})

	if processed, err := runner.ProcessNext(context.Background()); err != nil || !processed {
		t.Fatalf("process = %v, %v", processed, err)
	}

	job, err := memory.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.State != domain.JobStateFailed || job.Error == "" {
		t.Fatalf("job = %+v, want failed with error detail", job)
	}
}

func TestProcessNextReturnsFalseOnEmptyQueue(t *testing.T) {
	t.Parallel()

	runner, _, _ := newRunnerFixture(t)
	processed, err := runner.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if processed {
		t.Fatalf("processed nonexistent job")
	}
}

func TestProcessNextClaimsOldestFirst(t *testing.T) {
	t.Parallel()

	runner, memory, manual := newRunnerFixture(t)
	request := domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: manual.Now().Add(-2 * time.Hour),
		EndDate:   manual.Now().Add(-time.Hour),
	}
	first := queueJob(t, memory, manual, request)
	manual.Advance(time.Second)
	second := queueJob(t, memory, manual, request)

	if _, err := runner.ProcessNext(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	firstJob, _ := memory.GetJob(context.Background(), first)
	secondJob, _ := memory.GetJob(context.Background(), second)
	if !firstJob.State.Terminal() {
		t.Fatalf("older job not processed first: %s", firstJob.State)
	}
	if secondJob.State != domain.JobStateQueued {
		t.Fatalf("newer job state = %s, want queued", secondJob.State)
	}
}
