package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"providence/internal/domain"
)

func commitStateAt(t *testing.T, s *MemoryStore, state domain.State, at time.Time) {
	t.Helper()
	err := s.CommitTransitions(context.Background(), uuid.New(), []domain.StateTransition{{
		GUID:                      uuid.New(),
		EnvironmentSubscriptionID: "sub-1",
		ElementID:                 "chk-1",
		CheckID:                   "http",
		AlertName:                 "latency",
		ComponentType:             "webshop",
		ElementState:              domain.ElementState{State: state, SourceTimestamp: at},
	}})
	if err != nil {
		t.Fatalf("commit at %s: %v", at, err)
	}
}

func TestCommitTransitionsRollsIntervals(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	commitStateAt(t, s, domain.StateOk, base)
	commitStateAt(t, s, domain.StateError, base.Add(30*time.Minute))
	commitStateAt(t, s, domain.StateOk, base.Add(time.Hour))

	intervals, err := s.ReadHistory(context.Background(), "sub-1",
		domain.SlaScope{ElementID: "chk-1"}, base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(intervals) != 3 {
		t.Fatalf("intervals = %d, want 3", len(intervals))
	}

	// Contiguous and exactly one open interval.
	for i := 0; i < len(intervals)-1; i++ {
		if intervals[i].EndDate == nil {
			t.Fatalf("interval %d left open in the middle", i)
		}
		if !intervals[i].EndDate.Equal(intervals[i+1].StartDate) {
			t.Fatalf("gap between interval %d and %d", i, i+1)
		}
	}
	last := intervals[len(intervals)-1]
	if !last.Open() || last.State != domain.StateOk {
		t.Fatalf("last interval = %+v, want open ok", last)
	}

	open, err := s.OpenIntervals(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("open intervals: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open intervals = %d, want 1", len(open))
	}
}

func TestCommitTransitionsDeduplicatesRecordIDs(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	recordID := uuid.New()
	batch := []domain.StateTransition{{
		GUID:                      uuid.New(),
		EnvironmentSubscriptionID: "sub-1",
		ElementID:                 "chk-1",
		CheckID:                   "http",
		AlertName:                 "latency",
		ElementState: domain.ElementState{
			State:           domain.StateError,
			SourceTimestamp: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		},
	}}

	if err := s.CommitTransitions(context.Background(), recordID, batch); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.CommitTransitions(context.Background(), recordID, batch); err != ErrDuplicateRecord {
		t.Fatalf("second commit = %v, want ErrDuplicateRecord", err)
	}
	if seen, _ := s.SeenRecord(context.Background(), recordID); !seen {
		t.Fatalf("record not marked seen")
	}

	// Synthetic commits with a nil record id never collide.
	if err := s.CommitTransitions(context.Background(), uuid.Nil, batch); err != nil {
		t.Fatalf("nil-record commit: %v", err)
	}
	if err := s.CommitTransitions(context.Background(), uuid.Nil, batch); err != nil {
		t.Fatalf("repeated nil-record commit: %v", err)
	}
}

func TestReadHistoryFiltersByComponentType(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	commitStateAt(t, s, domain.StateError, base)

	matched, err := s.ReadHistory(context.Background(), "sub-1",
		domain.SlaScope{ComponentType: "WEBSHOP"}, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("case-folded componentType missed: %d intervals", len(matched))
	}

	other, err := s.ReadHistory(context.Background(), "sub-1",
		domain.SlaScope{ComponentType: "database"}, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("wrong componentType matched: %d intervals", len(other))
	}
}

func TestPurgeHistoryKeepsOpenIntervals(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	commitStateAt(t, s, domain.StateError, base)
	commitStateAt(t, s, domain.StateOk, base.Add(time.Hour))

	removed, err := s.PurgeHistory(context.Background(), base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	// The closed error interval and both old transitions go away.
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	open, err := s.OpenIntervals(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("open intervals: %v", err)
	}
	if len(open) != 1 || open[0].State != domain.StateOk {
		t.Fatalf("open interval lost by purge: %+v", open)
	}
}
