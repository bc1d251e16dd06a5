package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"providence/internal/clock"
	"providence/internal/domain"
)

type captureSender struct {
	mu      sync.Mutex
	batches []Batch
	fail    bool
}

func (c *captureSender) Channel() string { return "capture" }

func (c *captureSender) Send(_ context.Context, batch Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("boom")
	}
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureSender) sent() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Batch(nil), c.batches...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTransition(state domain.State) domain.StateTransition {
	return domain.StateTransition{
		EnvironmentSubscriptionID: "sub-1",
		EnvironmentName:           "prod",
		ElementID:                 "comp-a",
		CheckID:                   "http",
		AlertName:                 "latency",
		ComponentType:             "webshop",
		ElementState: domain.ElementState{
			State:           state,
			SourceTimestamp: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestDispatcherBatchesUntilIntervalElapses(t *testing.T) {
	t.Parallel()

	manual := clock.NewManual(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	sender := &captureSender{}
	dispatcher := NewDispatcher(60, []Sender{sender}, manual, testLogger(), nil)

	rule := domain.NotificationConfiguration{
		ID:                          "rule-1",
		EmailAddresses:              []string{"ops@example.com"},
		IsActive:                    true,
		NotificationIntervalSeconds: 120,
		EnvironmentSubscriptionID:   "sub-1",
	}

	if matched := dispatcher.Offer(testTransition(domain.StateError), "Shop", []domain.NotificationConfiguration{rule}); matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}
	if matched := dispatcher.Offer(testTransition(domain.StateWarning), "Shop", []domain.NotificationConfiguration{rule}); matched != 1 {
		t.Fatalf("matched = %d, want 1", matched)
	}

	if sent := dispatcher.DispatchDue(context.Background()); sent != 0 {
		t.Fatalf("dispatched %d batches before interval", sent)
	}

	manual.Advance(121 * time.Second)
	if sent := dispatcher.DispatchDue(context.Background()); sent != 1 {
		t.Fatalf("dispatched %d batches, want 1", sent)
	}

	batches := sender.sent()
	if len(batches) != 1 {
		t.Fatalf("sender saw %d batches", len(batches))
	}
	batch := batches[0]
	if batch.RuleID != "rule-1" || batch.EnvironmentName != "prod" {
		t.Fatalf("unexpected batch header %+v", batch)
	}
	if len(batch.Entries) != 2 {
		t.Fatalf("batch entries = %d, want 2", len(batch.Entries))
	}
	if batch.Entries[0].State != domain.StateError || batch.Entries[1].State != domain.StateWarning {
		t.Fatalf("entries out of arrival order: %+v", batch.Entries)
	}
	if dispatcher.PendingRules() != 0 {
		t.Fatalf("pending rules remain after dispatch")
	}
}

func TestDispatcherSelectorsFilterTransitions(t *testing.T) {
	t.Parallel()

	manual := clock.NewManual(time.Now())
	dispatcher := NewDispatcher(60, nil, manual, testLogger(), nil)

	rules := []domain.NotificationConfiguration{
		{
			ID:                        "wrong-env",
			IsActive:                  true,
			EnvironmentSubscriptionID: "sub-other",
		},
		{
			ID:                        "wrong-state",
			IsActive:                  true,
			EnvironmentSubscriptionID: "sub-1",
			States:                    []domain.State{domain.StateError},
		},
		{
			ID:                        "inactive",
			EnvironmentSubscriptionID: "sub-1",
		},
		{
			ID:                        "matching",
			IsActive:                  true,
			EnvironmentSubscriptionID: "sub-1",
			ComponentTypes:            []string{"WEBSHOP"},
		},
	}

	if matched := dispatcher.Offer(testTransition(domain.StateWarning), "Shop", rules); matched != 1 {
		t.Fatalf("matched = %d, want only the componentType rule", matched)
	}
}

func TestDispatcherFlushSendsEverythingAndSurvivesSenderFailure(t *testing.T) {
	t.Parallel()

	manual := clock.NewManual(time.Now())
	failing := &captureSender{fail: true}
	working := &captureSender{}
	dispatcher := NewDispatcher(60, []Sender{failing, working}, manual, testLogger(), nil)

	rule := domain.NotificationConfiguration{
		ID:                        "rule-1",
		IsActive:                  true,
		EnvironmentSubscriptionID: "sub-1",
	}
	dispatcher.Offer(testTransition(domain.StateError), "Shop", []domain.NotificationConfiguration{rule})

	if sent := dispatcher.Flush(context.Background()); sent != 1 {
		t.Fatalf("flush dispatched %d, want 1", sent)
	}
	if len(working.sent()) != 1 {
		t.Fatalf("working sender did not receive the batch")
	}
}

func TestBatchRenderAndSubject(t *testing.T) {
	t.Parallel()

	batch := Batch{
		RuleID:          "rule-1",
		EnvironmentName: "prod",
		Entries: []Entry{
			{ElementID: "comp-a", ElementName: "Shop", CheckID: "http", AlertName: "latency",
				State: domain.StateWarning, SourceTimestamp: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
			{ElementID: "comp-b", CheckID: "disk", AlertName: "full",
				State: domain.StateError, Escalated: true,
				SourceTimestamp: time.Date(2026, 4, 1, 9, 5, 0, 0, time.UTC)},
		},
		CollectedAt: time.Date(2026, 4, 1, 9, 10, 0, 0, time.UTC),
	}

	body, err := batch.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"prod", "Shop (comp-a)", "comp-b", "(escalated)", "2026-04-01T09:00:00Z", "Collected over 10.0m"} {
		if !strings.Contains(body, want) {
			t.Fatalf("rendered body missing %q:\n%s", want, body)
		}
	}
	if got := batch.Subject(); got != "[ERROR] prod: 2 state change(s)" {
		t.Fatalf("subject = %q", got)
	}
}
