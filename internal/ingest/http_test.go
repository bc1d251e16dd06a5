package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"providence/internal/clock"
	"providence/internal/config"
	"providence/internal/domain"
	"providence/internal/history"
	"providence/internal/intake"
	"providence/internal/notify"
	"providence/internal/push"
	"providence/internal/store"
	"providence/internal/topology"
)

type apiFixture struct {
	router *gin.Engine
	store  *store.MemoryStore
	clock  *clock.Manual
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	memory := store.NewMemoryStore()
	memory.SeedEnvironment(topology.Definition{
		SubscriptionID: "sub-1",
		Name:           "prod",
		Nodes: []topology.NodeDefinition{
			{ElementID: "comp-a", Kind: topology.KindComponent, Name: "Payment API", ComponentType: "webshop"},
			{ElementID: "chk-1", Kind: topology.KindCheck, Name: "HTTP probe", ParentID: "comp-a"},
		},
	})

	registry := topology.NewRegistry()
	if err := registry.Load(context.Background(), memory); err != nil {
		t.Fatalf("load registry: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manual := clock.NewManual(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	dispatcher := notify.NewDispatcher(60, nil, manual, logger, nil)
	recorder := history.NewRecorder(memory, 3, logger)
	processor := intake.NewProcessor(registry, memory, recorder, dispatcher, push.Nop{}, manual, logger, nil)

	api := NewAPI(processor, registry, memory, push.Nop{}, manual, logger, 1<<20)
	router := NewRouter(config.HTTPConfig{
		HealthPath:  "/healthz",
		ReadyPath:   "/readyz",
		APIBasePath: "/api/v1",
	}, api, nil)

	return &apiFixture{router: router, store: memory, clock: manual}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	request := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)
	return recorder
}

func alertBody(recordID uuid.UUID, state domain.State, at time.Time) []map[string]any {
	return []map[string]any{{
		"recordId":        recordID.String(),
		"subscriptionId":  "sub-1",
		"componentId":     "chk-1",
		"checkId":         "http",
		"alertName":       "latency",
		"state":           string(state),
		"sourceTimestamp": at.Format(time.RFC3339),
		"timeGenerated":   at.Format(time.RFC3339),
	}}
}

func TestPostAlertsReturnsOutcomes(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	recordID := uuid.New()
	response := f.do(t, http.MethodPost, "/api/v1/alerts", alertBody(recordID, domain.StateError, f.clock.Now()))
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", response.Code, response.Body.String())
	}

	var decoded struct {
		Results []domain.Outcome `json:"results"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].Status != domain.OutcomeAccepted {
		t.Fatalf("results = %+v", decoded.Results)
	}
	if decoded.Results[0].RecordID != recordID {
		t.Fatalf("recordId = %s, want %s", decoded.Results[0].RecordID, recordID)
	}

	// The tree endpoint reflects the accepted alert.
	tree := f.do(t, http.MethodGet, "/api/v1/environments/sub-1/tree", nil)
	if tree.Code != http.StatusOK {
		t.Fatalf("tree status = %d", tree.Code)
	}
	var snapshot treeResponse
	if err := json.Unmarshal(tree.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if snapshot.SubscriptionID != "sub-1" || snapshot.Name != "prod" {
		t.Fatalf("tree header = %+v", snapshot)
	}
	for _, node := range snapshot.Nodes {
		if node.State.State != domain.StateError {
			t.Fatalf("node %s state = %s, want error", node.ElementID, node.State.State)
		}
	}
}

func TestPostAlertsRejectsMalformedEnvelope(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	request := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestPostAlertsReportsPerMessageRejects(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	body := alertBody(uuid.New(), domain.StateError, f.clock.Now())
	delete(body[0], "checkId")

	response := f.do(t, http.MethodPost, "/api/v1/alerts", body)
	if response.Code != http.StatusOK {
		t.Fatalf("status = %d", response.Code)
	}
	var decoded struct {
		Results []domain.Outcome `json:"results"`
	}
	if err := json.Unmarshal(response.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].Status != domain.OutcomeRejected {
		t.Fatalf("results = %+v", decoded.Results)
	}
}

func TestSlaJobLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	request := domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: f.clock.Now().Add(-2 * time.Hour),
		EndDate:   f.clock.Now().Add(-time.Hour),
	}

	created := f.do(t, http.MethodPost, "/api/v1/environments/sub-1/sla-jobs", request)
	if created.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", created.Code, created.Body.String())
	}
	var job domain.InternalJob
	if err := json.Unmarshal(created.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.State != domain.JobStateQueued || job.Type != domain.JobTypeSla {
		t.Fatalf("job = %+v", job)
	}

	fetched := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sla-jobs/%s", job.ID), nil)
	if fetched.Code != http.StatusOK {
		t.Fatalf("get status = %d", fetched.Code)
	}

	missing := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/sla-jobs/%s", uuid.New()), nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d, want 404", missing.Code)
	}
}

func TestPostSlaJobValidatesRequest(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	// Missing scope.
	badScope := f.do(t, http.MethodPost, "/api/v1/environments/sub-1/sla-jobs", domain.SlaRequest{
		StartDate: f.clock.Now().Add(-time.Hour),
		EndDate:   f.clock.Now(),
	})
	if badScope.Code != http.StatusBadRequest {
		t.Fatalf("bad scope status = %d", badScope.Code)
	}

	// Inverted range.
	badRange := f.do(t, http.MethodPost, "/api/v1/environments/sub-1/sla-jobs", domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: f.clock.Now(),
		EndDate:   f.clock.Now().Add(-time.Hour),
	})
	if badRange.Code != http.StatusBadRequest {
		t.Fatalf("bad range status = %d", badRange.Code)
	}

	// Unknown environment.
	unknown := f.do(t, http.MethodPost, "/api/v1/environments/nope/sla-jobs", domain.SlaRequest{
		Scope:     domain.SlaScope{ElementID: "comp-a"},
		StartDate: f.clock.Now().Add(-time.Hour),
		EndDate:   f.clock.Now(),
	})
	if unknown.Code != http.StatusNotFound {
		t.Fatalf("unknown env status = %d", unknown.Code)
	}
}

func TestTreeEndpointRejectsUnknownEnvironment(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	response := f.do(t, http.MethodGet, "/api/v1/environments/nope/tree", nil)
	if response.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", response.Code)
	}
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	if got := f.do(t, http.MethodGet, "/healthz", nil); got.Code != http.StatusOK {
		t.Fatalf("health status = %d", got.Code)
	}
	if got := f.do(t, http.MethodGet, "/readyz", nil); got.Code != http.StatusOK {
		t.Fatalf("ready status = %d, body = %s", got.Code, got.Body.String())
	}
}
