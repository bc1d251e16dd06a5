package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"providence/internal/clock"
	"providence/internal/config"
	"providence/internal/domain"
	"providence/internal/metrics"
	"providence/internal/push"
	"providence/internal/store"
	"providence/internal/topology"
)

// AlertProcessor consumes decoded alert batches.
// Params: batch of validated-or-not messages; validation happens per message.
// Returns: one outcome per message in input order.
type AlertProcessor interface {
	ProcessBatch(ctx context.Context, messages []domain.AlertMessage) []domain.Outcome
}

// API serves the HTTP surface: alert intake, SLA jobs, and tree reads.
// Params: processor for intake, registry and store for reads, publisher
// for job announcements.
// Returns: handler set mounted by NewRouter.
type API struct {
	processor AlertProcessor
	registry  *topology.Registry
	store     store.Store
	publisher push.Publisher
	clock     clock.Clock
	logger    *slog.Logger
	maxBody   int64
}

// NewAPI creates the HTTP API handler set.
// Params: collaborators and max request body size in bytes.
// Returns: configured API.
func NewAPI(
	processor AlertProcessor,
	registry *topology.Registry,
	st store.Store,
	publisher push.Publisher,
	clk clock.Clock,
	logger *slog.Logger,
	maxBody int64,
) *API {
	return &API{
		processor: processor,
		registry:  registry,
		store:     st,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		maxBody:   maxBody,
	}
}

// NewRouter mounts the API on a gin engine.
// Params: HTTP config for paths and the metrics registry for the scrape
// endpoint; m may be nil in tests.
// Returns: engine ready for http.Server.
func NewRouter(cfg config.HTTPConfig, api *API, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET(cfg.HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET(cfg.ReadyPath, api.ready)
	if m != nil {
		handler := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
		engine.GET(cfg.MetricsPath, gin.WrapH(handler))
	}

	base := engine.Group(cfg.APIBasePath)
	base.POST("/alerts", api.postAlerts)
	base.POST("/environments/:subscriptionId/sla-jobs", api.postSlaJob)
	base.GET("/sla-jobs/:id", api.getSlaJob)
	base.GET("/environments/:subscriptionId/tree", api.getTree)
	return engine
}

// ready reports readiness once the topology registry holds environments.
// Params: gin context.
// Returns: 200 with the environment count, 503 while empty.
func (a *API) ready(c *gin.Context) {
	subscriptions := a.registry.SubscriptionIDs()
	if len(subscriptions) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no environments loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "environments": len(subscriptions)})
}

// postAlerts accepts one alert batch and returns per-message outcomes.
// Params: JSON array body of alert messages.
// Returns: 200 with outcomes; 400 only when the envelope itself is
// malformed, per-message problems surface as rejected outcomes.
func (a *API) postAlerts(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxBody)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}
	messages, err := domain.DecodeAlertBatch(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcomes := a.processor.ProcessBatch(c.Request.Context(), messages)
	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}

// postSlaJob queues one SLA computation job for an environment.
// Params: subscription id path param and SlaRequest body.
// Returns: 201 with the queued job, 400 on invalid request, 404 for
// unknown environments.
func (a *API) postSlaJob(c *gin.Context) {
	subscriptionID := c.Param("subscriptionId")
	if _, ok := a.registry.Tree(subscriptionID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown environment"})
		return
	}

	var request domain.SlaRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if request.Scope.ElementID == "" && request.Scope.ComponentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope requires elementId or componentType"})
		return
	}
	if !request.StartDate.Before(request.EndDate) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startDate must be before endDate"})
		return
	}

	job := domain.InternalJob{
		ID:                        uuid.New(),
		Type:                      domain.JobTypeSla,
		State:                     domain.JobStateQueued,
		EnvironmentSubscriptionID: subscriptionID,
		Request:                   request,
		CreatedAt:                 a.clock.Now(),
	}
	if err := a.store.CreateJob(c.Request.Context(), job); err != nil {
		a.logger.Error("create sla job failed", "subscriptionId", subscriptionID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue unavailable"})
		return
	}
	if err := a.publisher.InternalJobUpdated(c.Request.Context(), job); err != nil {
		a.logger.Warn("push publish failed", "jobId", job.ID, "event", "internalJobUpdated", "error", err)
	}
	c.JSON(http.StatusCreated, job)
}

// getSlaJob returns one job with its state and result.
// Params: job id path param.
// Returns: 200 with the job, 400 on malformed ids, 404 when absent.
func (a *API) getSlaJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}
	job, err := a.store.GetJob(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	if err != nil {
		a.logger.Error("get sla job failed", "jobId", id, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue unavailable"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// treeResponse is the wire shape of one environment snapshot.
type treeResponse struct {
	SubscriptionID string                  `json:"subscriptionId"`
	Name           string                  `json:"name"`
	TakenAt        time.Time               `json:"takenAt"`
	Nodes          []topology.NodeSnapshot `json:"nodes"`
}

// getTree returns the aggregated state snapshot of one environment.
// Params: subscription id path param.
// Returns: 200 with nodes in depth-first order, 404 for unknown
// environments.
func (a *API) getTree(c *gin.Context) {
	subscriptionID := c.Param("subscriptionId")
	tree, ok := a.registry.Tree(subscriptionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown environment"})
		return
	}
	c.JSON(http.StatusOK, treeResponse{
		SubscriptionID: tree.SubscriptionID(),
		Name:           tree.Name(),
		TakenAt:        a.clock.Now(),
		Nodes:          tree.Snapshot(),
	})
}
