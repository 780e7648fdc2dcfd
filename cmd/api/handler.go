package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	checklistUsecase "schoolcomms-backend/internal/checklist/usecase"
	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/internal/comm/repository"
	"schoolcomms-backend/internal/scheduler"
	summaryUsecase "schoolcomms-backend/internal/summary/usecase"
	syncUsecase "schoolcomms-backend/internal/sync/usecase"
	"schoolcomms-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler wires the usecases into the HTTP API. Long-running jobs share
// their guards and tracker with the cron scheduler, so a manual trigger and
// a scheduled run can never overlap.
type Handler struct {
	cfg         *config.Config
	syncUc      *syncUsecase.SyncUsecase
	summaryUc   *summaryUsecase.SummaryUsecase
	checklistUc *checklistUsecase.ChecklistUsecase
	commRepo    repository.CommunicationRepository
	syncGuard   *scheduler.Guard
	sumGuard    *scheduler.Guard
	tracker     *scheduler.Tracker
	logger      *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(
	cfg *config.Config,
	syncUc *syncUsecase.SyncUsecase,
	summaryUc *summaryUsecase.SummaryUsecase,
	checklistUc *checklistUsecase.ChecklistUsecase,
	commRepo repository.CommunicationRepository,
	syncGuard *scheduler.Guard,
	sumGuard *scheduler.Guard,
	tracker *scheduler.Tracker,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:         cfg,
		syncUc:      syncUc,
		summaryUc:   summaryUc,
		checklistUc: checklistUc,
		commRepo:    commRepo,
		syncGuard:   syncGuard,
		sumGuard:    sumGuard,
		tracker:     tracker,
		logger:      logger,
	}
}

// SyncJob runs one guarded sync pass over the given sources (nil means all).
// Returns false when a pass is already in flight.
func (h *Handler) SyncJob(ctx context.Context, sources []domain.Source) bool {
	if !h.syncGuard.TryStart() {
		return false
	}
	defer h.syncGuard.Done()

	h.tracker.Begin(scheduler.JobSync)
	counts, errs := h.syncUc.SyncAll(ctx, sources)

	inserted, skipped := 0, 0
	for _, c := range counts {
		inserted += c.Inserted
		skipped += c.Skipped
	}
	var failures []error
	for source, err := range errs {
		failures = append(failures, fmt.Errorf("%s: %w", source, err))
	}
	detail := fmt.Sprintf("%d inserted, %d duplicates skipped", inserted, skipped)
	h.tracker.Finish(scheduler.JobSync, detail, errors.Join(failures...))
	return true
}

// SummaryJob runs one guarded summary refresh. Returns false when one is
// already in flight.
func (h *Handler) SummaryJob(ctx context.Context, days int, force bool) bool {
	if !h.sumGuard.TryStart() {
		return false
	}
	defer h.sumGuard.Done()

	h.tracker.Begin(scheduler.JobSummaries)
	err := h.summaryUc.GenerateRollingSummaries(ctx, days, force)
	h.tracker.Finish(scheduler.JobSummaries, "", err)
	return true
}

// POST /api/sync
// POST /api/sync/:source
func (h *Handler) TriggerSync(c *gin.Context) {
	var sources []domain.Source
	if raw := c.Param("source"); raw != "" {
		source := domain.Source(raw)
		if !domain.ValidSource(source) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown source %q", raw)})
			return
		}
		sources = []domain.Source{source}
	}

	// overlapping start is a no-op, not an error
	if h.syncGuard.Running() {
		c.JSON(http.StatusAccepted, gin.H{"status": "already running"})
		return
	}
	go func() {
		if !h.SyncJob(context.Background(), sources) {
			h.logger.Info("sync trigger lost the guard race")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// POST /api/summaries/generate?days=8&force=true
func (h *Handler) TriggerSummaries(c *gin.Context) {
	days, err := intQuery(c, "days", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	force := c.Query("force") == "true"

	if h.sumGuard.Running() {
		c.JSON(http.StatusAccepted, gin.H{"status": "already running"})
		return
	}
	go func() {
		if !h.SummaryJob(context.Background(), days, force) {
			h.logger.Info("summary trigger lost the guard race")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// GET /api/summaries/aggregate?days=8
func (h *Handler) GetAggregatedSummary(c *gin.Context) {
	days, err := intQuery(c, "days", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agg, err := h.summaryUc.GetAggregatedSummary(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate summaries"})
		return
	}
	c.JSON(http.StatusOK, agg)
}

// GET /api/summaries/overviews?days=8
func (h *Handler) GetRollingOverviews(c *gin.Context) {
	days, err := intQuery(c, "days", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	overviews, err := h.summaryUc.GetRollingOverviews(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load overviews"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"overviews": overviews})
}

// GET /api/checklist/:category
func (h *Handler) GetChecklist(c *gin.Context) {
	category := c.Param("category")
	if category != domain.CategoryKeyDates && category != domain.CategoryActionItems {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown category %q", category)})
		return
	}

	items, err := h.checklistUc.Items(category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load checklist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// PATCH /api/checklist/:id/toggle
func (h *Handler) ToggleChecklistItem(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	item, err := h.checklistUc.Toggle(uint(id))
	if errors.Is(err, checklistUsecase.ErrItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "checklist item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}
	c.JSON(http.StatusOK, item)
}

type setCheckedRequest struct {
	IsChecked bool `json:"is_checked"`
}

// PATCH /api/checklist/:id
func (h *Handler) SetChecklistItemChecked(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	var req setCheckedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.checklistUc.SetChecked(uint(id), req.IsChecked)
	if errors.Is(err, checklistUsecase.ErrItemNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "checklist item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	counts := map[string]int64{}
	for _, source := range domain.KnownSources {
		count, err := h.commRepo.CountBySource(source)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count items"})
			return
		}
		counts[string(source)] = count
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":        h.tracker.Snapshot(),
		"item_counts": counts,
	})
}

// GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return value, nil
}

// Start builds the router and serves until the listener fails.
func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware for the local frontend
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	SetupRoutes(r, h)
	return r.Run(addr)
}
