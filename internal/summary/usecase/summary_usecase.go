package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/internal/comm/repository"
	"schoolcomms-backend/internal/metrics"
	"schoolcomms-backend/pkg/ai"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const bodyCharLimit = 3000

const systemPrompt = `You summarize one day of a family's school and childcare communications.
Respond with a single JSON object and nothing else, using exactly these keys:
{
  "overview": {"<student name>": "one short paragraph", "general": "anything not tied to one student"},
  "key_dates": ["events with their dates"],
  "deadlines": ["things due by a date"],
  "curriculum_updates": ["what the children are learning"],
  "action_items": ["concrete things the parents must do"]
}
Keep every list entry short and self-contained. Use empty lists when a
category has nothing. Do not invent information that is not in the input.`

// ChecklistSyncer receives the freshly aggregated list categories after a
// summary run.
type ChecklistSyncer interface {
	SyncItemsFromSummary(category string, texts []string) error
}

// Aggregated merges the rolling window's lists, newest day first.
type Aggregated struct {
	KeyDates          []string `json:"key_dates"`
	Deadlines         []string `json:"deadlines"`
	CurriculumUpdates []string `json:"curriculum_updates"`
	ActionItems       []string `json:"action_items"`
}

// Config holds the summarizer's tunables.
type Config struct {
	RollingDays    int
	StudentContext string
}

// SummaryUsecase turns each day's communications into a structured digest
// and keeps a rolling window of them fresh. Days whose input did not change
// are never re-sent to the model.
type SummaryUsecase struct {
	db          *gorm.DB
	commRepo    repository.CommunicationRepository
	summaryRepo repository.DailySummaryRepository
	completer   ai.Completer
	checklist   ChecklistSyncer
	cfg         Config
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewSummaryUsecase creates a new instance of SummaryUsecase
func NewSummaryUsecase(
	db *gorm.DB,
	commRepo repository.CommunicationRepository,
	summaryRepo repository.DailySummaryRepository,
	completer ai.Completer,
	checklist ChecklistSyncer,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SummaryUsecase {
	if cfg.RollingDays <= 0 {
		cfg.RollingDays = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return &SummaryUsecase{
		db:          db,
		commRepo:    commRepo,
		summaryRepo: summaryRepo,
		completer:   completer,
		checklist:   checklist,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
	}
}

// windowDates returns the rolling window's dates, today first.
func (s *SummaryUsecase) windowDates(days int) []time.Time {
	if days <= 0 {
		days = s.cfg.RollingDays
	}
	today := time.Now()
	dates := make([]time.Time, 0, days)
	for offset := 0; offset < days; offset++ {
		dates = append(dates, today.AddDate(0, 0, -offset))
	}
	return dates
}

// GenerateRollingSummaries refreshes the digests for the rolling window. The
// whole window commits in one transaction: a failed day rolls everything
// back, and the unchanged-day skip makes the rerun cheap. force regenerates
// days even when their item set did not change.
func (s *SummaryUsecase) GenerateRollingSummaries(ctx context.Context, days int, force bool) error {
	if s.completer == nil {
		return fmt.Errorf("no summarization backend configured")
	}

	dates := s.windowDates(days)
	written := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, day := range dates {
			generated, err := s.generateDay(ctx, tx, day, force)
			if err != nil {
				return fmt.Errorf("summary for %s: %w", day.Format("2006-01-02"), err)
			}
			if generated {
				written++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("rolling summaries refreshed", zap.Int("days", len(dates)), zap.Int("written", written))

	// hand the fresh lists to the checklist; reconciliation trouble must
	// never fail a summary run
	if s.checklist != nil {
		if err := s.syncChecklist(len(dates)); err != nil {
			s.logger.Warn("checklist reconciliation failed", zap.Error(err))
		}
	}
	return nil
}

func (s *SummaryUsecase) syncChecklist(days int) error {
	agg, err := s.GetAggregatedSummary(days)
	if err != nil {
		return err
	}
	if err := s.checklist.SyncItemsFromSummary(domain.CategoryKeyDates, agg.KeyDates); err != nil {
		return err
	}
	return s.checklist.SyncItemsFromSummary(domain.CategoryActionItems, agg.ActionItems)
}

// generateDay writes or refreshes one day's digest inside tx. Returns
// whether a row was written.
func (s *SummaryUsecase) generateDay(ctx context.Context, tx *gorm.DB, day time.Time, force bool) (bool, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	dateStr := start.Format("2006-01-02")

	comms := s.commRepo.WithTx(tx)
	summaries := s.summaryRepo.WithTx(tx)

	items, err := comms.FindByTimeRange(start, end)
	if err != nil {
		return false, err
	}
	// a day without communications gets no row and no model call
	if len(items) == 0 {
		return false, nil
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	idsJSON, _ := json.Marshal(ids)

	existing, err := summaries.GetByDate(dateStr)
	if err != nil {
		return false, err
	}
	if existing != nil && !force && existing.SourceItemIDs == string(idsJSON) {
		return false, nil
	}

	s.metrics.LLMCalls.Inc()
	response, err := s.completer.Complete(ctx, systemPrompt, s.buildPrompt(dateStr, items))
	if err != nil {
		return false, err
	}

	parsed, usedFallback := parseDigest(response)
	if usedFallback {
		s.metrics.LLMParseFallbacks.Inc()
		s.logger.Warn("model response needed non-strict parsing", zap.String("date", dateStr))
	}

	now := time.Now()
	summary := existing
	if summary == nil {
		summary = &domain.DailySummary{Date: dateStr}
	}
	summary.KeyDates = marshalList(parsed.KeyDates)
	summary.Deadlines = marshalList(parsed.Deadlines)
	summary.CurriculumUpdates = marshalList(parsed.CurriculumUpdates)
	summary.ActionItems = marshalList(parsed.ActionItems)
	summary.RawSummary = parsed.overviewJSON()
	summary.SourceItemIDs = string(idsJSON)
	summary.GeneratedAt = &now

	if err := summaries.Save(summary); err != nil {
		return false, err
	}
	s.metrics.SummariesWritten.Inc()
	return true, nil
}

// buildPrompt renders one day's items chronologically, with per-item body
// ceilings so one newsletter cannot crowd out the rest of the day.
func (s *SummaryUsecase) buildPrompt(dateStr string, items []*domain.CommunicationItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Communications for %s:\n", dateStr)
	if s.cfg.StudentContext != "" {
		fmt.Fprintf(&b, "Children: %s\n", s.cfg.StudentContext)
	}
	b.WriteString("\n")

	for _, item := range items {
		fmt.Fprintf(&b, "- [%s] (%s) %s", item.Timestamp.Format("15:04"), item.Source, item.Title)
		if item.Sender != "" {
			fmt.Fprintf(&b, " - from %s", item.Sender)
		}
		b.WriteString("\n")

		if item.StudentName != "" {
			fmt.Fprintf(&b, "  student: %s", item.StudentName)
			if item.Room != "" {
				fmt.Fprintf(&b, " (%s)", item.Room)
			}
			if item.ActionType != "" {
				fmt.Fprintf(&b, ", %s", item.ActionType)
			}
			b.WriteString("\n")
		}

		body := item.BodyPlain
		if body == "" && item.BodyHTML != "" {
			body = stripHTML(item.BodyHTML)
		}
		body = strings.TrimSpace(body)
		if len(body) > bodyCharLimit {
			body = body[:bodyCharLimit] + "..."
		}
		if body != "" {
			fmt.Fprintf(&b, "  %s\n", body)
		}
	}
	return b.String()
}

// GetAggregatedSummary merges the window's lists, most recent day first,
// deduplicated case-insensitively with first-seen order preserved.
func (s *SummaryUsecase) GetAggregatedSummary(days int) (*Aggregated, error) {
	summaries, err := s.windowSummaries(days)
	if err != nil {
		return nil, err
	}

	agg := &Aggregated{
		KeyDates:          []string{},
		Deadlines:         []string{},
		CurriculumUpdates: []string{},
		ActionItems:       []string{},
	}
	seen := map[string]map[string]bool{}
	appendList := func(category string, target *[]string, entries []string) {
		if seen[category] == nil {
			seen[category] = map[string]bool{}
		}
		for _, entry := range entries {
			trimmed := strings.TrimSpace(entry)
			if trimmed == "" {
				continue
			}
			key := strings.ToLower(trimmed)
			if seen[category][key] {
				continue
			}
			seen[category][key] = true
			*target = append(*target, trimmed)
		}
	}

	for _, summary := range summaries {
		appendList("key_dates", &agg.KeyDates, summary.KeyDatesList())
		appendList("deadlines", &agg.Deadlines, summary.DeadlinesList())
		appendList("curriculum_updates", &agg.CurriculumUpdates, summary.CurriculumUpdatesList())
		appendList("action_items", &agg.ActionItems, summary.ActionItemsList())
	}
	return agg, nil
}

// GetRollingOverviews groups the window's per-student overviews by key, each
// entry prefixed with its date, newest first.
func (s *SummaryUsecase) GetRollingOverviews(days int) (map[string][]string, error) {
	summaries, err := s.windowSummaries(days)
	if err != nil {
		return nil, err
	}

	overviews := map[string][]string{}
	for _, summary := range summaries {
		for key, text := range summary.OverviewMap() {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			overviews[key] = append(overviews[key], summary.Date+": "+text)
		}
	}
	return overviews, nil
}

// windowSummaries returns existing summaries for the window, newest first.
func (s *SummaryUsecase) windowSummaries(days int) ([]*domain.DailySummary, error) {
	dates := s.windowDates(days)
	dateStrs := make([]string, 0, len(dates))
	for _, day := range dates {
		dateStrs = append(dateStrs, day.Format("2006-01-02"))
	}
	return s.summaryRepo.GetByDates(dateStrs)
}
