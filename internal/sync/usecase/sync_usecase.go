package usecase

import (
	"context"
	"fmt"
	"time"

	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/internal/comm/repository"
	"schoolcomms-backend/internal/metrics"
	"schoolcomms-backend/pkg/messaging"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Counts is the result of one sync pass.
type Counts struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Pages    int `json:"pages"`
}

// Config holds the orchestrator's tunables.
type Config struct {
	AttachmentsDir    string
	PDFMaxBytes       int64
	MailMaxPages      int
	ChildcareMaxPages int
}

// SyncUsecase pulls each source, normalizes records and writes them through
// the dedup store. One pass per source runs inside one transaction: either
// the whole pass lands together with its advanced watermark, or nothing does.
type SyncUsecase struct {
	db        *gorm.DB
	commRepo  repository.CommunicationRepository
	stateRepo repository.SyncStateRepository

	mail      MailProvider
	childcare ChildcareProvider
	scraper   messaging.Scraper
	groups    GroupSource
	opener    AttachmentOpener

	cfg         Config
	extractText func(path string) (string, error)
	metrics     *metrics.Metrics
	logger      *zap.Logger
	progress    func(string)
}

// NewSyncUsecase creates a new instance of SyncUsecase
func NewSyncUsecase(
	db *gorm.DB,
	commRepo repository.CommunicationRepository,
	stateRepo repository.SyncStateRepository,
	mail MailProvider,
	childcareProvider ChildcareProvider,
	scraper messaging.Scraper,
	groups GroupSource,
	opener AttachmentOpener,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SyncUsecase {
	if cfg.MailMaxPages <= 0 {
		cfg.MailMaxPages = 10
	}
	if cfg.ChildcareMaxPages <= 0 {
		cfg.ChildcareMaxPages = 20
	}
	if cfg.PDFMaxBytes <= 0 {
		cfg.PDFMaxBytes = 10 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return &SyncUsecase{
		db:          db,
		commRepo:    commRepo,
		stateRepo:   stateRepo,
		mail:        mail,
		childcare:   childcareProvider,
		scraper:     scraper,
		groups:      groups,
		opener:      opener,
		cfg:         cfg,
		extractText: extractPDFText,
		metrics:     m,
		logger:      logger,
	}
}

// SetProgressFunc registers a callback receiving human-readable progress
// lines, surfaced by the status endpoint.
func (s *SyncUsecase) SetProgressFunc(fn func(string)) {
	s.progress = fn
}

func (s *SyncUsecase) report(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	s.logger.Info(line)
	if s.progress != nil {
		s.progress(line)
	}
}

// SyncSource runs one full pass for a single source.
func (s *SyncUsecase) SyncSource(ctx context.Context, source domain.Source) (Counts, error) {
	if !domain.ValidSource(source) {
		return Counts{}, fmt.Errorf("unknown source %q", source)
	}

	runID := uuid.New().String()[:8]
	logger := s.logger.With(zap.String("source", string(source)), zap.String("run", runID))
	logger.Info("sync pass started")
	s.metrics.SyncRuns.WithLabelValues(string(source)).Inc()
	started := time.Now()

	var counts Counts
	var err error
	switch source {
	case domain.SourceMail:
		counts, err = s.syncMail(ctx)
	case domain.SourceChildcare:
		counts, err = s.syncChildcare(ctx)
	case domain.SourceMessaging:
		counts, err = s.syncMessaging(ctx)
	}

	s.metrics.SyncDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.SyncFailures.WithLabelValues(string(source)).Inc()
		logger.Error("sync pass failed", zap.Error(err))
		return counts, fmt.Errorf("sync %s: %w", source, err)
	}

	s.metrics.ItemsInserted.WithLabelValues(string(source)).Add(float64(counts.Inserted))
	s.metrics.DuplicatesSkipped.WithLabelValues(string(source)).Add(float64(counts.Skipped))
	logger.Info("sync pass finished",
		zap.Int("inserted", counts.Inserted),
		zap.Int("skipped", counts.Skipped),
		zap.Int("pages", counts.Pages),
	)

	// childcare photos and PDFs ride behind the same session; fetch them
	// while it is known good. Failures never fail the pass.
	if source == domain.SourceChildcare {
		if _, err := s.ProcessPendingPDFs(ctx); err != nil {
			logger.Warn("attachment post-processing failed", zap.Error(err))
		}
	}

	return counts, nil
}

// SyncAll runs every source in order. A failing source never blocks the
// rest; callers get per-source results and errors.
func (s *SyncUsecase) SyncAll(ctx context.Context, sources []domain.Source) (map[domain.Source]Counts, map[domain.Source]error) {
	if len(sources) == 0 {
		sources = domain.KnownSources
	}
	results := make(map[domain.Source]Counts, len(sources))
	errs := make(map[domain.Source]error)
	for _, source := range sources {
		counts, err := s.SyncSource(ctx, source)
		results[source] = counts
		if err != nil {
			errs[source] = err
		}
	}
	return results, errs
}

func (s *SyncUsecase) watermark(source domain.Source) (*time.Time, error) {
	state, err := s.stateRepo.Get(source)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	return state.LastSyncAt, nil
}

// saveState upserts the watermark inside the pass transaction, so a rolled
// back pass never advances it.
func (s *SyncUsecase) saveState(tx *gorm.DB, source domain.Source, syncedAt time.Time, cursor string) error {
	states := s.stateRepo.WithTx(tx)
	state, err := states.Get(source)
	if err != nil {
		return err
	}
	if state == nil {
		state = &domain.SyncState{Source: source}
	}
	state.LastSyncAt = &syncedAt
	state.PageCursor = cursor
	return states.Save(state)
}

func (s *SyncUsecase) syncMail(ctx context.Context) (Counts, error) {
	if s.mail == nil {
		return Counts{}, fmt.Errorf("mail transport not configured")
	}

	watermark, err := s.watermark(domain.SourceMail)
	if err != nil {
		return Counts{}, err
	}

	var counts Counts
	started := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		comms := s.commRepo.WithTx(tx)

		pageToken := ""
		lastCursor := ""
		for page := 1; page <= s.cfg.MailMaxPages; page++ {
			items, next, err := s.mail.FetchPage(ctx, pageToken)
			if err != nil {
				return fmt.Errorf("mail page %d: %w", page, err)
			}
			counts.Pages++
			s.report("mail: page %d, %d messages", page, len(items))

			reachedWatermark := false
			for _, item := range items {
				if watermark != nil && item.Timestamp.Before(*watermark) {
					reachedWatermark = true
					break
				}
				inserted, err := s.storeItem(comms, item)
				if err != nil {
					return err
				}
				if inserted {
					counts.Inserted++
				} else {
					counts.Skipped++
				}
			}

			lastCursor = next
			if reachedWatermark || next == "" || len(items) == 0 {
				break
			}
			pageToken = next
		}

		return s.saveState(tx, domain.SourceMail, started, lastCursor)
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}

func (s *SyncUsecase) syncChildcare(ctx context.Context) (Counts, error) {
	if s.childcare == nil {
		return Counts{}, fmt.Errorf("childcare client not configured")
	}

	guardianID, err := s.childcare.GuardianID(ctx)
	if err != nil {
		return Counts{}, err
	}
	dependents, err := s.childcare.Dependents(ctx, guardianID)
	if err != nil {
		return Counts{}, err
	}
	s.report("childcare: %d dependents", len(dependents))

	watermark, err := s.watermark(domain.SourceChildcare)
	if err != nil {
		return Counts{}, err
	}

	type pageFetch func(ctx context.Context, page int) ([]*domain.CommunicationItem, bool, error)

	var counts Counts
	started := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		comms := s.commRepo.WithTx(tx)

		syncFeed := func(name string, fetch pageFetch) error {
			for page := 1; page <= s.cfg.ChildcareMaxPages; page++ {
				items, hasMore, err := fetch(ctx, page)
				if err != nil {
					return fmt.Errorf("%s page %d: %w", name, page, err)
				}
				counts.Pages++

				for _, item := range items {
					if watermark != nil && item.Timestamp.Before(*watermark) {
						return nil
					}
					inserted, err := s.storeItem(comms, item)
					if err != nil {
						return err
					}
					if inserted {
						counts.Inserted++
					} else {
						counts.Skipped++
					}
				}

				if !hasMore || len(items) == 0 {
					return nil
				}
			}
			return nil
		}

		for _, dep := range dependents {
			dep := dep
			s.report("childcare: syncing %s", dep.Name())
			err := syncFeed("activities", func(ctx context.Context, page int) ([]*domain.CommunicationItem, bool, error) {
				return s.childcare.ActivitiesPage(ctx, dep, page)
			})
			if err != nil {
				return err
			}
			err = syncFeed("messages", func(ctx context.Context, page int) ([]*domain.CommunicationItem, bool, error) {
				return s.childcare.MessagesPage(ctx, dep, page)
			})
			if err != nil {
				return err
			}
		}

		return s.saveState(tx, domain.SourceChildcare, started, "")
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}

func (s *SyncUsecase) syncMessaging(ctx context.Context) (Counts, error) {
	if s.scraper == nil {
		return Counts{}, fmt.Errorf("messaging scraper not configured")
	}
	if !s.scraper.HasSession(ctx) {
		return Counts{}, fmt.Errorf("messaging session not active; open the scraper sidecar and log in")
	}

	var groupNames []string
	if s.groups != nil {
		var err error
		groupNames, err = s.groups.MessagingGroups()
		if err != nil {
			return Counts{}, err
		}
	}
	if len(groupNames) == 0 {
		s.report("messaging: no groups configured, nothing to do")
		return Counts{}, nil
	}

	watermark, err := s.watermark(domain.SourceMessaging)
	if err != nil {
		return Counts{}, err
	}

	var counts Counts
	started := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		comms := s.commRepo.WithTx(tx)

		for _, group := range groupNames {
			messages, err := s.scraper.ScrapeGroup(ctx, group, watermark)
			if err != nil {
				return fmt.Errorf("group %q: %w", group, err)
			}
			s.report("messaging: %q yielded %d messages", group, len(messages))
			counts.Pages++

			for _, msg := range messages {
				if watermark != nil && msg.Timestamp.Before(*watermark) {
					continue
				}
				inserted, err := s.storeItem(comms, messaging.Normalize(group, msg))
				if err != nil {
					return err
				}
				if inserted {
					counts.Inserted++
				} else {
					counts.Skipped++
				}
			}
		}

		return s.saveState(tx, domain.SourceMessaging, started, "")
	})
	if err != nil {
		return Counts{}, err
	}
	return counts, nil
}
