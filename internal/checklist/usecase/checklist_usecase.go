package usecase

import (
	"errors"
	"sort"
	"strings"
	"time"

	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/internal/comm/repository"
	"schoolcomms-backend/internal/metrics"
	"schoolcomms-backend/pkg/fuzzy"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// matchThreshold is the similarity ratio above which a summary line and an
// existing checklist row are considered the same item.
const matchThreshold = 0.75

// ErrItemNotFound indicates the requested checklist item does not exist.
var ErrItemNotFound = errors.New("checklist item not found")

// ChecklistUsecase reconciles the persistent checklist against each summary
// run. Rows keep their identity across model rewordings through fuzzy
// matching, so a checked-off item stays checked when tomorrow's digest phrases
// it differently.
type ChecklistUsecase struct {
	db      *gorm.DB
	repo    repository.ChecklistRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewChecklistUsecase creates a new instance of ChecklistUsecase
func NewChecklistUsecase(db *gorm.DB, repo repository.ChecklistRepository, m *metrics.Metrics, logger *zap.Logger) *ChecklistUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	return &ChecklistUsecase{db: db, repo: repo, metrics: m, logger: logger}
}

// Items returns a category's checklist, oldest first.
func (u *ChecklistUsecase) Items(category string) ([]*domain.ChecklistItem, error) {
	return u.repo.ListByCategory(category)
}

// Toggle flips an item's checked state, stamping or clearing CheckedAt.
func (u *ChecklistUsecase) Toggle(id uint) (*domain.ChecklistItem, error) {
	item, err := u.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, u.setChecked(item, !item.IsChecked)
}

// SetChecked sets an item's checked state explicitly.
func (u *ChecklistUsecase) SetChecked(id uint, checked bool) (*domain.ChecklistItem, error) {
	item, err := u.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, u.setChecked(item, checked)
}

func (u *ChecklistUsecase) setChecked(item *domain.ChecklistItem, checked bool) error {
	item.IsChecked = checked
	if checked {
		now := time.Now()
		item.CheckedAt = &now
	} else {
		item.CheckedAt = nil
	}
	return u.repo.Update(item)
}

// candidate pairs an incoming summary line with an existing row.
type candidate struct {
	incoming int
	existing int
	ratio    float64
}

// SyncItemsFromSummary reconciles one category against the aggregated summary
// lines, in a single transaction. Each incoming line either updates its best
// fuzzy match (preserving checked state) or becomes a new unchecked row.
// Existing unchecked rows no summary line claimed are removed; checked rows
// are never deleted.
func (u *ChecklistUsecase) SyncItemsFromSummary(category string, texts []string) error {
	incoming := dedupTexts(texts)

	return u.db.Transaction(func(tx *gorm.DB) error {
		repo := u.repo.WithTx(tx)

		existing, err := repo.ListByCategory(category)
		if err != nil {
			return err
		}

		// all above-threshold pairs, best ratio first, then greedy assignment
		candidates := make([]candidate, 0)
		for i, text := range incoming {
			for j, item := range existing {
				ratio := fuzzy.SimilarityRatio(text, item.ItemText)
				if ratio >= matchThreshold {
					candidates = append(candidates, candidate{incoming: i, existing: j, ratio: ratio})
				}
			}
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			return candidates[a].ratio > candidates[b].ratio
		})

		matchedIncoming := make(map[int]bool, len(incoming))
		matchedExisting := make(map[int]bool, len(existing))
		for _, c := range candidates {
			if matchedIncoming[c.incoming] || matchedExisting[c.existing] {
				continue
			}
			matchedIncoming[c.incoming] = true
			matchedExisting[c.existing] = true

			item := existing[c.existing]
			text := incoming[c.incoming]
			if item.ItemText == text {
				continue
			}
			item.ItemText = text
			if date := extractEventDate(text, time.Now()); date != nil {
				item.EventDate = date
			}
			if err := repo.Update(item); err != nil {
				return err
			}
		}

		today := time.Now().Format("2006-01-02")
		for i, text := range incoming {
			if matchedIncoming[i] {
				continue
			}
			item := &domain.ChecklistItem{
				Category:   category,
				ItemText:   text,
				SourceDate: today,
				EventDate:  extractEventDate(text, time.Now()),
			}
			if err := repo.Create(item); err != nil {
				return err
			}
			u.metrics.ChecklistAdded.Inc()
		}

		for j, item := range existing {
			if matchedExisting[j] || item.IsChecked {
				continue
			}
			if err := repo.Delete(item.ID); err != nil {
				return err
			}
			u.metrics.ChecklistRemoved.Inc()
		}

		u.logger.Debug("checklist reconciled",
			zap.String("category", category),
			zap.Int("incoming", len(incoming)),
			zap.Int("existing", len(existing)))
		return nil
	})
}

// dedupTexts trims, drops empties, and removes case-insensitive duplicates
// while keeping first-seen order.
func dedupTexts(texts []string) []string {
	seen := make(map[string]bool, len(texts))
	out := make([]string, 0, len(texts))
	for _, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	return out
}
