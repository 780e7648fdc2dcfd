package repository

import (
	"schoolcomms-backend/internal/comm/domain"

	"gorm.io/gorm"
)

// dailySummaryRepository implements DailySummaryRepository interface
type dailySummaryRepository struct {
	db *gorm.DB
}

// NewDailySummaryRepository creates a new instance of dailySummaryRepository
func NewDailySummaryRepository(db *gorm.DB) DailySummaryRepository {
	return &dailySummaryRepository{db: db}
}

func (r *dailySummaryRepository) WithTx(tx *gorm.DB) DailySummaryRepository {
	return &dailySummaryRepository{db: tx}
}

// GetByDate returns the summary for one YYYY-MM-DD date, or (nil, nil)
func (r *dailySummaryRepository) GetByDate(date string) (*domain.DailySummary, error) {
	var summary domain.DailySummary
	err := r.db.Where("date = ?", date).First(&summary).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

// GetByDates returns existing summaries for the given dates, newest first
func (r *dailySummaryRepository) GetByDates(dates []string) ([]*domain.DailySummary, error) {
	var summaries []*domain.DailySummary
	err := r.db.Where("date IN ?", dates).Order("date DESC").Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Save upserts a summary row keyed by its date
func (r *dailySummaryRepository) Save(summary *domain.DailySummary) error {
	if summary.ID != 0 {
		return r.db.Save(summary).Error
	}
	var existing domain.DailySummary
	err := r.db.Where("date = ?", summary.Date).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(summary).Error
	} else if err != nil {
		return err
	}
	summary.ID = existing.ID
	return r.db.Save(summary).Error
}
