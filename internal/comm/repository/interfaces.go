package repository

import (
	"time"

	"schoolcomms-backend/internal/comm/domain"

	"gorm.io/gorm"
)

// CommunicationRepository persists canonical communication items and their
// attachments. Lookup methods return (nil, nil) when no row exists.
type CommunicationRepository interface {
	WithTx(tx *gorm.DB) CommunicationRepository
	FindBySourceID(sourceID string) (*domain.CommunicationItem, error)
	Create(item *domain.CommunicationItem) error
	FindByTimeRange(start, end time.Time) ([]*domain.CommunicationItem, error)
	PendingPDFAttachments(source domain.Source) ([]*domain.Attachment, error)
	SaveAttachment(att *domain.Attachment) error
	CountBySource(source domain.Source) (int64, error)
}

// SyncStateRepository persists per-source sync watermarks.
type SyncStateRepository interface {
	WithTx(tx *gorm.DB) SyncStateRepository
	Get(source domain.Source) (*domain.SyncState, error)
	Save(state *domain.SyncState) error
}

// DailySummaryRepository persists per-day digests.
type DailySummaryRepository interface {
	WithTx(tx *gorm.DB) DailySummaryRepository
	GetByDate(date string) (*domain.DailySummary, error)
	GetByDates(dates []string) ([]*domain.DailySummary, error)
	Save(summary *domain.DailySummary) error
}

// ChecklistRepository persists checklist items.
type ChecklistRepository interface {
	WithTx(tx *gorm.DB) ChecklistRepository
	ListByCategory(category string) ([]*domain.ChecklistItem, error)
	FindByID(id uint) (*domain.ChecklistItem, error)
	Create(item *domain.ChecklistItem) error
	Update(item *domain.ChecklistItem) error
	Delete(id uint) error
}
