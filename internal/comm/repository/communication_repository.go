package repository

import (
	"time"

	"schoolcomms-backend/internal/comm/domain"

	"gorm.io/gorm"
)

// communicationRepository implements CommunicationRepository interface
type communicationRepository struct {
	db *gorm.DB
}

// NewCommunicationRepository creates a new instance of communicationRepository
func NewCommunicationRepository(db *gorm.DB) CommunicationRepository {
	return &communicationRepository{db: db}
}

func (r *communicationRepository) WithTx(tx *gorm.DB) CommunicationRepository {
	return &communicationRepository{db: tx}
}

// FindBySourceID looks up an item by its dedup key
func (r *communicationRepository) FindBySourceID(sourceID string) (*domain.CommunicationItem, error) {
	var item domain.CommunicationItem
	err := r.db.Where("source_id = ?", sourceID).First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// Create inserts an item together with its attachments
func (r *communicationRepository) Create(item *domain.CommunicationItem) error {
	return r.db.Create(item).Error
}

// FindByTimeRange returns items with timestamp in [start, end), oldest first
func (r *communicationRepository) FindByTimeRange(start, end time.Time) ([]*domain.CommunicationItem, error) {
	var items []*domain.CommunicationItem
	err := r.db.
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// PendingPDFAttachments returns PDF attachments of the given source that have
// not been downloaded yet
func (r *communicationRepository) PendingPDFAttachments(source domain.Source) ([]*domain.Attachment, error) {
	var attachments []*domain.Attachment
	err := r.db.
		Joins("JOIN communication_items ON communication_items.id = attachments.communication_id").
		Where("communication_items.source = ?", source).
		Where("attachments.mime_type = ?", "application/pdf").
		Where("attachments.is_downloaded = ?", false).
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *communicationRepository) SaveAttachment(att *domain.Attachment) error {
	return r.db.Save(att).Error
}

func (r *communicationRepository) CountBySource(source domain.Source) (int64, error) {
	var count int64
	err := r.db.Model(&domain.CommunicationItem{}).Where("source = ?", source).Count(&count).Error
	return count, err
}
