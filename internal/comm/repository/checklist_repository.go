package repository

import (
	"schoolcomms-backend/internal/comm/domain"

	"gorm.io/gorm"
)

// checklistRepository implements ChecklistRepository interface
type checklistRepository struct {
	db *gorm.DB
}

// NewChecklistRepository creates a new instance of checklistRepository
func NewChecklistRepository(db *gorm.DB) ChecklistRepository {
	return &checklistRepository{db: db}
}

func (r *checklistRepository) WithTx(tx *gorm.DB) ChecklistRepository {
	return &checklistRepository{db: tx}
}

// ListByCategory returns all items of a category, oldest first
func (r *checklistRepository) ListByCategory(category string) ([]*domain.ChecklistItem, error) {
	var items []*domain.ChecklistItem
	err := r.db.
		Where("category = ?", category).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *checklistRepository) FindByID(id uint) (*domain.ChecklistItem, error) {
	var item domain.ChecklistItem
	err := r.db.First(&item, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *checklistRepository) Create(item *domain.ChecklistItem) error {
	return r.db.Create(item).Error
}

func (r *checklistRepository) Update(item *domain.ChecklistItem) error {
	return r.db.Save(item).Error
}

func (r *checklistRepository) Delete(id uint) error {
	return r.db.Delete(&domain.ChecklistItem{}, id).Error
}
