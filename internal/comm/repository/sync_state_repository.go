package repository

import (
	"schoolcomms-backend/internal/comm/domain"

	"gorm.io/gorm"
)

// syncStateRepository implements SyncStateRepository interface
type syncStateRepository struct {
	db *gorm.DB
}

// NewSyncStateRepository creates a new instance of syncStateRepository
func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) WithTx(tx *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: tx}
}

// Get returns the state row for a source, or (nil, nil) when the source has
// never completed a pass
func (r *syncStateRepository) Get(source domain.Source) (*domain.SyncState, error) {
	var state domain.SyncState
	err := r.db.Where("source = ?", source).First(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// Save upserts the state row for state.Source
func (r *syncStateRepository) Save(state *domain.SyncState) error {
	if state.ID != 0 {
		return r.db.Save(state).Error
	}
	var existing domain.SyncState
	err := r.db.Where("source = ?", state.Source).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(state).Error
	} else if err != nil {
		return err
	}
	state.ID = existing.ID
	return r.db.Save(state).Error
}
