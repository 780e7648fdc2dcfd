package domain

import "time"

// SyncState records the per-source watermark. It is written only at the end
// of a successful pass, inside that pass's transaction, so a failed run can
// never advance it.
type SyncState struct {
	ID         uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Source     Source     `json:"source" gorm:"size:20;not null;uniqueIndex"`
	LastSyncAt *time.Time `json:"last_sync_at"`
	PageCursor string     `json:"page_cursor" gorm:"size:500"`
	Extra      string     `json:"extra,omitempty" gorm:"type:text"` // JSON
}

// TableName specifies the table name for GORM
func (SyncState) TableName() string {
	return "sync_state"
}
