package domain

import "time"

// ChecklistItem is a persistent, user-checkable entry derived from the daily
// summaries. Reconciliation matches new summary lines against existing rows
// fuzzily, so a row keeps its identity (and checked state) when the model
// rewords it.
type ChecklistItem struct {
	ID         uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Category   string     `json:"category" gorm:"size:50;not null;index"` // key_dates or action_items
	ItemText   string     `json:"item_text" gorm:"type:text;not null"`
	IsChecked  bool       `json:"is_checked" gorm:"default:false"`
	CheckedAt  *time.Time `json:"checked_at,omitempty"`
	SourceDate string     `json:"source_date,omitempty" gorm:"size:10"` // YYYY-MM-DD
	EventDate  *time.Time `json:"event_date,omitempty" gorm:"index"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName specifies the table name for GORM
func (ChecklistItem) TableName() string {
	return "checklist_items"
}
