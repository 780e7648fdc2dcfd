package domain

import (
	"encoding/json"
	"time"
)

// Summary list category names, used as checklist categories and as JSON keys
// in the digest schema.
const (
	CategoryKeyDates    = "key_dates"
	CategoryActionItems = "action_items"
)

// DailySummary holds the structured digest for one calendar day. At most one
// row per date; days without communications get no row at all.
type DailySummary struct {
	ID                uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Date              string     `json:"date" gorm:"size:10;not null;uniqueIndex"` // YYYY-MM-DD
	KeyDates          string     `json:"key_dates" gorm:"type:text"`               // JSON list
	Deadlines         string     `json:"deadlines" gorm:"type:text"`               // JSON list
	CurriculumUpdates string     `json:"curriculum_updates" gorm:"type:text"`      // JSON list
	ActionItems       string     `json:"action_items" gorm:"type:text"`            // JSON list
	RawSummary        string     `json:"raw_summary" gorm:"type:text"`             // JSON overview object or raw text
	SourceItemIDs     string     `json:"source_item_ids" gorm:"type:text"`         // JSON sorted id list
	GeneratedAt       *time.Time `json:"generated_at"`
}

// TableName specifies the table name for GORM
func (DailySummary) TableName() string {
	return "daily_summaries"
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

func (s *DailySummary) KeyDatesList() []string          { return decodeStringList(s.KeyDates) }
func (s *DailySummary) DeadlinesList() []string         { return decodeStringList(s.Deadlines) }
func (s *DailySummary) CurriculumUpdatesList() []string { return decodeStringList(s.CurriculumUpdates) }
func (s *DailySummary) ActionItemsList() []string       { return decodeStringList(s.ActionItems) }

// SourceIDList decodes the sorted id set the summary was generated from.
func (s *DailySummary) SourceIDList() []uint {
	if s.SourceItemIDs == "" {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal([]byte(s.SourceItemIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// OverviewMap decodes the raw summary as a per-student overview object.
// Raw text written by the parse fallback comes back under "general".
func (s *DailySummary) OverviewMap() map[string]string {
	if s.RawSummary == "" {
		return map[string]string{}
	}
	var overview map[string]string
	if err := json.Unmarshal([]byte(s.RawSummary), &overview); err != nil {
		return map[string]string{"general": s.RawSummary}
	}
	return overview
}
