package domain

import (
	"encoding/json"
	"time"
)

// Source identifies which adapter produced a communication item.
type Source string

const (
	SourceMail      Source = "mail"
	SourceChildcare Source = "childcare"
	SourceMessaging Source = "messaging"
)

// KnownSources lists every source the orchestrator can sync.
var KnownSources = []Source{SourceMail, SourceChildcare, SourceMessaging}

// ValidSource reports whether s names a known adapter.
func ValidSource(s Source) bool {
	for _, known := range KnownSources {
		if s == known {
			return true
		}
	}
	return false
}

// CommunicationItem is the canonical record every adapter normalizes into.
// Rows are written once by the dedup writer and never updated afterwards,
// except by versioned repair migrations.
type CommunicationItem struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index;index:idx_comm_source_timestamp,priority:2"`
	Title     string    `json:"title" gorm:"size:500"`
	Sender    string    `json:"sender" gorm:"size:200"`
	BodyPlain string    `json:"body_plain" gorm:"type:text"`
	BodyHTML  string    `json:"body_html,omitempty" gorm:"type:text"`
	Source    Source    `json:"source" gorm:"size:20;not null;index;index:idx_comm_source_timestamp,priority:1"`
	SourceID  string    `json:"source_id" gorm:"size:200;not null;uniqueIndex"`

	// Mail-specific
	MailThreadID string `json:"mail_thread_id,omitempty" gorm:"size:100"`
	MailLabelIDs string `json:"mail_label_ids,omitempty" gorm:"type:text"` // JSON list
	MailSnippet  string `json:"mail_snippet,omitempty" gorm:"size:500"`

	// Childcare-specific
	StudentName string `json:"student_name,omitempty" gorm:"size:200"`
	Room        string `json:"room,omitempty" gorm:"size:200"`
	ActionType  string `json:"action_type,omitempty" gorm:"size:100"`
	DetailBlob  string `json:"detail_blob,omitempty" gorm:"type:text"` // JSON

	// Messaging-specific
	GroupName string `json:"group_name,omitempty" gorm:"size:200"`

	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:CommunicationID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (CommunicationItem) TableName() string {
	return "communication_items"
}

// LabelList decodes the stored JSON label ids.
func (c *CommunicationItem) LabelList() []string {
	if c.MailLabelIDs == "" {
		return nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(c.MailLabelIDs), &labels); err != nil {
		return nil
	}
	return labels
}

// DetailMap decodes the stored childcare detail blob.
func (c *CommunicationItem) DetailMap() map[string]interface{} {
	if c.DetailBlob == "" {
		return map[string]interface{}{}
	}
	var details map[string]interface{}
	if err := json.Unmarshal([]byte(c.DetailBlob), &details); err != nil {
		return map[string]interface{}{}
	}
	return details
}

// Attachment is a file reference carried by a communication item. The PDF
// post-processor fills LocalPath, IsDownloaded and ExtractedText.
type Attachment struct {
	ID              uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	CommunicationID uint    `json:"communication_id" gorm:"not null;index"`
	Filename        string  `json:"filename" gorm:"size:300;not null"`
	MimeType        string  `json:"mime_type" gorm:"size:100"`
	RemoteURL       string  `json:"remote_url" gorm:"type:text"`
	LocalPath       string  `json:"local_path,omitempty" gorm:"type:text"`
	IsDownloaded    bool    `json:"is_downloaded" gorm:"default:false"`
	ExtractedText   *string `json:"extracted_text,omitempty" gorm:"type:text"`
}

// TableName specifies the table name for GORM
func (Attachment) TableName() string {
	return "attachments"
}
