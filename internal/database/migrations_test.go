package database

import (
	"testing"
	"time"

	"schoolcomms-backend/internal/comm/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRecordsMigrations(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)

	var record migrationRecord
	require.NoError(t, db.Where("name = ?", migrationReclassifyPdfAttachments).Take(&record).Error)
	assert.NotZero(t, record.AppliedAtSeconds)
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)

	require.NoError(t, applyMigrations(db, nil))
	require.NoError(t, applyMigrations(db, nil))

	var count int64
	require.NoError(t, db.Model(&migrationRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReclassifyPdfAttachments(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)

	item := &domain.CommunicationItem{
		Source:    domain.SourceChildcare,
		SourceID:  "childcare_act_legacy",
		Timestamp: time.Now(),
		Title:     "Lunch menu",
		Attachments: []domain.Attachment{
			{Filename: "Menu.PDF", MimeType: "image/jpeg", RemoteURL: "https://cdn.example.com/menu.pdf"},
			{Filename: "photo.jpg", MimeType: "image/jpeg", RemoteURL: "https://cdn.example.com/photo.jpg"},
			{Filename: "report.pdf", MimeType: "application/pdf", RemoteURL: "https://cdn.example.com/report.pdf"},
		},
	}
	require.NoError(t, db.Create(item).Error)

	require.NoError(t, reclassifyPdfAttachments(db))

	var attachments []domain.Attachment
	require.NoError(t, db.Order("id ASC").Find(&attachments).Error)
	require.Len(t, attachments, 3)
	assert.Equal(t, "application/pdf", attachments[0].MimeType, "mislabeled pdf repaired")
	assert.Equal(t, "image/jpeg", attachments[1].MimeType, "real image untouched")
	assert.Equal(t, "application/pdf", attachments[2].MimeType)
}
