package database

import (
	"testing"
	"time"

	"schoolcomms-backend/internal/comm/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("", nil)
	assert.Error(t, err)
}

func TestOpenSQLiteMigratesFreshStore(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)

	for _, table := range []string{
		"communication_items", "attachments", "sync_state",
		"daily_summaries", "checklist_items", "db_migrations",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestAttachmentsRelation(t *testing.T) {
	db, err := OpenSQLite(":memory:", nil)
	require.NoError(t, err)

	item := &domain.CommunicationItem{
		Source:    domain.SourceChildcare,
		SourceID:  "childcare_act_rel",
		Timestamp: time.Now(),
		Title:     "Maya: Activity",
		Attachments: []domain.Attachment{
			{Filename: "pic.jpg", MimeType: "image/jpeg", RemoteURL: "https://cdn.example.com/pic.jpg"},
			{Filename: "menu.pdf", MimeType: "application/pdf", RemoteURL: "https://cdn.example.com/menu.pdf"},
		},
	}
	require.NoError(t, db.Create(item).Error)

	var loaded domain.CommunicationItem
	require.NoError(t, db.Preload("Attachments").First(&loaded, item.ID).Error)
	require.Len(t, loaded.Attachments, 2)
	for _, att := range loaded.Attachments {
		assert.Equal(t, item.ID, att.CommunicationID)
	}
}
