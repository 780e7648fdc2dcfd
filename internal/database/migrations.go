package database

import (
	"errors"
	"time"

	"schoolcomms-backend/internal/comm/domain"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationReclassifyPdfAttachments = "2026-05-11_reclassify_pdf_attachments"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationReclassifyPdfAttachments, apply: reclassifyPdfAttachments},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// reclassifyPdfAttachments repairs rows written before the extension fallback
// table existed: attachments whose filename says .pdf but whose mime type got
// the image/jpeg default. The PDF post-processor keys off mime_type, so these
// rows were invisible to it.
func reclassifyPdfAttachments(db *gorm.DB) error {
	return db.Model(&domain.Attachment{}).
		Where("lower(filename) LIKE ?", "%.pdf").
		Where("mime_type = ?", "image/jpeg").
		Update("mime_type", "application/pdf").Error
}
