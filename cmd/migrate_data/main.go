package main

import (
	"whatsapp-messenger/internal/config"
	"whatsapp-messenger/internal/database"
	"whatsapp-messenger/internal/logging"
	"whatsapp-messenger/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 200

// Copies contacts, templates and message logs from the SQLite file at DB_PATH
// into the PostgreSQL database described by the DB_* settings. Rows already
// present in PostgreSQL are left alone, so the tool can be re-run.
func main() {
	cfg := config.LoadConfig()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	sqliteDB, err := database.Open("sqlite", cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to SQLite: %v", err)
	}
	logrus.Infof("Connected to SQLite at %s", cfg.DBPath)

	pgDB, err := database.Open("postgres", cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	if err := database.Migrate(pgDB); err != nil {
		logrus.Fatalf("Failed to migrate PostgreSQL schema: %v", err)
	}

	logrus.Info("Starting data migration...")
	if err := migrateAll(sqliteDB, pgDB); err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}
	logrus.Info("Migration completed!")
}

func migrateAll(src, dst *gorm.DB) error {
	steps := []func() error{
		func() error { return copyTable[models.Contact](src, dst, "contacts") },
		func() error { return copyTable[models.MessageTemplate](src, dst, "message_templates") },
		func() error { return copyTable[models.MessageLog](src, dst, "message_logs") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// copyTable streams one table in batches inside a single destination
// transaction. Existing primary keys are skipped.
func copyTable[T any](src, dst *gorm.DB, table string) error {
	log := logrus.WithField("table", table)
	log.Info("Migrating table")

	copied := 0
	err := dst.Transaction(func(tx *gorm.DB) error {
		var batch []T
		return src.FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&batch).Error; err != nil {
				return err
			}
			copied += len(batch)
			return nil
		}).Error
	})
	if err != nil {
		log.WithError(err).Error("Error migrating table")
		return err
	}

	log.WithField("rows", copied).Info("Successfully migrated table")
	return nil
}
