package database

import (
	"fmt"
	"time"

	"whatsapp-messenger/internal/config"
	"whatsapp-messenger/internal/logging"
	"whatsapp-messenger/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// InitGorm opens the configured database and migrates it. It exits the
// process when the database is unusable.
func InitGorm(cfg *config.Config) *gorm.DB {
	db, err := Open(cfg.DBDriver, cfg)
	if err != nil {
		logrus.Fatalf("Failed to open %s database: %v", cfg.DBDriver, err)
	}
	if err := Migrate(db); err != nil {
		logrus.Fatalf("Failed to run auto-migration: %v", err)
	}
	logrus.WithField("driver", cfg.DBDriver).Info("Database migration completed")

	return db
}

// Open connects to either PostgreSQL or SQLite using the connection
// settings in cfg.
func Open(driver string, cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "postgresql":
		dialector = postgres.Open(PostgresDSN(cfg))
	case "sqlite", "sqlite3", "":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logging.GormLogger(),
		// Timestamps are stored in UTC so SQLite orders them correctly as text.
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("driver", driver).Info("Connected to database")
	return db, nil
}

func PostgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Contact{},
		&models.MessageTemplate{},
		&models.MessageLog{},
	)
}
