package models

import (
	"fmt"
	"time"

	"github.com/taskmate/backend/internal/config"
	applog "github.com/taskmate/backend/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// gormWriter routes gorm's own logging through zerolog.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	applog.Warn().Str("component", "gorm").Msgf(format, args...)
}

// Open connects to the configured database without touching the global DB.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
		// Users are created lazily from identity-provider ids, so rows may
		// reference users without a profile.
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// One connection serializes writers; approvals rely on this in
		// place of SELECT ... FOR UPDATE.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Migrate creates or updates every table plus the partial unique index that
// backs the one-pending-request rule where the dialect supports it.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Project{},
		&Membership{},
		&JoinRequest{},
		&Message{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
	); err != nil {
		return err
	}

	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		return db.Exec(
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_request_pending " +
				"ON project_requests (project_id, user_id) WHERE status = 'PENDING'",
		).Error
	}
	return nil
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default system configs if missing.
func SeedDefaultData(db *gorm.DB) error {
	defaultConfigs := []SystemConfig{
		{Key: ConfigLogRetentionDays, Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		if err := db.Model(&SystemConfig{}).Where("config_key = ?", cfg.Key).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
