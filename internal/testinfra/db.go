// Package testinfra opens throwaway databases for package tests.
package testinfra

import (
	"testing"

	"github.com/taskmate/backend/internal/config"
	"github.com/taskmate/backend/internal/models"
	"gorm.io/gorm"
)

// NewTestDB returns a migrated in-memory sqlite database that is closed when
// the test ends.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
