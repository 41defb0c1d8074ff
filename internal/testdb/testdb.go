// Package testdb points the global database handle at a throwaway in-memory
// SQLite database for tests.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/taskboard-dev/taskboard/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var counter atomic.Int64

// Open replaces db.DB with a fresh migrated in-memory database. Each call
// gets its own database, so tests never share state.
func Open(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", counter.Add(1))

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})

	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	db.DB = conn

	if err := db.MigrateDatabase(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
}
