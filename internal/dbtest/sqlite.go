// Package dbtest opens in-memory sqlite databases carrying the production
// schema for repository and handler tests.
package dbtest

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		clerk_id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		name TEXT,
		registered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_onboarded BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX clerk_id_idx ON users (clerk_id)`,
	`CREATE TABLE websites (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		currency TEXT NOT NULL DEFAULT 'USD',
		timezone TEXT NOT NULL DEFAULT 'UTC'
	)`,
	`CREATE INDEX user_id_idx ON websites (user_id)`,
	`CREATE TABLE connections (
		id INTEGER PRIMARY KEY,
		website_id INTEGER NOT NULL REFERENCES websites (id) ON DELETE CASCADE,
		platform TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('source', 'destination')),
		config TEXT NOT NULL DEFAULT '{}',
		encrypted_access_token TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX website_id_idx ON connections (website_id)`,
	`CREATE TABLE event_logs (
		id INTEGER PRIMARY KEY,
		website_id INTEGER NOT NULL REFERENCES websites (id) ON DELETE CASCADE,
		event_id TEXT NOT NULL,
		event_name TEXT NOT NULL,
		event_source_url TEXT,
		user_ip_address TEXT,
		user_agent TEXT,
		fbp TEXT,
		fbc TEXT,
		hashed_email TEXT,
		hashed_phone TEXT,
		value TEXT,
		currency TEXT,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'failed', 'duplicate')),
		platform_response TEXT,
		original_payload TEXT,
		match_quality_score TEXT,
		received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		event_time DATETIME NOT NULL,
		relayed_at DATETIME
	)`,
	`CREATE INDEX log_website_id_idx ON event_logs (website_id)`,
	`CREATE INDEX log_event_id_idx ON event_logs (event_id)`,
	`CREATE INDEX log_event_name_idx ON event_logs (event_name)`,
	`CREATE UNIQUE INDEX unique_event_id_per_site ON event_logs (website_id, event_id)`,
	`CREATE INDEX log_pending_received_at_idx ON event_logs (received_at) WHERE status = 'pending'`,
}

// Open returns a fresh database named after the running test. A single
// connection is kept so the in-memory database and the foreign key pragma
// survive for the whole test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto&_foreign_keys=1", name)
	return open(t, dsn, 1)
}

// OpenPool returns a file backed database in WAL mode served by conns
// connections, so statements issued from different goroutines really run
// side by side. Writers wait on each other through the busy timeout.
func OpenPool(t *testing.T, conns int) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clarity.db")
	dsn := fmt.Sprintf("file:%s?_loc=auto&_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000", path)
	return open(t, dsn, conns)
}

func open(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if err := db.Exec(pragma).Error; err != nil {
			t.Fatalf("%s: %v", pragma, err)
		}
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// Count returns the number of rows in table matching where.
func Count(t *testing.T, db *gorm.DB, table, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := db.Table(table)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
