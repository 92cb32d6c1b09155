package db

import (
	"testing"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/config"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	conn, err := Open(config.DBConfig{Driver: "SQLite", DSN: "file::memory:?cache=shared"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer Close(conn)

	if err := Ping(conn); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := SetTimezone(conn, "UTC"); err != nil {
		t.Fatalf("timezone: %v", err)
	}
	if err := AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"status_events", "heartbeats", "subscribers", "notification_cursors"} {
		if !conn.Gorm.Migrator().HasTable(table) {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(config.DBConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNilSafe(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Fatalf("close nil: %v", err)
	}
	if err := AutoMigrate(nil); err != nil {
		t.Fatalf("migrate nil: %v", err)
	}
}
