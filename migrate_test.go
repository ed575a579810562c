package autobib

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestMigrateFromZeroCreatesAllTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	log := logrus.NewEntry(logrus.New())
	if err := migrate(db, 0, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("pragma user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Fatalf("got user_version %d, want %d", version, currentSchemaVersion)
	}

	for _, table := range []string{"records", "identifiers", "null_records"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing after migration: %v", table, err)
		}
	}
}

func TestMigrateIsIncremental(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	log := logrus.NewEntry(logrus.New())
	if err := migrate(db, 1, log); err != nil {
		t.Fatalf("migrate from v1: %v", err)
	}

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='records'`).Scan(&name)
	if err == nil {
		t.Fatal("expected records table to be absent when migrating starting from v1 without first creating v1's schema")
	}

	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='null_records'`).Scan(&name)
	if err != nil {
		t.Fatalf("expected null_records table from the v2 step: %v", err)
	}
}
