package autobib

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// migrationStep brings a database from exactly version-1 to version; each
// step runs inside its own transaction, and PRAGMA user_version is only
// advanced on commit (spec §9: "migrations are forward-only and
// transactional").
type migrationStep struct {
	version int
	stmts   []string
}

// migrations lists every step in order. v1 establishes the base schema
// (Records and its indices, Identifiers); v2 adds the NullRecords table,
// keyed by record_id, for resolution's negative-cache lookups (SPEC_FULL
// §4.4).
var migrations = []migrationStep{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE records (
				key         INTEGER PRIMARY KEY AUTOINCREMENT,
				record_id   TEXT NOT NULL,
				data        BLOB NOT NULL,
				modified    DATETIME NOT NULL,
				variant     INTEGER NOT NULL,
				parent_key  INTEGER REFERENCES records(key) ON DELETE CASCADE,
				children    TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX idx_records_record_id ON records(record_id)`,
			`CREATE INDEX idx_records_parent_key ON records(parent_key)`,
			`CREATE INDEX idx_records_modified ON records(modified)`,
			`CREATE TABLE identifiers (
				name        TEXT PRIMARY KEY,
				record_key  INTEGER NOT NULL REFERENCES records(key) ON DELETE CASCADE
			)`,
			`CREATE INDEX idx_identifiers_record_key ON identifiers(record_key)`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`CREATE TABLE null_records (
				record_id   TEXT PRIMARY KEY,
				attempted   DATETIME NOT NULL
			)`,
		},
	},
}

// migrate runs every migrationStep with version > from, in order, each in
// its own transaction.
func migrate(sqlDB *sql.DB, from int, log *logrus.Entry) error {
	for _, step := range migrations {
		if step.version <= from {
			continue
		}
		log.WithField("version", step.version).Info("running schema migration")
		tx, err := sqlDB.Begin()
		if err != nil {
			return newDatabaseError("migrate begin", err)
		}
		for _, stmt := range step.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return newDatabaseError(fmt.Sprintf("migrate to v%d", step.version), err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, step.version)); err != nil {
			_ = tx.Rollback()
			return newDatabaseError(fmt.Sprintf("migrate to v%d", step.version), err)
		}
		if err := tx.Commit(); err != nil {
			return newDatabaseError(fmt.Sprintf("migrate to v%d", step.version), err)
		}
	}
	return nil
}
