package autobib

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is a handle onto a single autobib database file (spec §4.4).
// All record, identifier and null-cache state lives in this one SQLite
// file; Store is the only component that issues SQL.
type Store struct {
	db     *gorm.DB
	log    *logrus.Entry
	path   string
	reg    *Registry
	config *Config
	cache  *recordLookupCache
}

// defaultLookupCacheSize bounds the in-memory hot-path cache over
// `lookup`. Unlike the arXiv cache's 500k-paper LRU, autobib databases
// are personal bibliographies, not harvested archives, so a much smaller
// bound is plenty.
const defaultLookupCacheSize = 4096

// OpenOptions configures Open beyond the bare file path.
type OpenOptions struct {
	Logger   *logrus.Logger
	Registry *Registry
	Config   *Config
}

// Open opens (creating if absent) the autobib database at path, verifies
// or stamps its application_id, and migrates its schema to the current
// version (spec §4.4, §9). Foreign key enforcement is turned on at the
// connection level since SQLite defaults it off.
func Open(path string, opts OpenOptions) (*Store, error) {
	dsn := path + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite3",
		DSN:        dsn,
	}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, newDatabaseError("open", err)
	}

	log := opts.Logger
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.WarnLevel)
	}

	s := &Store{
		db:     db,
		log:    log.WithField("component", "store"),
		path:   path,
		reg:    opts.Registry,
		config: opts.Config,
		cache:  newRecordLookupCache(defaultLookupCacheSize),
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, newDatabaseError("open", err)
	}
	if err := s.initSchema(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return newDatabaseError("close", err)
	}
	if err := sqlDB.Close(); err != nil {
		return newDatabaseError("close", err)
	}
	return nil
}

// Path returns the filesystem path this Store was opened against.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(sqlDB *sql.DB) error {
	var foundAppID uint32
	if err := sqlDB.QueryRow(`PRAGMA application_id`).Scan(&foundAppID); err != nil {
		return newDatabaseError("pragma application_id", err)
	}
	var version int
	if err := sqlDB.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return newDatabaseError("pragma user_version", err)
	}

	fresh := version == 0 && foundAppID == 0
	if !fresh && foundAppID != applicationID {
		return &ForeignDatabaseError{Found: foundAppID}
	}
	if version > currentSchemaVersion {
		return &UnsupportedVersionError{Found: version, MaxSupported: currentSchemaVersion}
	}

	if fresh {
		s.log.Debug("initializing fresh database")
		if _, err := sqlDB.Exec(fmt.Sprintf(`PRAGMA application_id = %d`, applicationID)); err != nil {
			return newDatabaseError("set application_id", err)
		}
		version = 0
	}

	if version < currentSchemaVersion {
		if err := migrate(sqlDB, version, s.log); err != nil {
			return err
		}
	}
	return nil
}
