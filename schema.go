package autobib

import "time"

// applicationID is the SQLite "PRAGMA application_id" value stamped on
// every autobib database, used to reject files that aren't ours
// (spec §4.4, §6).
const applicationID = 0x16611F2F

// currentSchemaVersion is the SQLite "PRAGMA user_version" this build
// writes and understands. A database reporting a smaller version is
// migrated up; a larger version is UnsupportedVersionError.
const currentSchemaVersion = 2

// RecordVariant discriminates the three kinds of Records row (spec §3).
type RecordVariant int

const (
	VariantEntry   RecordVariant = 0
	VariantDeleted RecordVariant = 1
	VariantVoid    RecordVariant = 2
)

func (v RecordVariant) String() string {
	switch v {
	case VariantEntry:
		return "entry"
	case VariantDeleted:
		return "deleted"
	case VariantVoid:
		return "void"
	default:
		return "unknown"
	}
}

// voidSentinelTime is the fixed timestamp assigned to a void record's
// `modified` column (spec §3 invariant 2): year -262143, the minimum
// representable year under the tree-ordering invariant, so a void node
// always sorts as "oldest" despite being a root with no parent.
var voidSentinelTime = time.Date(-262143, time.January, 1, 0, 0, 0, 0, time.UTC)

// recordRow is the GORM model for the Records table (spec §4.4). DDL is
// issued by hand in migrate.go (ON DELETE CASCADE on parent_key isn't
// reliably expressible through GORM struct tags against SQLite); this
// struct is used only for row-level CRUD via GORM's model API.
type recordRow struct {
	Key       int64     `gorm:"column:key;primaryKey;autoIncrement"`
	RecordID  string    `gorm:"column:record_id"`
	Data      []byte    `gorm:"column:data"`
	Modified  time.Time `gorm:"column:modified"`
	Variant   int       `gorm:"column:variant"`
	ParentKey *int64    `gorm:"column:parent_key"`
	Children  string    `gorm:"column:children"`
}

func (recordRow) TableName() string { return "records" }

// identifierRow is the GORM model for the Identifiers table.
type identifierRow struct {
	Name      string `gorm:"column:name;primaryKey"`
	RecordKey int64  `gorm:"column:record_key"`
}

func (identifierRow) TableName() string { return "identifiers" }

// nullRecordRow is the GORM model for the NullRecords table.
type nullRecordRow struct {
	RecordID  string    `gorm:"column:record_id;primaryKey"`
	Attempted time.Time `gorm:"column:attempted"`
}

func (nullRecordRow) TableName() string { return "null_records" }

// Record is the public, decoded view of a recordRow: the codec-decoded
// field data (for entry variants) or raw replacement bytes (for
// deleted/void variants), plus tree metadata.
type Record struct {
	Key       int64
	RecordID  string
	Variant   RecordVariant
	Data      *EntryData // non-nil only for VariantEntry
	Raw       []byte     // raw bytes for VariantDeleted's replacement id, empty for VariantEntry/VariantVoid
	Modified  time.Time
	ParentKey *int64
	Children  []int64
}

// ReplacementID returns the UTF-8 replacement canonical id stored on a
// deleted record, if any.
func (r *Record) ReplacementID() string {
	if r.Variant != VariantDeleted || len(r.Raw) == 0 {
		return ""
	}
	return string(r.Raw)
}
