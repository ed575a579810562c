package autobib

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// lookup resolves name (a canonical identifier string or a citation key)
// to its currently active Record, if any (spec §4.4's `lookup`).
func (s *Store) lookup(name string) (*Record, error) {
	if rec, ok := s.cache.Get(name); ok {
		return rec, nil
	}
	var ident identifierRow
	err := s.db.Where("name = ?", name).First(&ident).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newDatabaseError("lookup", err)
	}
	rec, err := s.recordByKey(ident.RecordKey)
	if err != nil {
		return nil, err
	}
	s.cache.Put(name, rec)
	return rec, nil
}

func (s *Store) recordByKey(key int64) (*Record, error) {
	var row recordRow
	if err := s.db.Where("key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newDatabaseError("record_by_key", errors.New("dangling identifier: record row missing"))
		}
		return nil, newDatabaseError("record_by_key", err)
	}
	return decodeRecordRow(&row)
}

// recordByKeyOrNil is recordByKey but reports an absent row as (nil,
// nil) rather than a DatabaseError, for callers where "no such row" is
// an expected, non-fatal outcome (Resolve's Revision branch).
func (s *Store) recordByKeyOrNil(key int64) (*Record, error) {
	var row recordRow
	if err := s.db.Where("key = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, newDatabaseError("record_by_key", err)
	}
	return decodeRecordRow(&row)
}

func decodeRecordRow(row *recordRow) (*Record, error) {
	rec := &Record{
		Key:       row.Key,
		RecordID:  row.RecordID,
		Variant:   RecordVariant(row.Variant),
		Modified:  row.Modified,
		ParentKey: row.ParentKey,
		Children:  parseChildren(row.Children),
	}
	switch rec.Variant {
	case VariantEntry:
		d, err := Decode(row.Data)
		if err != nil {
			return nil, err
		}
		rec.Data = d
	case VariantDeleted:
		rec.Raw = row.Data
	case VariantVoid:
		// no payload; insertRecord always stores voidSentinelTime for a
		// void row, which does not parse back from its stored text form.
		rec.Modified = voidSentinelTime
	}
	return rec, nil
}

// insertRecord appends a new row to the Records table: an entry row
// carries codec-encoded data, a deleted row carries the UTF-8 bytes of
// its replacement canonical id (or none), a void row carries nothing
// and no parent (spec §3 invariant 2). db is the GORM handle to issue
// statements against — s.db for a standalone call, or a transaction
// handle when the insert must commit atomically with further writes
// (spec §4.4, §4.6 step 4c).
func (s *Store) insertRecord(db *gorm.DB, recordID string, variant RecordVariant, payload []byte, parentKey *int64, modified time.Time) (int64, error) {
	if payload == nil {
		// data is NOT NULL; an empty payload is stored as a zero-length blob.
		payload = []byte{}
	}
	row := &recordRow{
		RecordID:  recordID,
		Data:      payload,
		Modified:  modified,
		Variant:   int(variant),
		ParentKey: parentKey,
	}
	if variant == VariantVoid {
		row.Modified = voidSentinelTime
		row.ParentKey = nil
	}
	if err := db.Create(row).Error; err != nil {
		return 0, newDatabaseError("insert_record", err)
	}
	if parentKey != nil {
		if err := s.appendChild(db, *parentKey, row.Key); err != nil {
			return 0, err
		}
	}
	return row.Key, nil
}

// appendChild records childKey in parentKey's children column (a
// comma-separated, ascending list of row keys, chosen over a JSON or
// binary blob so the column stays readable under `sqlite3 .dump`).
func (s *Store) appendChild(db *gorm.DB, parentKey, childKey int64) error {
	var parent recordRow
	if err := db.Where("key = ?", parentKey).First(&parent).Error; err != nil {
		return newDatabaseError("append_child", err)
	}
	children := append(parseChildren(parent.Children), childKey)
	if err := db.Model(&recordRow{}).Where("key = ?", parentKey).
		Update("children", formatChildren(children)).Error; err != nil {
		return newDatabaseError("append_child", err)
	}
	return nil
}

// bindName points name at recordKey, creating the Identifiers row if
// absent (used to lazily cache a reference id's resolution, and to
// register a freshly created canonical name or alias). Callers that
// must commit the bind atomically with the record insert it follows
// pass the same transaction handle used for that insert.
func (s *Store) bindName(db *gorm.DB, name string, recordKey int64) error {
	ident := identifierRow{Name: name, RecordKey: recordKey}
	err := db.Clauses(onConflictUpdateRecordKey).Create(&ident).Error
	if err != nil {
		return newDatabaseError("bind_name", err)
	}
	s.cache.Invalidate(name)
	return nil
}

// setActive atomically repoints every Identifiers row currently pointing
// at any row of recordID's tree to point at newKey instead (spec §4.4:
// "atomically repoints every Identifiers row currently pointing at any
// row in that tree"). This is how edit-tree mutations move the active
// pointer while preserving every alias and reference name that was
// bound to the old active row.
func (s *Store) setActive(db *gorm.DB, recordID string, newKey int64) error {
	var keys []int64
	if err := db.Model(&recordRow{}).Where("record_id = ?", recordID).Pluck("key", &keys).Error; err != nil {
		return newDatabaseError("set_active", err)
	}
	if len(keys) == 0 {
		return newDatabaseError("set_active", fmt.Errorf("no rows for record_id %q", recordID))
	}
	if err := db.Model(&identifierRow{}).Where("record_key IN ?", keys).
		Update("record_key", newKey).Error; err != nil {
		return newDatabaseError("set_active", err)
	}
	s.cache.Clear()
	return nil
}

// addIdentifier inserts a brand-new name -> recordKey mapping, failing
// with AliasExistsError if name is already indexed (spec §4.4's
// `add_identifier`, used for fresh aliases and newly-registered
// canonical ids; unlike setActive it never overwrites).
func (s *Store) addIdentifier(name string, recordKey int64) error {
	var existing identifierRow
	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return &AliasExistsError{Name: name}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return newDatabaseError("add_identifier", err)
	}
	if err := s.db.Create(&identifierRow{Name: name, RecordKey: recordKey}).Error; err != nil {
		return newDatabaseError("add_identifier", err)
	}
	s.cache.Invalidate(name)
	return nil
}

// removeIdentifier deletes a name -> recordKey mapping, used when an
// alias is reassigned to a different target under a conflict policy
// that permits overwrite.
func (s *Store) removeIdentifier(name string) error {
	if err := s.db.Where("name = ?", name).Delete(&identifierRow{}).Error; err != nil {
		return newDatabaseError("remove_identifier", err)
	}
	s.cache.Invalidate(name)
	return nil
}

// nullMark records that resolving recordID against its provider
// produced a definitive absence, so future lookups can skip the network
// round trip until the entry expires (spec §4.6's negative cache).
func (s *Store) nullMark(recordID string, attempted time.Time) error {
	row := nullRecordRow{RecordID: recordID, Attempted: attempted}
	if err := s.db.Clauses(onConflictUpdateAttempted).Create(&row).Error; err != nil {
		return newDatabaseError("null_mark", err)
	}
	return nil
}

// nullClear removes a negative-cache entry, used when a record that was
// previously absent is later found (e.g. after a Revive or a remote
// publish).
func (s *Store) nullClear(recordID string) error {
	if err := s.db.Where("record_id = ?", recordID).Delete(&nullRecordRow{}).Error; err != nil {
		return newDatabaseError("null_clear", err)
	}
	return nil
}

// nullQuery reports whether recordID is currently negative-cached, and
// since when.
func (s *Store) nullQuery(recordID string) (time.Time, bool, error) {
	var row nullRecordRow
	err := s.db.Where("record_id = ?", recordID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, newDatabaseError("null_query", err)
	}
	return row.Attempted, true, nil
}
