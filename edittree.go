package autobib

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
)

// ConflictPolicy controls how Update reconciles locally-held fields
// against a freshly fetched remote record (spec §4.5).
type ConflictPolicy int

const (
	PreferCurrent ConflictPolicy = iota
	PreferIncoming
	PromptPerField
)

// ConflictResolver is the externalized callback interface for `update`
// (spec §9): "the core remains non-interactive and testable" by routing
// any interactive decision through this interface rather than blocking
// on a terminal prompt directly.
type ConflictResolver interface {
	Resolve(field, current, incoming string) (string, error)
}

// activeForTree returns the Record currently reachable from Identifiers
// for the tree identified by recordID, or nil if the tree doesn't exist
// or (rare, after a hard delete) exists but is currently unindexed.
func (s *Store) activeForTree(recordID string) (*Record, error) {
	var keys []int64
	if err := s.db.Model(&recordRow{}).Where("record_id = ?", recordID).Pluck("key", &keys).Error; err != nil {
		return nil, newDatabaseError("active_for_tree", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	var ident identifierRow
	err := s.db.Where("record_key IN ?", keys).First(&ident).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, newDatabaseError("active_for_tree", err)
	}
	return s.recordByKey(ident.RecordKey)
}

// Edit creates a new child of the active node holding data, and makes it
// active (spec §4.5 "Edit").
func (s *Store) Edit(recordID string, data *EntryData) (*Record, error) {
	active, err := s.activeForTree(recordID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, newInputError("UnknownRecord", recordID)
	}
	payload, err := Encode(data)
	if err != nil {
		return nil, err
	}
	var key int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		key, terr = s.insertRecord(tx, recordID, VariantEntry, payload, &active.Key, time.Now().UTC())
		if terr != nil {
			return terr
		}
		return s.setActive(tx, recordID, key)
	})
	if err != nil {
		return nil, err
	}
	return s.recordByKey(key)
}

// Update fetches recordID's canonical sub-id from its provider, merges
// the incoming fields with the active record's current fields per
// policy, and makes the merged result active (spec §4.5 "Update
// (remote)").
func (s *Store) Update(ctx context.Context, recordID string, policy ConflictPolicy, resolver ConflictResolver) (*Record, error) {
	active, err := s.activeForTree(recordID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, newInputError("UnknownRecord", recordID)
	}
	if active.Variant != VariantEntry {
		return nil, newInputError("NotAnEntry", recordID)
	}

	ident, err := ParseIdentifier(s.reg, recordID)
	if err != nil {
		return nil, err
	}
	provCap, ok := s.reg.Lookup(ident.Provider)
	if !ok || !provCap.SupportsFetch {
		return nil, newInputError("NoRemoteSource", recordID)
	}

	outcome := provCap.Fetch(ctx, ident.SubID)
	switch outcome.Status {
	case FetchNetworkError:
		return nil, &NetworkError{Provider: ident.Provider, Err: outcome.NetErr}
	case FetchNotFound:
		return nil, newInputError("NullRemote", recordID)
	}

	merged, err := mergeEntryData(active.Data, outcome.Entry, policy, resolver)
	if err != nil {
		return nil, err
	}
	payload, err := Encode(merged)
	if err != nil {
		return nil, err
	}
	var key int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		key, terr = s.insertRecord(tx, recordID, VariantEntry, payload, &active.Key, time.Now().UTC())
		if terr != nil {
			return terr
		}
		return s.setActive(tx, recordID, key)
	})
	if err != nil {
		return nil, err
	}
	return s.recordByKey(key)
}

// mergeEntryData combines current and incoming per policy, consulting
// resolver for each differing field under PromptPerField.
func mergeEntryData(current, incoming *EntryData, policy ConflictPolicy, resolver ConflictResolver) (*EntryData, error) {
	out := NewEntryData(incoming.EntryType)
	seen := make(map[string]bool)
	for k, cv := range current.Fields {
		seen[k] = true
		iv, hasIncoming := incoming.Fields[k]
		switch {
		case !hasIncoming:
			out.Set(k, cv)
		case cv == iv:
			out.Set(k, cv)
		default:
			switch policy {
			case PreferCurrent:
				out.Set(k, cv)
			case PreferIncoming:
				out.Set(k, iv)
			case PromptPerField:
				if resolver == nil {
					out.Set(k, cv)
					continue
				}
				choice, err := resolver.Resolve(k, cv, iv)
				if err != nil {
					return nil, err
				}
				out.Set(k, choice)
			}
		}
	}
	for k, iv := range incoming.Fields {
		if !seen[k] {
			out.Set(k, iv)
		}
	}
	return out, nil
}

// DeleteSoft inserts a `deleted` child, optionally carrying a
// replacement canonical id, and makes it active (spec §4.5 "Delete
// (soft)").
func (s *Store) DeleteSoft(recordID, replacement string) (*Record, error) {
	active, err := s.activeForTree(recordID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, newInputError("UnknownRecord", recordID)
	}
	var payload []byte
	if replacement != "" {
		payload = []byte(replacement)
	}
	var key int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		key, terr = s.insertRecord(tx, recordID, VariantDeleted, payload, &active.Key, time.Now().UTC())
		if terr != nil {
			return terr
		}
		return s.setActive(tx, recordID, key)
	})
	if err != nil {
		return nil, err
	}
	return s.recordByKey(key)
}

// DeleteHard removes recordID's entire subtree; Identifiers rows
// cascade by foreign key. It refuses when some other tree's soft-delete
// leaf still names recordID as its replacement, since that replacement
// would otherwise silently stop resolving (spec §4.5: "Fails if
// identifiers remain unresolved").
func (s *Store) DeleteHard(recordID string) error {
	var blockers int64
	err := s.db.Model(&recordRow{}).
		Where("variant = ? AND data = ?", int(VariantDeleted), []byte(recordID)).
		Count(&blockers).Error
	if err != nil {
		return newDatabaseError("delete_hard", err)
	}
	if blockers > 0 {
		return newInputError("ReplacementInUse", recordID)
	}

	err = s.db.Where("record_id = ?", recordID).Delete(&recordRow{}).Error
	if err != nil {
		return newDatabaseError("delete_hard", err)
	}
	s.cache.Clear()
	return nil
}

// Revive inserts a new `entry` child under a `deleted` active node and
// makes it active (spec §4.5 "Revive").
func (s *Store) Revive(recordID string, data *EntryData) (*Record, error) {
	active, err := s.activeForTree(recordID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, newInputError("UnknownRecord", recordID)
	}
	if active.Variant != VariantDeleted {
		return nil, newInputError("NotDeleted", recordID)
	}
	payload, err := Encode(data)
	if err != nil {
		return nil, err
	}
	var key int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		key, terr = s.insertRecord(tx, recordID, VariantEntry, payload, &active.Key, time.Now().UTC())
		if terr != nil {
			return terr
		}
		return s.setActive(tx, recordID, key)
	})
	if err != nil {
		return nil, err
	}
	_ = s.nullClear(recordID)
	return s.recordByKey(key)
}

// Void inserts a new void root for recordID's tree and makes it active
// (spec §4.5 "Void"). The tree's prior rows are preserved and remain
// reachable by revision id; invariant 1's "single tree" constraint is
// read as applying to the non-void rows, since invariant 3 explicitly
// permits a void node to coexist as its own parentless root.
func (s *Store) Void(recordID string) (*Record, error) {
	existing, err := s.activeForTree(recordID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, newInputError("UnknownRecord", recordID)
	}
	var key int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		key, terr = s.insertRecord(tx, recordID, VariantVoid, nil, nil, voidSentinelTime)
		if terr != nil {
			return terr
		}
		return s.setActive(tx, recordID, key)
	})
	if err != nil {
		return nil, err
	}
	return s.recordByKey(key)
}

// Reset moves the active pointer to an explicit revision key, or, for a
// timestamp target, to the deepest node in the tree whose `modified` is
// at or before target (spec §4.5 "Reset"). If no node qualifies (the
// target predates the root), a void is inserted instead.
func (s *Store) Reset(recordID string, revisionKey *int64, target *time.Time) (*Record, error) {
	if revisionKey != nil {
		var row recordRow
		if err := s.db.Where("key = ? AND record_id = ?", *revisionKey, recordID).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, newInputError("BadRevision", recordID)
			}
			return nil, newDatabaseError("reset", err)
		}
		if err := s.setActive(s.db, recordID, row.Key); err != nil {
			return nil, err
		}
		return s.recordByKey(row.Key)
	}
	if target == nil {
		return nil, newInputError("MissingResetTarget", recordID)
	}

	var rows []recordRow
	if err := s.db.Where("record_id = ? AND variant != ?", recordID, int(VariantVoid)).Find(&rows).Error; err != nil {
		return nil, newDatabaseError("reset", err)
	}
	if len(rows) == 0 {
		return nil, newInputError("UnknownRecord", recordID)
	}

	depth := make(map[int64]int)
	byKey := make(map[int64]*recordRow, len(rows))
	for i := range rows {
		byKey[rows[i].Key] = &rows[i]
	}
	var depthOf func(k int64) int
	depthOf = func(k int64) int {
		if d, ok := depth[k]; ok {
			return d
		}
		row := byKey[k]
		d := 0
		if row.ParentKey != nil {
			if _, ok := byKey[*row.ParentKey]; ok {
				d = depthOf(*row.ParentKey) + 1
			}
		}
		depth[k] = d
		return d
	}

	var best *recordRow
	bestDepth := -1
	for i := range rows {
		row := &rows[i]
		if row.Modified.After(*target) {
			continue
		}
		d := depthOf(row.Key)
		if d > bestDepth {
			best, bestDepth = row, d
		}
	}
	if best == nil {
		return s.Void(recordID)
	}
	if err := s.setActive(s.db, recordID, best.Key); err != nil {
		return nil, err
	}
	return s.recordByKey(best.Key)
}

// Undo moves the active pointer to its parent. Unless force is set, it
// refuses to move into a `deleted` node (spec §4.5 "Undo").
func (s *Store) Undo(recordID string, force bool) (*Record, error) {
	active, err := s.activeForTree(recordID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, newInputError("UnknownRecord", recordID)
	}
	if active.ParentKey == nil {
		return nil, newInputError("NoParent", recordID)
	}
	parent, err := s.recordByKey(*active.ParentKey)
	if err != nil {
		return nil, err
	}
	if parent.Variant == VariantDeleted && !force {
		return nil, newInputError("RefusedIntoDeleted", recordID)
	}
	if err := s.setActive(s.db, recordID, parent.Key); err != nil {
		return nil, err
	}
	return parent, nil
}

// Redo moves the active pointer to a child: the explicit index if given,
// otherwise the newest non-deleted child. Unless force is set, it
// refuses to move into a `deleted` node (spec §4.5 "Redo").
func (s *Store) Redo(recordID string, index *int, force bool) (*Record, error) {
	active, err := s.activeForTree(recordID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, newInputError("UnknownRecord", recordID)
	}
	if len(active.Children) == 0 {
		return nil, newInputError("NoChildren", recordID)
	}

	children := make([]*Record, 0, len(active.Children))
	for _, k := range active.Children {
		rec, err := s.recordByKey(k)
		if err != nil {
			return nil, err
		}
		children = append(children, rec)
	}

	var chosen *Record
	if index != nil {
		if *index < 0 || *index >= len(children) {
			return nil, newInputError("BadRevision", "redo index out of range")
		}
		chosen = children[*index]
	} else {
		candidates := children
		var nonDeleted []*Record
		for _, c := range children {
			if c.Variant != VariantDeleted {
				nonDeleted = append(nonDeleted, c)
			}
		}
		if len(nonDeleted) > 0 {
			candidates = nonDeleted
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Modified.Equal(candidates[j].Modified) {
				return candidates[i].Key > candidates[j].Key
			}
			return candidates[i].Modified.After(candidates[j].Modified)
		})
		chosen = candidates[0]
	}

	if chosen.Variant == VariantDeleted && !force {
		return nil, newInputError("RefusedIntoDeleted", recordID)
	}
	if err := s.setActive(s.db, recordID, chosen.Key); err != nil {
		return nil, err
	}
	return chosen, nil
}

// Replace soft-deletes recordID storing replacementID, after verifying
// that replacementID currently resolves to some active record (spec
// §4.5 "Replace": "the replacement must currently resolve").
func (s *Store) Replace(recordID, replacementID string) (*Record, error) {
	target, err := s.activeForTree(replacementID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		target, err = s.lookup(replacementID)
		if err != nil {
			return nil, err
		}
	}
	if target == nil {
		return nil, newInputError("ReplacementNotFound", replacementID)
	}
	return s.DeleteSoft(recordID, replacementID)
}
