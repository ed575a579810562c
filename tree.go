package autobib

import (
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm/clause"
)

var onConflictUpdateRecordKey = clause.OnConflict{
	Columns:   []clause.Column{{Name: "name"}},
	DoUpdates: clause.AssignmentColumns([]string{"record_key"}),
}

var onConflictUpdateAttempted = clause.OnConflict{
	Columns:   []clause.Column{{Name: "record_id"}},
	DoUpdates: clause.AssignmentColumns([]string{"attempted"}),
}

// parseChildren decodes the Records.children column: a comma-separated
// list of row keys, ascending, with "" meaning no children.
func parseChildren(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func formatChildren(keys []int64) string {
	sorted := append([]int64(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, k := range sorted {
		parts[i] = strconv.FormatInt(k, 10)
	}
	return strings.Join(parts, ",")
}

// Tree returns recordID's full edit-tree, root-first: every root (the
// original entry root, plus any void roots inserted later) followed by
// its descendants (spec §4.4's `tree`).
func (s *Store) Tree(recordID string) ([]*Record, error) {
	var roots []recordRow
	if err := s.db.Where("record_id = ? AND parent_key IS NULL", recordID).
		Order("modified DESC").Find(&roots).Error; err != nil {
		return nil, newDatabaseError("tree", err)
	}
	if len(roots) == 0 {
		return nil, newInputError("UnknownRecord", recordID)
	}

	var out []*Record
	for _, root := range roots {
		sub, err := s.tree(root.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// tree loads the full revision tree rooted at rootKey, root-first
// (spec §4.5's iteration order: a node is always visited before its
// children). This is a BFS over the children column rather than a
// recursive SQL CTE, matching the teacher's preference for Go-side
// traversal over exotic SQL (cache.go builds its FTS5 index with plain
// Exec, not recursive queries) and keeping the ordering explicit.
func (s *Store) tree(rootKey int64) ([]*Record, error) {
	root, err := s.recordByKey(rootKey)
	if err != nil {
		return nil, err
	}
	out := []*Record{root}
	queue := append([]int64(nil), root.Children...)
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		rec, err := s.recordByKey(key)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
		queue = append(queue, rec.Children...)
	}
	return out, nil
}

// root walks parent pointers up from key to the tree's root record.
func (s *Store) root(key int64) (*Record, error) {
	rec, err := s.recordByKey(key)
	if err != nil {
		return nil, err
	}
	for rec.ParentKey != nil {
		rec, err = s.recordByKey(*rec.ParentKey)
		if err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// RevisionHex renders a record's internal key as the lowercase hex
// digits used in a revision identifier's sub-id (spec §9: "implementers
// must derive the hex digits from the row's internal primary key").
func RevisionHex(key int64) string {
	return strconv.FormatInt(key, 16)
}

// parseRevisionHex parses a revision sub-id's hex digits back to the
// internal key, tolerating upper/lowercase and leading zeros.
func parseRevisionHex(s string) (int64, error) {
	return strconv.ParseInt(s, 16, 64)
}
