package autobib

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// BatchEntry is one line of input to a source/import run, paired with
// its resolution result (spec §4.6 "Source-file ingestion").
type BatchEntry struct {
	Input   string
	Outcome Outcome
}

// BatchOptions controls which input lines a batch run actually resolves
// (spec §4.6: "Identifiers skipped via --skip/--skip-from or already
// present in an --append output file are filtered before resolution").
type BatchOptions struct {
	// Skip lists identifier strings to filter out outright.
	Skip map[string]bool
	// Present lists identifier strings already recorded in an --append
	// target; also filtered out.
	Present    map[string]bool
	AliasRules []AliasRule
}

// ReadSkipList parses a --skip-from file: one identifier per line,
// blank lines and lines starting with '#' as a whole-line comment
// ignored. A leading '#' followed by hex digits is a revision
// identifier, not a comment, so only an exact '#' line (or one followed
// by a space) is treated as a comment marker.
func ReadSkipList(r io.Reader) (map[string]bool, error) {
	out := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# ") || line == "#" {
			continue
		}
		out[line] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, newInputError("BadSkipFile", err.Error())
	}
	return out, nil
}

// RunBatch resolves each non-blank, non-filtered line of r in order,
// collecting every outcome. Each identifier is resolved independently:
// an input error or absence outcome on one line does not abort the run
// for the rest (spec §4.6, §5 "a batch ... does not guarantee atomicity
// across entries"), while a database error stops the batch and is
// returned alongside the entries collected so far.
func (s *Store) RunBatch(ctx context.Context, r io.Reader, opts BatchOptions) ([]BatchEntry, error) {
	var entries []BatchEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") && isCommentLine(line) {
			continue
		}
		if opts.Skip[line] || opts.Present[line] {
			continue
		}
		outcome := s.Resolve(ctx, line, opts.AliasRules)
		entries = append(entries, BatchEntry{Input: line, Outcome: outcome})
		if outcome.Kind == OutcomeDatabaseError {
			// A fatal storage error aborts the rest of the batch (spec
			// §7: "Fatal errors ... in batch, abort the batch"); input
			// and absence outcomes do not.
			return entries, outcome.Err
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, newInputError("BadBatchInput", err.Error())
	}
	return entries, nil
}

// isCommentLine distinguishes a '#'-as-comment-marker line from a
// revision identifier, which also begins with '#' but is followed by
// hex digits with no space. A batch file comment is "# ..." or a bare
// "#"; "#1a2b" is a revision identifier line and must resolve.
func isCommentLine(line string) bool {
	rest := strings.TrimPrefix(line, "#")
	if rest == "" {
		return true
	}
	return strings.HasPrefix(rest, " ") || !isHexString(rest)
}

func isHexString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

// BatchSummary tallies outcome kinds for end-of-run reporting.
type BatchSummary struct {
	Total, Entries, NullRemote, NullAlias, Deleted, BadIdentifier, NetworkErrors int
}

// Summarize tallies entries by outcome kind.
func Summarize(entries []BatchEntry) BatchSummary {
	var sum BatchSummary
	sum.Total = len(entries)
	for _, e := range entries {
		switch e.Outcome.Kind {
		case OutcomeEntry:
			sum.Entries++
		case OutcomeNullRemote:
			sum.NullRemote++
		case OutcomeNullAlias:
			sum.NullAlias++
		case OutcomeDeleted:
			sum.Deleted++
		case OutcomeBadIdentifier:
			sum.BadIdentifier++
		case OutcomeNetworkError:
			sum.NetworkErrors++
		}
	}
	return sum
}
