package autobib

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// OutcomeKind discriminates the result of Resolve (spec §4.6).
type OutcomeKind int

const (
	OutcomeEntry OutcomeKind = iota
	OutcomeNullRemote
	OutcomeNullAlias
	OutcomeDeleted
	OutcomeBadIdentifier
	OutcomeNetworkError
	OutcomeDatabaseError
)

// Outcome is the result of resolving a single input string to a record,
// or an explanation of why that failed (spec §4.6).
type Outcome struct {
	Kind        OutcomeKind
	Record      *Record
	Replacement string // set when Kind == OutcomeDeleted and a replacement id was recorded
	Err         error  // set for OutcomeBadIdentifier, OutcomeNetworkError, OutcomeDatabaseError
	CiteKey     string // the name used to reach Record, set when Kind == OutcomeEntry
}

// defaultNegativeCacheTTL bounds how long a NullRecord is honored before
// resolve will attempt the provider again, even without an explicit
// null_clear. Not named in spec §4.6 (which describes the cache as
// persisting "until explicitly evicted"); this is a belt-and-suspenders
// SPEC_FULL addition so a transient provider outage doesn't wedge a
// record shut forever. Used only when a Store was opened without an
// explicit Config; a Config whose NegativeCacheTTL is zero disables
// expiry instead.
const defaultNegativeCacheTTL = 30 * 24 * time.Hour

// negativeCacheTTL returns the configured TTL from s.config if one was
// supplied at Open (zero meaning "never expire", per Config.NegativeCacheTTL's
// own doc comment), falling back to defaultNegativeCacheTTL only when no
// Config was supplied at all.
func (s *Store) negativeCacheTTL() time.Duration {
	if s.config != nil {
		return s.config.NegativeCacheTTL
	}
	return defaultNegativeCacheTTL
}

// Resolve implements the lookup state machine of spec §4.6: parse the
// input, try the fast path through Identifiers, and otherwise branch on
// identifier kind, consulting and maintaining the negative cache for
// canonical ids.
func (s *Store) Resolve(ctx context.Context, input string, aliasRules []AliasRule) Outcome {
	ident, err := ParseIdentifier(s.reg, input)
	if err != nil {
		return Outcome{Kind: OutcomeBadIdentifier, Err: err}
	}

	if ident.Kind == KindAlias && len(aliasRules) > 0 {
		transformed, matched, terr := ApplyAliasTransform(s.reg, aliasRules, ident)
		if terr != nil {
			return Outcome{Kind: OutcomeBadIdentifier, Err: terr}
		}
		if matched {
			ident = transformed
		}
	}

	// Fast path: an already-indexed name resolves without touching the
	// provider at all (spec §4.6 step 2; P5, P6).
	if rec, lerr := s.lookup(nameOf(ident)); lerr != nil {
		return Outcome{Kind: OutcomeDatabaseError, Err: lerr}
	} else if rec != nil {
		return outcomeFromRecord(rec, nameOf(ident))
	}

	switch ident.Kind {
	case KindAlias:
		return Outcome{Kind: OutcomeNullAlias}

	case KindRevision:
		rec, rerr := s.recordByKeyOrNil(ident.RevisionKey)
		if rerr != nil {
			return Outcome{Kind: OutcomeDatabaseError, Err: rerr}
		}
		if rec == nil {
			return Outcome{Kind: OutcomeBadIdentifier, Err: newInputError("BadRevision", input)}
		}
		return outcomeFromRecord(rec, input)

	case KindReference:
		provCap, ok := s.reg.Lookup(ident.Provider)
		if !ok {
			return Outcome{Kind: OutcomeBadIdentifier, Err: newInputError("UnknownProvider", string(ident.Provider))}
		}
		canonProvider, canonSubID, rerr := provCap.Resolve(ctx, ident.SubID)
		if rerr != nil {
			if ne, ok := rerr.(*NetworkError); ok {
				return Outcome{Kind: OutcomeNetworkError, Err: ne}
			}
			return Outcome{Kind: OutcomeBadIdentifier, Err: rerr}
		}
		canonical := Identifier{Kind: KindCanonical, Provider: canonProvider, SubID: canonSubID}
		out := s.resolveCanonical(ctx, canonical)
		if out.Kind == OutcomeEntry {
			// Cache the reference -> canonical mapping (spec §4.6 step
			// 3's Reference branch; P6).
			if berr := s.bindName(s.db, nameOf(ident), out.Record.Key); berr != nil {
				return Outcome{Kind: OutcomeDatabaseError, Err: berr}
			}
			out.CiteKey = nameOf(ident)
		}
		return out

	case KindCanonical:
		return s.resolveCanonical(ctx, ident)

	default:
		return Outcome{Kind: OutcomeBadIdentifier, Err: newInputError("UnknownProvider", input)}
	}
}

// resolveCanonical implements spec §4.6 step 4 for a canonical
// identifier that the fast path did not already resolve.
func (s *Store) resolveCanonical(ctx context.Context, ident Identifier) Outcome {
	canonicalName := ident.CanonicalName()

	ttl := s.negativeCacheTTL()
	if attempted, found, err := s.nullQuery(canonicalName); err != nil {
		return Outcome{Kind: OutcomeDatabaseError, Err: err}
	} else if found && (ttl == 0 || time.Since(attempted) < ttl) {
		return Outcome{Kind: OutcomeNullRemote}
	}

	// The tree may already exist but be currently unindexed (rare, after
	// a hard delete followed by re-import of a sibling reference).
	if active, err := s.activeForTree(canonicalName); err != nil {
		return Outcome{Kind: OutcomeDatabaseError, Err: err}
	} else if active != nil {
		if berr := s.bindName(s.db, canonicalName, active.Key); berr != nil {
			return Outcome{Kind: OutcomeDatabaseError, Err: berr}
		}
		return outcomeFromRecord(active, canonicalName)
	}

	provCap, ok := s.reg.Lookup(ident.Provider)
	if !ok || !provCap.SupportsFetch {
		return Outcome{Kind: OutcomeNullRemote}
	}

	fetched := provCap.Fetch(ctx, ident.SubID)
	switch fetched.Status {
	case FetchNetworkError:
		return Outcome{Kind: OutcomeNetworkError, Err: &NetworkError{Provider: ident.Provider, Err: fetched.NetErr}}
	case FetchNotFound:
		if merr := s.nullMark(canonicalName, time.Now().UTC()); merr != nil {
			return Outcome{Kind: OutcomeDatabaseError, Err: merr}
		}
		return Outcome{Kind: OutcomeNullRemote}
	}

	provCap.ApplyOnInsert(fetched.Entry)
	payload, err := Encode(fetched.Entry)
	if err != nil {
		return Outcome{Kind: OutcomeDatabaseError, Err: err}
	}

	// The insert and the identifier bind must commit together (spec §4.6
	// step 4c: "The identifier binding must occur in the same
	// transaction as the record insert to preserve invariant (4)"), or a
	// failure between the two would leave an orphaned Records row that a
	// later resolve can neither see via Identifiers nor safely re-fetch
	// without violating invariant 1.
	var key int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		key, terr = s.insertRecord(tx, canonicalName, VariantEntry, payload, nil, time.Now().UTC())
		if terr != nil {
			return terr
		}
		return s.bindName(tx, canonicalName, key)
	})
	if err != nil {
		return Outcome{Kind: OutcomeDatabaseError, Err: err}
	}
	_ = s.nullClear(canonicalName)

	rec, err := s.recordByKey(key)
	if err != nil {
		return Outcome{Kind: OutcomeDatabaseError, Err: err}
	}
	return outcomeFromRecord(rec, canonicalName)
}

func outcomeFromRecord(rec *Record, citeKey string) Outcome {
	switch rec.Variant {
	case VariantEntry:
		return Outcome{Kind: OutcomeEntry, Record: rec, CiteKey: citeKey}
	case VariantDeleted:
		return Outcome{Kind: OutcomeDeleted, Record: rec, Replacement: rec.ReplacementID()}
	case VariantVoid:
		return Outcome{Kind: OutcomeNullRemote, Record: rec}
	default:
		return Outcome{Kind: OutcomeDatabaseError, Err: newDatabaseError("resolve", errUnknownVariant)}
	}
}

func nameOf(ident Identifier) string {
	if ident.IsCanonicalID() {
		return ident.CanonicalName()
	}
	if ident.Kind == KindAlias {
		return ident.Name
	}
	return ident.String()
}

var errUnknownVariant = errors.New("unknown record variant")
