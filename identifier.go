package autobib

import (
	"strconv"
	"strings"
)

// IdentifierKind discriminates the Identifier tagged union.
type IdentifierKind int

const (
	KindCanonical IdentifierKind = iota
	KindReference
	KindAlias
	KindRevision
)

// forbiddenCiteKeyChars are the characters spec §6 forbids in a
// citation key (in addition to whitespace).
const forbiddenCiteKeyChars = `{}(),=\#%"`

// Identifier is a parsed, tagged value: exactly one of Canonical,
// Reference, Alias, or Revision is meaningful, selected by Kind.
type Identifier struct {
	Kind IdentifierKind

	// Canonical / Reference
	Provider ProviderTag
	SubID    string

	// Alias
	Name string

	// Revision: the row key the '#...' identifier refers to.
	RevisionKey int64
}

// String renders the identifier the way it would be typed by a user:
// "provider:sub_id", the alias text, or "#hex".
func (id Identifier) String() string {
	switch id.Kind {
	case KindCanonical, KindReference:
		return string(id.Provider) + ":" + id.SubID
	case KindAlias:
		return id.Name
	case KindRevision:
		return "#" + strconv.FormatInt(id.RevisionKey, 16)
	default:
		return ""
	}
}

// IsCanonicalID reports whether id is a Canonical or Reference variant
// (both render as "provider:sub_id" and are governed by the provider
// registry).
func (id Identifier) IsCanonicalID() bool {
	return id.Kind == KindCanonical || id.Kind == KindReference
}

// CanonicalName returns the "provider:sub_id" string for Canonical or
// Reference identifiers.
func (id Identifier) CanonicalName() string {
	return string(id.Provider) + ":" + id.SubID
}

// ParseIdentifier parses user input into an Identifier per spec §4.2.
// Alias-transform rules (if any) are applied separately by
// ApplyAliasTransform; ParseIdentifier only performs the base grammar
// and provider-registry validation.
func ParseIdentifier(reg *Registry, s string) (Identifier, error) {
	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if hex == "" {
			return Identifier{}, newInputError("BadRevision", "empty revision")
		}
		key, err := strconv.ParseInt(hex, 16, 64)
		if err != nil {
			return Identifier{}, newInputError("BadRevision", s)
		}
		return Identifier{Kind: KindRevision, RevisionKey: key}, nil
	}

	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		if s == "" {
			return Identifier{}, newInputError("EmptyAlias", "")
		}
		if strings.HasPrefix(s, "#") {
			return Identifier{}, newInputError("AliasHash", s)
		}
		return Identifier{Kind: KindAlias, Name: s}, nil
	}

	providerStr := s[:idx]
	subID := strings.TrimSpace(s[idx+1:])

	tag := ProviderTag(providerStr)
	cap, ok := reg.Lookup(tag)
	if !ok {
		return Identifier{}, newInputError("UnknownProvider", providerStr)
	}

	if err := cap.Validate(subID); err != nil {
		return Identifier{}, newInputError("BadSubId", string(tag)+": "+err.Error())
	}
	subID = cap.Normalize(subID)

	if cap.Kind == ProviderKindReference {
		return Identifier{Kind: KindReference, Provider: tag, SubID: subID}, nil
	}
	return Identifier{Kind: KindCanonical, Provider: tag, SubID: subID}, nil
}

// ValidateAliasName checks the alias-naming rules of spec §3: no colon,
// must not begin with '#'.
func ValidateAliasName(name string) error {
	if name == "" {
		return newInputError("EmptyAlias", "")
	}
	if strings.HasPrefix(name, "#") {
		return newInputError("AliasHash", name)
	}
	if strings.Contains(name, ":") {
		return newInputError("AliasColon", name)
	}
	return nil
}

// RenderableAsCiteKey reports whether name may be used as a BibTeX
// citation key: it must not contain any of the forbidden characters or
// whitespace (spec §3, §6). An alias failing this check may still exist
// in the index; it simply cannot be rendered.
func RenderableAsCiteKey(name string) bool {
	if strings.ContainsAny(name, forbiddenCiteKeyChars) {
		return false
	}
	for _, r := range name {
		if isWhitespace(r) {
			return false
		}
	}
	return true
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
