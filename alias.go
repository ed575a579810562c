package autobib

import "regexp"

// AliasRule is one entry of the configured, ordered alias-transform list
// (spec §4.2): a regex with exactly one capture group, and the provider
// the capture should be resolved against.
type AliasRule struct {
	Pattern  string
	Provider ProviderTag

	compiled *regexp.Regexp
}

// compile validates and compiles the rule's pattern, failing with a
// *ConfigError if it doesn't have exactly one capture group.
func (r *AliasRule) compile() error {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return newConfigError("alias rule " + r.Pattern + ": " + err.Error())
	}
	if re.NumSubexp() != 1 {
		return newConfigError("alias rule " + r.Pattern + " must have exactly one capture group")
	}
	r.compiled = re
	return nil
}

// ApplyAliasTransform matches alias text against the configured ordered
// rule list. The first matching rule rewrites the alias into a Canonical
// (or Reference) identifier using the captured sub-id, subject to the
// same sub-id validation ParseIdentifier performs. If no rule matches,
// the original Alias identifier is returned unchanged.
//
// The bool result reports whether a rule matched. ApplyAliasTransform
// performs no indexing, and Resolve does not index the original alias
// text either.
func ApplyAliasTransform(reg *Registry, rules []AliasRule, alias Identifier) (Identifier, bool, error) {
	if alias.Kind != KindAlias {
		return alias, false, nil
	}

	for _, rule := range rules {
		re := rule.compiled
		if re == nil {
			continue
		}
		m := re.FindStringSubmatch(alias.Name)
		if m == nil {
			continue
		}
		subID := m[1]

		cap, ok := reg.Lookup(rule.Provider)
		if !ok {
			return Identifier{}, false, newInputError("UnknownProvider", string(rule.Provider))
		}
		if err := cap.Validate(subID); err != nil {
			return Identifier{}, false, newInputError("BadSubId", string(rule.Provider)+": "+err.Error())
		}
		subID = cap.Normalize(subID)

		kind := KindCanonical
		if cap.Kind == ProviderKindReference {
			kind = KindReference
		}
		return Identifier{Kind: kind, Provider: rule.Provider, SubID: subID}, true, nil
	}

	return alias, false, nil
}

// CompileAliasRules compiles every rule in place, returning the first
// *ConfigError encountered. Used by config loading (spec SPEC_FULL §4.8,
// P10): a config with an invalid rule registers none of its rules.
func CompileAliasRules(rules []AliasRule) error {
	for i := range rules {
		if err := rules[i].compile(); err != nil {
			return err
		}
	}
	return nil
}
