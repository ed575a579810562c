package autobib

import "testing"

func TestApplyAliasTransformMatch(t *testing.T) {
	reg := testRegistry()
	rules := []AliasRule{{Pattern: `^arxiv\.org/abs/(.+)$`, Provider: ProviderArxiv}}
	if err := CompileAliasRules(rules); err != nil {
		t.Fatalf("CompileAliasRules: %v", err)
	}

	alias := Identifier{Kind: KindAlias, Name: "arxiv.org/abs/2301.00001"}
	id, created, err := ApplyAliasTransform(reg, rules, alias)
	if err != nil {
		t.Fatalf("ApplyAliasTransform: %v", err)
	}
	if !created {
		t.Error("expected matched=true on a matching rule")
	}
	if id.Kind != KindCanonical || id.Provider != ProviderArxiv {
		t.Fatalf("got %+v, want canonical arxiv identifier", id)
	}
}

func TestApplyAliasTransformNoMatch(t *testing.T) {
	reg := testRegistry()
	rules := []AliasRule{{Pattern: `^arxiv\.org/abs/(.+)$`, Provider: ProviderArxiv}}
	if err := CompileAliasRules(rules); err != nil {
		t.Fatalf("CompileAliasRules: %v", err)
	}

	alias := Identifier{Kind: KindAlias, Name: "my-nickname"}
	id, created, err := ApplyAliasTransform(reg, rules, alias)
	if err != nil {
		t.Fatalf("ApplyAliasTransform: %v", err)
	}
	if created {
		t.Error("expected matched=false when no rule matches")
	}
	if id != alias {
		t.Fatalf("got %+v, want unchanged alias %+v", id, alias)
	}
}

func TestApplyAliasTransformNonAliasPassthrough(t *testing.T) {
	reg := testRegistry()
	canonical := Identifier{Kind: KindCanonical, Provider: ProviderDOI, SubID: "10.1000/x"}
	id, created, err := ApplyAliasTransform(reg, nil, canonical)
	if err != nil {
		t.Fatalf("ApplyAliasTransform: %v", err)
	}
	if created || id != canonical {
		t.Fatalf("non-alias identifiers must pass through unchanged, got %+v created=%v", id, created)
	}
}

func TestCompileAliasRulesRejectsMultipleGroups(t *testing.T) {
	rules := []AliasRule{{Pattern: `^(a)(b)$`, Provider: ProviderArxiv}}
	if err := CompileAliasRules(rules); err == nil {
		t.Fatal("expected ConfigError for a rule with two capture groups")
	}
}

func TestCompileAliasRulesRejectsZeroGroups(t *testing.T) {
	rules := []AliasRule{{Pattern: `^nocapture$`, Provider: ProviderArxiv}}
	if err := CompileAliasRules(rules); err == nil {
		t.Fatal("expected ConfigError for a rule with no capture group")
	}
}

func TestApplyAliasTransformFirstMatchWins(t *testing.T) {
	reg := testRegistry()
	rules := []AliasRule{
		{Pattern: `^x(.+)$`, Provider: ProviderArxiv},
		{Pattern: `^x(.+)$`, Provider: ProviderDOI},
	}
	if err := CompileAliasRules(rules); err != nil {
		t.Fatalf("CompileAliasRules: %v", err)
	}
	id, _, err := ApplyAliasTransform(reg, rules, Identifier{Kind: KindAlias, Name: "x2301.00001"})
	if err != nil {
		t.Fatalf("ApplyAliasTransform: %v", err)
	}
	if id.Provider != ProviderArxiv {
		t.Fatalf("got provider %q, want the first matching rule's (arxiv)", id.Provider)
	}
}
