package autobib

import "testing"

func testRegistry() *Registry {
	return NewRegistry(RegistryOptions{})
}

func TestParseIdentifierCanonical(t *testing.T) {
	reg := testRegistry()
	id, err := ParseIdentifier(reg, "doi:10.4007/ANNALS.2014.180.2.7")
	if err != nil {
		t.Fatalf("ParseIdentifier: %v", err)
	}
	if id.Kind != KindCanonical {
		t.Fatalf("got kind %v, want KindCanonical", id.Kind)
	}
	if id.Provider != ProviderDOI {
		t.Fatalf("got provider %q, want doi", id.Provider)
	}
	if id.SubID != "10.4007/ANNALS.2014.180.2.7" {
		t.Fatalf("normalize should not touch the suffix: got %q", id.SubID)
	}
}

func TestParseIdentifierReference(t *testing.T) {
	reg := testRegistry()
	id, err := ParseIdentifier(reg, "isbn:978-0-13-468599-1")
	if err != nil {
		t.Fatalf("ParseIdentifier: %v", err)
	}
	if id.Kind != KindReference {
		t.Fatalf("got kind %v, want KindReference", id.Kind)
	}
}

func TestParseIdentifierUnknownProvider(t *testing.T) {
	reg := testRegistry()
	_, err := ParseIdentifier(reg, "bogus:123")
	ie, ok := err.(*InputError)
	if !ok || ie.Kind != "UnknownProvider" {
		t.Fatalf("got %v, want InputError{UnknownProvider}", err)
	}
}

func TestParseIdentifierAlias(t *testing.T) {
	reg := testRegistry()
	id, err := ParseIdentifier(reg, "my-favorite-paper")
	if err != nil {
		t.Fatalf("ParseIdentifier: %v", err)
	}
	if id.Kind != KindAlias || id.Name != "my-favorite-paper" {
		t.Fatalf("got %+v, want alias my-favorite-paper", id)
	}
}

func TestParseIdentifierEmptyAlias(t *testing.T) {
	reg := testRegistry()
	_, err := ParseIdentifier(reg, "")
	if ie, ok := err.(*InputError); !ok || ie.Kind != "EmptyAlias" {
		t.Fatalf("got %v, want InputError{EmptyAlias}", err)
	}
}

func TestParseIdentifierRevision(t *testing.T) {
	reg := testRegistry()
	id, err := ParseIdentifier(reg, "#1a2b")
	if err != nil {
		t.Fatalf("ParseIdentifier: %v", err)
	}
	if id.Kind != KindRevision {
		t.Fatalf("got kind %v, want KindRevision", id.Kind)
	}
	if id.RevisionKey != 0x1a2b {
		t.Fatalf("got revision key %x, want 1a2b", id.RevisionKey)
	}
}

func TestParseIdentifierBadRevision(t *testing.T) {
	reg := testRegistry()
	if _, err := ParseIdentifier(reg, "#"); err == nil {
		t.Fatal("expected error for empty revision")
	}
	if _, err := ParseIdentifier(reg, "#zzzz"); err == nil {
		t.Fatal("expected error for non-hex revision")
	}
}

func TestParseIdentifierBadSubID(t *testing.T) {
	reg := testRegistry()
	_, err := ParseIdentifier(reg, "doi:not-a-doi")
	ie, ok := err.(*InputError)
	if !ok || ie.Kind != "BadSubId" {
		t.Fatalf("got %v, want InputError{BadSubId}", err)
	}
}

func TestValidateAliasName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr string
	}{
		{"plain-alias", ""},
		{"", "EmptyAlias"},
		{"#hashprefixed", "AliasHash"},
		{"has:colon", "AliasColon"},
	}
	for _, c := range cases {
		err := ValidateAliasName(c.name)
		if c.wantErr == "" {
			if err != nil {
				t.Errorf("ValidateAliasName(%q): got %v, want nil", c.name, err)
			}
			continue
		}
		ie, ok := err.(*InputError)
		if !ok || ie.Kind != c.wantErr {
			t.Errorf("ValidateAliasName(%q): got %v, want InputError{%s}", c.name, err, c.wantErr)
		}
	}
}

func TestRenderableAsCiteKey(t *testing.T) {
	if !RenderableAsCiteKey("smith2014entropy") {
		t.Error("expected plain alphanumeric key to be renderable")
	}
	if RenderableAsCiteKey("has space") {
		t.Error("whitespace should disqualify a cite key")
	}
	if RenderableAsCiteKey("has{brace") {
		t.Error("brace should disqualify a cite key")
	}
	if RenderableAsCiteKey("has,comma") {
		t.Error("comma should disqualify a cite key")
	}
}

func TestIdentifierString(t *testing.T) {
	id := Identifier{Kind: KindCanonical, Provider: ProviderDOI, SubID: "10.1000/x"}
	if got := id.String(); got != "doi:10.1000/x" {
		t.Errorf("got %q, want doi:10.1000/x", got)
	}
	rev := Identifier{Kind: KindRevision, RevisionKey: 255}
	if got := rev.String(); got != "#ff" {
		t.Errorf("got %q, want #ff", got)
	}
}
