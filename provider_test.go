package autobib

import "testing"

func TestRegistryLookupKnownAndUnknown(t *testing.T) {
	reg := testRegistry()
	for _, tag := range []ProviderTag{ProviderArxiv, ProviderDOI, ProviderISBN, ProviderJFM, ProviderLocal, ProviderMR, ProviderOL, ProviderZBL, ProviderZbMATH} {
		if _, ok := reg.Lookup(tag); !ok {
			t.Errorf("expected provider %q to be registered", tag)
		}
	}
	if _, ok := reg.Lookup("bogus"); ok {
		t.Error("expected unknown provider tag to miss")
	}
}

func TestReferenceProvidersPointAtTheirCanonical(t *testing.T) {
	reg := testRegistry()
	cases := map[ProviderTag]ProviderTag{
		ProviderISBN: ProviderOL,
		ProviderJFM:  ProviderZbMATH,
		ProviderZBL:  ProviderZbMATH,
	}
	for tag, want := range cases {
		cap, ok := reg.Lookup(tag)
		if !ok {
			t.Fatalf("missing provider %q", tag)
		}
		if cap.Kind != ProviderKindReference {
			t.Errorf("%q: got kind %v, want ProviderKindReference", tag, cap.Kind)
		}
		if cap.ReferenceOf != want {
			t.Errorf("%q: got ReferenceOf %q, want %q", tag, cap.ReferenceOf, want)
		}
	}
}

func TestLocalCapabilityValidatesAsAlias(t *testing.T) {
	reg := testRegistry()
	cap, _ := reg.Lookup(ProviderLocal)
	if err := cap.Validate("my-note"); err != nil {
		t.Errorf("Validate(my-note): %v", err)
	}
	if err := cap.Validate("has:colon"); err == nil {
		t.Error("expected local sub-id validation to reject a colon")
	}
	if cap.SupportsFetch {
		t.Error("local provider must not support fetch")
	}
}

func TestArxivValidateAndNormalize(t *testing.T) {
	if err := validateArxivID("2301.00001"); err != nil {
		t.Errorf("validateArxivID(new-style): %v", err)
	}
	if err := validateArxivID("math.GT/0309136"); err != nil {
		t.Errorf("validateArxivID(old-style): %v", err)
	}
	if err := validateArxivID("not-an-id"); err == nil {
		t.Error("expected validateArxivID to reject garbage")
	}
	if got := normalizeArxivID("2301.00001v2"); got != "2301.00001" {
		t.Errorf("normalizeArxivID: got %q, want 2301.00001", got)
	}
	if got := normalizeArxivID("2301.00001"); got != "2301.00001" {
		t.Errorf("normalizeArxivID should be idempotent: got %q", got)
	}
}

func TestISBNValidateAndNormalize(t *testing.T) {
	if err := validateISBN("0-13-468599-7"); err != nil {
		t.Errorf("validateISBN(valid ISBN-10): %v", err)
	}
	if got := normalizeISBN("0-13-468599-7"); got != "0134685997" {
		t.Errorf("normalizeISBN: got %q, want 0134685997", got)
	}
	if err := validateISBN("0-13-468599-8"); err == nil {
		t.Error("expected validateISBN to reject a bad checksum")
	}
	if err := validateISBN("123"); err == nil {
		t.Error("expected validateISBN to reject a short string")
	}
}

func TestISBN13ChecksumValid(t *testing.T) {
	// 978-0-13-468599-1 is the ISBN-13 form of the same book.
	if !isbn13ChecksumValid("9780134685991") {
		t.Error("expected a valid ISBN-13 checksum to pass")
	}
	if isbn13ChecksumValid("9780134685992") {
		t.Error("expected an invalid ISBN-13 checksum to fail")
	}
}

func TestZbMATHValidateAndNormalize(t *testing.T) {
	if err := validateZbMATHID("1234567"); err != nil {
		t.Errorf("validateZbMATHID(7-digit): %v", err)
	}
	if err := validateZbMATHID("12345678"); err != nil {
		t.Errorf("validateZbMATHID(8-digit): %v", err)
	}
	if err := validateZbMATHID("123"); err == nil {
		t.Error("expected validateZbMATHID to reject a short id")
	}
	if got := normalizeZbMATHID("1234567"); got != "01234567" {
		t.Errorf("normalizeZbMATHID: got %q, want 01234567", got)
	}
	if got := normalizeZbMATHID("12345678"); got != "12345678" {
		t.Errorf("normalizeZbMATHID should be idempotent on 8-digit: got %q", got)
	}
}

func TestMRValidate(t *testing.T) {
	cap, ok := testRegistry().Lookup(ProviderMR)
	if !ok {
		t.Fatal("missing mr provider")
	}
	if err := cap.Validate("1234567"); err != nil {
		t.Errorf("Validate(7 digits): %v", err)
	}
	if err := cap.Validate("12345"); err == nil {
		t.Error("expected Validate to reject a non-7-digit id")
	}
	if err := cap.Validate("abcdefg"); err == nil {
		t.Error("expected Validate to reject non-numeric id")
	}
}

func TestOLValidate(t *testing.T) {
	cap, ok := testRegistry().Lookup(ProviderOL)
	if !ok {
		t.Fatal("missing ol provider")
	}
	if err := cap.Validate("123456M"); err != nil {
		t.Errorf("Validate(123456M): %v", err)
	}
	if err := cap.Validate("123456"); err == nil {
		t.Error("expected Validate to reject an id missing the M suffix")
	}
}

func TestJFMAndZblValidate(t *testing.T) {
	jfm, _ := testRegistry().Lookup(ProviderJFM)
	if err := jfm.Validate("42.0258.01"); err != nil {
		t.Errorf("jfm Validate: %v", err)
	}
	if err := jfm.Validate("bad"); err == nil {
		t.Error("expected jfm Validate to reject a malformed id")
	}

	zbl, _ := testRegistry().Lookup(ProviderZBL)
	if err := zbl.Validate("0771.53021"); err != nil {
		t.Errorf("zbl Validate: %v", err)
	}
	if err := zbl.Validate("bad"); err == nil {
		t.Error("expected zbl Validate to reject a malformed id")
	}
}

func TestDOIValidateAndNormalize(t *testing.T) {
	cap, ok := testRegistry().Lookup(ProviderDOI)
	if !ok {
		t.Fatal("missing doi provider")
	}
	if err := cap.Validate("10.4007/annals.2014.180.2.7"); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := cap.Validate("not-a-doi"); err == nil {
		t.Error("expected Validate to reject a non-DOI string")
	}
	if got := cap.Normalize("10.4007/ANNALS.2014.180.2.7"); got != "10.4007/ANNALS.2014.180.2.7" {
		t.Errorf("Normalize should leave the case-sensitive suffix untouched: got %q", got)
	}
	if got := cap.Normalize("10.ABCD/x"); got != "10.abcd/x" {
		t.Errorf("Normalize should lower-case the registrant prefix: got %q", got)
	}
}
