package autobib

import (
	"strings"
	"testing"
)

func TestRenderSortsFieldsAscending(t *testing.T) {
	d := NewEntryData("article")
	d.Set("title", "A Paper")
	d.Set("author", "Author Name")
	d.Set("year", "2020")

	out, err := Render(d, "smith2020paper")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(out, "@article{smith2020paper,\n") {
		t.Fatalf("got %q, wrong header", out)
	}
	authorIdx := strings.Index(out, "author")
	titleIdx := strings.Index(out, "title")
	yearIdx := strings.Index(out, "year")
	if !(authorIdx < titleIdx && titleIdx < yearIdx) {
		t.Fatalf("fields not in ascending order: author=%d title=%d year=%d", authorIdx, titleIdx, yearIdx)
	}
}

func TestRenderRejectsBadCiteKey(t *testing.T) {
	d := NewEntryData("article")
	_, err := Render(d, "has space")
	if ie, ok := err.(*InputError); !ok || ie.Kind != "BadCitationKey" {
		t.Fatalf("got %v, want InputError{BadCitationKey}", err)
	}
}

func TestRenderRecordRequiresEntry(t *testing.T) {
	_, err := RenderRecord(Outcome{Kind: OutcomeNullRemote})
	if ie, ok := err.(*InputError); !ok || ie.Kind != "NotAnEntry" {
		t.Fatalf("got %v, want InputError{NotAnEntry}", err)
	}
}

func TestRenderRecordFromOutcome(t *testing.T) {
	d := NewEntryData("misc")
	d.Set("title", "x")
	out, err := RenderRecord(Outcome{Kind: OutcomeEntry, Record: &Record{Data: d}, CiteKey: "mykey"})
	if err != nil {
		t.Fatalf("RenderRecord: %v", err)
	}
	if !strings.Contains(out, "@misc{mykey,") {
		t.Fatalf("got %q", out)
	}
}
