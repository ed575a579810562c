package autobib

import (
	"context"
	"strings"
	"testing"
)

func TestReadSkipList(t *testing.T) {
	skip, err := ReadSkipList(strings.NewReader("local:a\n# a comment\n\nlocal:b\n#\n"))
	if err != nil {
		t.Fatalf("ReadSkipList: %v", err)
	}
	if !skip["local:a"] || !skip["local:b"] {
		t.Fatalf("got %v, want local:a and local:b present", skip)
	}
	if len(skip) != 2 {
		t.Fatalf("got %d entries, want 2", len(skip))
	}
}

func TestRunBatchResolvesEachLine(t *testing.T) {
	s := openTestStoreWithRegistry(t)
	seedTree(t, s, "local:x", NewEntryData("misc"))

	input := "local:x\nlocal:never-created\nno-such-alias\n"
	entries, err := s.RunBatch(context.Background(), strings.NewReader(input), BatchOptions{})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Outcome.Kind != OutcomeEntry {
		t.Errorf("entry 0: got kind %v, want OutcomeEntry", entries[0].Outcome.Kind)
	}
	if entries[1].Outcome.Kind != OutcomeNullRemote {
		t.Errorf("entry 1: got kind %v, want OutcomeNullRemote", entries[1].Outcome.Kind)
	}
	if entries[2].Outcome.Kind != OutcomeNullAlias {
		t.Errorf("entry 2: got kind %v, want OutcomeNullAlias", entries[2].Outcome.Kind)
	}
}

func TestRunBatchSkipsFilteredLines(t *testing.T) {
	s := openTestStoreWithRegistry(t)
	seedTree(t, s, "local:x", NewEntryData("misc"))

	input := "local:x\nlocal:skipped\n"
	entries, err := s.RunBatch(context.Background(), strings.NewReader(input), BatchOptions{
		Skip: map[string]bool{"local:skipped": true},
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (skipped line filtered)", len(entries))
	}
}

func TestRunBatchIgnoresBlankAndCommentLines(t *testing.T) {
	s := openTestStoreWithRegistry(t)
	input := "\n# just a comment\n   \n"
	entries, err := s.RunBatch(context.Background(), strings.NewReader(input), BatchOptions{})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestRunBatchTreatsHashHexAsRevision(t *testing.T) {
	s := openTestStoreWithRegistry(t)
	root := seedTree(t, s, "local:x", NewEntryData("misc"))

	input := "#" + RevisionHex(root.Key) + "\n"
	entries, err := s.RunBatch(context.Background(), strings.NewReader(input), BatchOptions{})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1 (revision line must not be treated as comment)", len(entries))
	}
	if entries[0].Outcome.Kind != OutcomeEntry {
		t.Fatalf("got kind %v, want OutcomeEntry", entries[0].Outcome.Kind)
	}
}

func TestSummarize(t *testing.T) {
	entries := []BatchEntry{
		{Outcome: Outcome{Kind: OutcomeEntry}},
		{Outcome: Outcome{Kind: OutcomeEntry}},
		{Outcome: Outcome{Kind: OutcomeNullRemote}},
		{Outcome: Outcome{Kind: OutcomeBadIdentifier}},
	}
	sum := Summarize(entries)
	if sum.Total != 4 || sum.Entries != 2 || sum.NullRemote != 1 || sum.BadIdentifier != 1 {
		t.Fatalf("got %+v, want {Total:4 Entries:2 NullRemote:1 BadIdentifier:1}", sum)
	}
}
