package history

import (
	"path/filepath"
	"testing"
)

func TestStore_RecordAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	store.Record("great and fast", "positive", 0.4, "keyword", "llama3.2")
	store.Record("crashed and terrible", "negative", -0.4, "keyword", "llama3.2")
	store.Record("fine", "neutral", 0.1, "model", "llama3.2")

	entries, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Label != "neutral" || entries[0].Source != "model" {
		t.Fatalf("newest entry=%+v, want the neutral model result", entries[0])
	}
	if entries[1].Label != "negative" {
		t.Fatalf("second entry=%+v, want the negative result", entries[1])
	}
	if entries[0].InputHash == "" || entries[0].InputHash == "fine" {
		t.Fatalf("input must be stored hashed, got %q", entries[0].InputHash)
	}
}

func TestStore_SameInputSameHash(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	store.Record("hello", "neutral", 0, "keyword", "")
	store.Record("hello", "neutral", 0, "keyword", "")

	entries, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 || entries[0].InputHash != entries[1].InputHash {
		t.Fatalf("same input must hash identically: %+v", entries)
	}
}

func TestStore_NilStoreIsNoOp(t *testing.T) {
	var store *Store

	store.Record("anything", "neutral", 0, "keyword", "")
	entries, err := store.Recent(5)
	if err != nil {
		t.Fatalf("Recent on nil store: %v", err)
	}
	if entries != nil {
		t.Fatalf("entries=%v, want nil", entries)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close on nil store: %v", err)
	}
}
