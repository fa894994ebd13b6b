package memory

import (
	"testing"
	"time"
)

func TestAppendAndListOperations(t *testing.T) {
	store := openTestStore(t)

	for _, text := range []string{"first", "second", "third"} {
		op := &Operation{
			OwnerID:       "alice",
			CandidateText: text,
			Op:            OpAdd,
			ResultIDs:     []string{"r-" + text},
			Elapsed:       12 * time.Millisecond,
		}
		if err := store.AppendOperation(op); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		if op.ID == "" {
			t.Fatal("expected generated id")
		}
	}

	ops, err := store.ListOperations("alice", 10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(ops))
	}
	// ids are time-ordered, list is newest first
	if ops[0].CandidateText != "third" {
		t.Errorf("expected newest first, got %q", ops[0].CandidateText)
	}
	if ops[0].Status != "ok" {
		t.Errorf("expected default status ok, got %q", ops[0].Status)
	}
	if len(ops[0].ResultIDs) != 1 {
		t.Errorf("expected result ids to round-trip, got %v", ops[0].ResultIDs)
	}

	n, err := store.CountOperations("alice")
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}

func TestOperationsScopedToOwner(t *testing.T) {
	store := openTestStore(t)

	if err := store.AppendOperation(&Operation{OwnerID: "alice", CandidateText: "x", Op: OpNoop}); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	ops, err := store.ListOperations("bob", 10)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("expected no entries for bob, got %d", len(ops))
	}
}
