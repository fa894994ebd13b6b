package memory

import (
	"context"
	"testing"
)

func TestCoAccessLinkStrengths(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, content := range []string{"a", "b", "c"} {
		r := &Record{OwnerID: "alice", Kind: KindFact, SubjectName: "x", Content: content}
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		ids = append(ids, r.ID)
	}

	// a and b surface together twice, b and c once
	if err := store.LogAccess(NewAccessBatchID(), []string{ids[0], ids[1]}); err != nil {
		t.Fatalf("failed to log access: %v", err)
	}
	if err := store.LogAccess(NewAccessBatchID(), []string{ids[0], ids[1]}); err != nil {
		t.Fatalf("failed to log access: %v", err)
	}
	if err := store.LogAccess(NewAccessBatchID(), []string{ids[1], ids[2]}); err != nil {
		t.Fatalf("failed to log access: %v", err)
	}

	n, err := store.RecomputeLinkStrengths()
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pairs, got %d", n)
	}

	// the most co-accessed pair normalizes to 1.0
	var strongest *Link
	for _, id := range ids {
		links, err := store.LinksFrom(id)
		if err != nil {
			t.Fatalf("failed to list links: %v", err)
		}
		for _, l := range links {
			if strongest == nil || l.Strength > strongest.Strength {
				strongest = l
			}
		}
	}
	if strongest == nil {
		t.Fatal("expected links")
	}
	if strongest.Strength != 1.0 {
		t.Errorf("expected max strength 1.0, got %f", strongest.Strength)
	}

	// recomputing again produces the same links, not duplicates
	if _, err := store.RecomputeLinkStrengths(); err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}
}
