package memory

import (
	"context"
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenAndClose(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
}

func TestCategoriesSeeded(t *testing.T) {
	store := openTestStore(t)

	cat, err := store.GetCategory("knowledge")
	if err != nil {
		t.Fatalf("failed to get category: %v", err)
	}
	if cat.Slug != "knowledge" {
		t.Errorf("expected slug 'knowledge', got '%s'", cat.Slug)
	}

	cats, err := store.ListCategories()
	if err != nil {
		t.Fatalf("failed to list categories: %v", err)
	}
	if len(cats) == 0 {
		t.Error("expected seeded categories")
	}
}

func TestInsertAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	r := &Record{
		OwnerID:     "alice",
		Kind:        KindFact,
		SubjectName: "Marcus",
		Content:     "Marcus works at Stripe",
		Predicate:   "employer",
		Object:      "Stripe",
	}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if r.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := store.GetByID(r.ID)
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.Content != r.Content {
		t.Errorf("expected content %q, got %q", r.Content, got.Content)
	}
	if got.Status != StatusActive {
		t.Errorf("expected active status, got %s", got.Status)
	}
	if got.Version != 1 {
		t.Errorf("expected version 1, got %d", got.Version)
	}
	if got.Importance != 0.5 {
		t.Errorf("expected default importance 0.5, got %f", got.Importance)
	}
}

func TestSlotUniqueness(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := &Record{
		OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus",
		Content: "Marcus works at Stripe", Predicate: "employer",
	}
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("failed to insert first: %v", err)
	}

	second := &Record{
		OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus",
		Content: "Marcus works at Notion", Predicate: "employer",
	}
	err := store.Insert(ctx, second)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}

	// a different owner is a different slot
	other := &Record{
		OwnerID: "bob", Kind: KindFact, SubjectName: "Marcus",
		Content: "Marcus works at Notion", Predicate: "employer",
	}
	if err := store.Insert(ctx, other); err != nil {
		t.Fatalf("different owner should not conflict: %v", err)
	}
}

func TestUnslottedRecordsDoNotConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"likes climbing", "climbed El Cap"} {
		r := &Record{OwnerID: "alice", Kind: KindEvent, SubjectName: "Marcus", Content: content}
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("free-form insert failed: %v", err)
		}
	}
}

func TestSupersedeChain(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := &Record{
		OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus",
		Content: "Marcus works at Stripe", Predicate: "employer", Object: "Stripe",
	}
	if err := store.Insert(ctx, old); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	repl := &Record{Content: "Marcus works at Notion", Object: "Notion"}
	out, err := store.Supersede(ctx, old.ID, old.Version, repl)
	if err != nil {
		t.Fatalf("failed to supersede: %v", err)
	}

	if out.Version != 2 {
		t.Errorf("expected version 2, got %d", out.Version)
	}
	if out.SupersedesID == nil || *out.SupersedesID != old.ID {
		t.Error("replacement should point back at the old record")
	}

	prev, err := store.GetByID(old.ID)
	if err != nil {
		t.Fatalf("failed to reload old record: %v", err)
	}
	if prev.Status != StatusSuperseded {
		t.Errorf("expected superseded status, got %s", prev.Status)
	}
	if prev.SupersededByID == nil || *prev.SupersededByID != out.ID {
		t.Error("old record should point at its replacement")
	}

	// the slot now resolves to the replacement
	active, err := store.GetActiveBySlot("alice", "Marcus", "employer")
	if err != nil {
		t.Fatalf("failed to resolve slot: %v", err)
	}
	if active.ID != out.ID {
		t.Errorf("expected slot to resolve to %s, got %s", out.ID, active.ID)
	}

	chain, err := store.VersionChain(out.ID)
	if err != nil {
		t.Fatalf("failed to walk chain: %v", err)
	}
	if len(chain) != 2 {
		t.Errorf("expected chain of 2, got %d", len(chain))
	}
}

func TestSupersedeStaleVersionConflicts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := &Record{
		OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus",
		Content: "Marcus works at Stripe", Predicate: "employer",
	}
	if err := store.Insert(ctx, old); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	// first writer wins
	if _, err := store.Supersede(ctx, old.ID, old.Version, &Record{Content: "Marcus works at Notion"}); err != nil {
		t.Fatalf("first supersede failed: %v", err)
	}

	// second writer holds a stale version
	_, err := store.Supersede(ctx, old.ID, old.Version, &Record{Content: "Marcus works at Linear"})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected ErrSlotConflict, got %v", err)
	}
}

func TestSoftDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	r := &Record{OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus", Content: "temporary"}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := store.SoftDelete(ctx, r.ID); err != nil {
		t.Fatalf("failed to soft delete: %v", err)
	}

	got, err := store.GetByID(r.ID)
	if err != nil {
		t.Fatalf("archived record should still load: %v", err)
	}
	if got.Status != StatusArchived {
		t.Errorf("expected archived, got %s", got.Status)
	}
}

func TestHardDeleteUnhooksChain(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := &Record{
		OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus",
		Content: "Marcus works at Stripe", Predicate: "employer",
	}
	if err := store.Insert(ctx, old); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	out, err := store.Supersede(ctx, old.ID, old.Version, &Record{Content: "Marcus works at Notion"})
	if err != nil {
		t.Fatalf("failed to supersede: %v", err)
	}

	if err := store.HardDelete(ctx, old.ID); err != nil {
		t.Fatalf("failed to hard delete: %v", err)
	}

	if _, err := store.GetByID(old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after hard delete, got %v", err)
	}

	got, err := store.GetByID(out.ID)
	if err != nil {
		t.Fatalf("survivor should still load: %v", err)
	}
	if got.SupersedesID != nil {
		t.Error("survivor should no longer reference the deleted record")
	}
}

func TestTouch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	r := &Record{OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus", Content: "climbs on weekends"}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := store.Touch([]string{r.ID}); err != nil {
		t.Fatalf("failed to touch: %v", err)
	}

	got, _ := store.GetByID(r.ID)
	if got.AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", got.AccessCount)
	}
	if got.LastAccessedAt == nil {
		t.Error("expected last accessed to be stamped")
	}
}

func TestUpdatePatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	r := &Record{OwnerID: "alice", Kind: KindPreference, SubjectName: "alice", Content: "prefers tea"}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	content := "prefers green tea"
	importance := 0.9
	pinned := true
	err := store.Update(ctx, r.ID, Patch{Content: &content, Importance: &importance, Pinned: &pinned})
	if err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	got, _ := store.GetByID(r.ID)
	if got.Content != content {
		t.Errorf("expected %q, got %q", content, got.Content)
	}
	if got.Importance != importance {
		t.Errorf("expected importance %f, got %f", importance, got.Importance)
	}
	if !got.Pinned {
		t.Error("expected pinned")
	}
	if got.Version != 1 {
		t.Errorf("in-place update should not bump version, got %d", got.Version)
	}
}

func TestMergeKeepsHigherImportance(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	winner := &Record{OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus", Content: "Marcus climbs", Importance: 0.4}
	loser := &Record{OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus", Content: "Marcus is a climber", Importance: 0.8}
	for _, r := range []*Record{winner, loser} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	if err := store.Touch([]string{loser.ID}); err != nil {
		t.Fatalf("failed to touch: %v", err)
	}

	if err := store.Merge(ctx, winner.ID, loser.ID); err != nil {
		t.Fatalf("failed to merge: %v", err)
	}

	w, _ := store.GetByID(winner.ID)
	if w.Importance != 0.8 {
		t.Errorf("winner should keep the higher importance, got %f", w.Importance)
	}
	if w.AccessCount != 1 {
		t.Errorf("winner should absorb the loser's access count, got %d", w.AccessCount)
	}
	if w.SupersedesID == nil || *w.SupersedesID != loser.ID {
		t.Error("winner should link back to the merged record")
	}

	l, _ := store.GetByID(loser.ID)
	if l.Status != StatusArchived {
		t.Errorf("loser should be archived, got %s", l.Status)
	}
	if l.SupersededByID == nil || *l.SupersededByID != winner.ID {
		t.Error("loser should link forward to the winner")
	}
}

func TestMergeRejectsSelfAndCrossOwner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := &Record{OwnerID: "alice", Kind: KindFact, SubjectName: "Marcus", Content: "x"}
	b := &Record{OwnerID: "bob", Kind: KindFact, SubjectName: "Marcus", Content: "y"}
	for _, r := range []*Record{a, b} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}

	if err := store.Merge(ctx, a.ID, a.ID); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation for self merge, got %v", err)
	}
	if err := store.Merge(ctx, a.ID, b.ID); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation for cross-owner merge, got %v", err)
	}
}

func TestOwners(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, owner := range []string{"bob", "alice", "alice"} {
		r := &Record{OwnerID: owner, Kind: KindFact, SubjectName: "x", Content: owner + " fact"}
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}

	owners, err := store.Owners()
	if err != nil {
		t.Fatalf("failed to list owners: %v", err)
	}
	if len(owners) != 2 || owners[0] != "alice" || owners[1] != "bob" {
		t.Errorf("expected [alice bob], got %v", owners)
	}
}
