package memory

import "testing"

func TestGetOrCreateEntity(t *testing.T) {
	store := openTestStore(t)

	first, err := store.GetOrCreateEntity("alice", "Marcus", "person")
	if err != nil {
		t.Fatalf("failed to create entity: %v", err)
	}
	second, err := store.GetOrCreateEntity("alice", "Marcus", "person")
	if err != nil {
		t.Fatalf("failed to get entity: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same entity, got %d and %d", first.ID, second.ID)
	}
}

func TestFindEntityByAlias(t *testing.T) {
	store := openTestStore(t)

	ent, err := store.CreateEntity("alice", "Marcus", "person")
	if err != nil {
		t.Fatalf("failed to create entity: %v", err)
	}
	if err := store.AddAlias(ent.ID, "Marc"); err != nil {
		t.Fatalf("failed to add alias: %v", err)
	}
	// adding the same alias twice is a no-op
	if err := store.AddAlias(ent.ID, "marc"); err != nil {
		t.Fatalf("duplicate alias should not error: %v", err)
	}

	found, err := store.FindEntity("alice", "marc")
	if err != nil {
		t.Fatalf("failed to find by alias: %v", err)
	}
	if found.Name != "Marcus" {
		t.Errorf("alias lookup should resolve to the canonical name, got %s", found.Name)
	}
	if len(found.Aliases) != 1 {
		t.Errorf("expected 1 alias, got %v", found.Aliases)
	}
}

func TestKnownEntityNames(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.CreateEntity("alice", "Marcus", "person"); err != nil {
		t.Fatalf("failed to create entity: %v", err)
	}
	if _, err := store.CreateEntity("bob", "Dana", "person"); err != nil {
		t.Fatalf("failed to create entity: %v", err)
	}

	names, err := store.KnownEntityNames("alice")
	if err != nil {
		t.Fatalf("failed to list names: %v", err)
	}
	if len(names) != 1 || names[0] != "Marcus" {
		t.Errorf("expected [Marcus], got %v", names)
	}
}
