package memory

import "errors"

var (
	// ErrNotFound is returned when a record, entity or summary does not exist.
	ErrNotFound = errors.New("memory: not found")

	// ErrSlotConflict signals a concurrent supersession race: the record read
	// before the mutation is no longer the active version of its slot.
	// Callers should re-read and retry.
	ErrSlotConflict = errors.New("memory: slot conflict")

	// ErrInvariantViolation signals an attempt to create a second active
	// record for an occupied slot or a cycle in a version chain. Never
	// repaired silently; the offending operation is rejected.
	ErrInvariantViolation = errors.New("memory: invariant violation")
)
