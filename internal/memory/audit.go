package memory

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Audit-entry ids are ULIDs so the append-only log sorts by creation time
// lexicographically.
func newOperationID() string {
	return ulid.Make().String()
}

// AppendOperation writes one immutable audit entry. Every decision the
// engine makes lands here, including NOOPs and failed candidates.
func (s *Store) AppendOperation(op *Operation) error {
	if op.ID == "" {
		op.ID = newOperationID()
	}
	if op.Status == "" {
		op.Status = "ok"
	}

	similar, err := json.Marshal(op.SimilarIDs)
	if err != nil {
		return err
	}
	results, err := json.Marshal(op.ResultIDs)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO operations (id, owner_id, candidate_text, similar_ids, op,
			merge_strategy, reasoning, result_ids, status, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.OwnerID, op.CandidateText, string(similar), string(op.Op),
		op.MergeStrategy, op.Reasoning, string(results), op.Status,
		op.Elapsed.Milliseconds())
	return err
}

// ListOperations returns the owner's audit entries, newest first.
func (s *Store) ListOperations(owner string, limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, owner_id, candidate_text, similar_ids, op, merge_strategy,
		        reasoning, result_ids, status, elapsed_ms, created_at
		 FROM operations WHERE owner_id = ?
		 ORDER BY id DESC LIMIT ?`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		var similar, results string
		var elapsedMS int64
		if err := rows.Scan(&op.ID, &op.OwnerID, &op.CandidateText, &similar,
			&op.Op, &op.MergeStrategy, &op.Reasoning, &results, &op.Status,
			&elapsedMS, &op.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(similar), &op.SimilarIDs)
		json.Unmarshal([]byte(results), &op.ResultIDs)
		op.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// CountOperations returns how many audit entries exist for the owner.
func (s *Store) CountOperations(owner string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM operations WHERE owner_id = ?`, owner).Scan(&n)
	return n, err
}
