package memory

import (
	"context"
	"fmt"
)

// Owners lists every owner with at least one record.
func (s *Store) Owners() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT owner_id FROM records ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// Merge folds a near-duplicate loser record into a winner: the loser is
// archived and chained to the winner, the winner keeps the higher
// importance and the combined access count. Facts representable afterwards
// are a subset of those before; nothing is fabricated by merging.
func (s *Store) Merge(ctx context.Context, winnerID, loserID string) error {
	if winnerID == loserID {
		return fmt.Errorf("%w: cannot merge a record into itself", ErrInvariantViolation)
	}
	if s.chainContains(winnerID, loserID) || s.chainContains(loserID, winnerID) {
		return fmt.Errorf("%w: merge would create a chain cycle", ErrInvariantViolation)
	}

	winner, err := s.GetByID(winnerID)
	if err != nil {
		return err
	}
	loser, err := s.GetByID(loserID)
	if err != nil {
		return err
	}
	if winner.OwnerID != loser.OwnerID {
		return fmt.Errorf("%w: cross-owner merge", ErrInvariantViolation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE records
		 SET status = 'archived', superseded_by_id = ?, updated_at = datetime('now')
		 WHERE id = ? AND status = 'active' AND version = ?`,
		winnerID, loserID, loser.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: record %s changed during merge", ErrSlotConflict, loserID)
	}

	importance := winner.Importance
	if loser.Importance > importance {
		importance = loser.Importance
	}

	sets := `importance = ?, access_count = access_count + ?, updated_at = datetime('now')`
	args := []any{importance, loser.AccessCount}
	if winner.SupersedesID == nil {
		sets += `, supersedes_id = ?`
		args = append(args, loserID)
	}
	args = append(args, winnerID)

	if _, err := tx.ExecContext(ctx, `UPDATE records SET `+sets+` WHERE id = ?`, args...); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.DeleteRecordEmbedding(loserID)
	return nil
}
