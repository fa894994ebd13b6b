package memory

import (
	"github.com/oklog/ulid/v2"
)

// AddLink connects two records. Strength starts at the given value and is
// recomputed later from access co-occurrence.
func (s *Store) AddLink(sourceID, targetID, relation string, strength float64) (*Link, error) {
	res, err := s.db.Exec(
		`INSERT INTO links (source_id, target_id, relation, strength) VALUES (?, ?, ?, ?)
		 ON CONFLICT(source_id, target_id, relation) DO UPDATE SET strength = excluded.strength`,
		sourceID, targetID, relation, strength)
	if err != nil {
		return nil, err
	}

	id, _ := res.LastInsertId()
	return &Link{ID: id, SourceID: sourceID, TargetID: targetID, Relation: relation, Strength: strength}, nil
}

func (s *Store) LinksFrom(recordID string) ([]*Link, error) {
	rows, err := s.db.Query(
		`SELECT id, source_id, target_id, relation, strength, created_at
		 FROM links WHERE source_id = ? ORDER BY strength DESC`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.SourceID, &l.TargetID, &l.Relation, &l.Strength, &l.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, &l)
	}
	return links, rows.Err()
}

// NewAccessBatchID mints the shared id for one retrieval's co-access rows.
func NewAccessBatchID() string {
	return ulid.Make().String()
}

// LogAccess records that a set of records surfaced together in one
// retrieval. The reindex job turns these co-occurrences into link strengths.
func (s *Store) LogAccess(batchID string, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range recordIDs {
		if _, err := tx.Exec(
			`INSERT INTO access_log (batch_id, record_id) VALUES (?, ?)`, batchID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecomputeLinkStrengths rebuilds co-access links: every pair of records that
// surfaced in the same retrieval batch gets a link whose strength is the
// pair's co-occurrence count normalized by the most co-accessed pair.
func (s *Store) RecomputeLinkStrengths() (int, error) {
	rows, err := s.db.Query(`
		SELECT a.record_id, b.record_id, COUNT(*) AS pair_count
		FROM access_log a
		JOIN access_log b ON a.batch_id = b.batch_id AND a.record_id < b.record_id
		GROUP BY a.record_id, b.record_id`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type pair struct {
		src, dst string
		count    int
	}
	var pairs []pair
	max := 0
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.src, &p.dst, &p.count); err != nil {
			return 0, err
		}
		if p.count > max {
			max = p.count
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if max == 0 {
		return 0, nil
	}

	for _, p := range pairs {
		strength := float64(p.count) / float64(max)
		if _, err := s.AddLink(p.src, p.dst, "co_accessed", strength); err != nil {
			return 0, err
		}
	}
	return len(pairs), nil
}
