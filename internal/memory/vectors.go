package memory

import (
	"context"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/ncruces"
)

func serializeEmbedding(embedding []float32) ([]byte, error) {
	return sqlite_vec.SerializeFloat32(embedding)
}

// EmbedRecord computes and stores the embedding for a record. Best-effort:
// a record without a vector simply does not match similarity searches until
// the next reindex pass.
func (s *Store) EmbedRecord(ctx context.Context, recordID, text string) error {
	if s.embedder == nil {
		return nil
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	return s.PutRecordEmbedding(ctx, recordID, embedding)
}

// PutRecordEmbedding stores a precomputed vector for a record, replacing any
// existing one.
func (s *Store) PutRecordEmbedding(ctx context.Context, recordID string, embedding []float32) error {
	blob, err := serializeEmbedding(embedding)
	if err != nil {
		return err
	}

	var owner string
	if err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM records WHERE id = ?`, recordID).Scan(&owner); err != nil {
		return err
	}

	s.DeleteRecordEmbedding(recordID)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vec_records (record_id, owner_id, embedding) VALUES (?, ?, ?)`,
		recordID, owner, blob)
	return err
}

func (s *Store) DeleteRecordEmbedding(recordID string) error {
	_, err := s.db.Exec(`DELETE FROM vec_records WHERE record_id = ?`, recordID)
	return err
}

// FindSimilar returns up to k active records for owner whose cosine
// similarity to the query vector is at least minSimilarity, most similar
// first. Owner scoping happens inside the vector index, never after.
func (s *Store) FindSimilar(ctx context.Context, owner string, embedding []float32, k int, minSimilarity float64) ([]*ScoredRecord, error) {
	if k <= 0 {
		k = 10
	}

	blob, err := serializeEmbedding(embedding)
	if err != nil {
		return nil, err
	}

	// over-fetch: the join drops rows that are no longer active
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixed(recordColumns, "r.")+`, v.distance
		FROM vec_records v
		JOIN records r ON r.id = v.record_id
		WHERE v.owner_id = ?
		  AND v.embedding MATCH ?
		  AND k = ?
		  AND r.status = 'active'
		ORDER BY v.distance`,
		owner, blob, k*2)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*ScoredRecord
	for rows.Next() {
		r, distance, err := scanScoredRecord(rows)
		if err != nil {
			return nil, err
		}

		sim := 1.0 - distance
		if sim < minSimilarity {
			continue
		}

		results = append(results, &ScoredRecord{Record: r, Similarity: sim})
		if len(results) >= k {
			break
		}
	}

	return results, rows.Err()
}

// FindSimilarText embeds the query text and delegates to FindSimilar.
func (s *Store) FindSimilarText(ctx context.Context, owner, text string, k int, minSimilarity float64) ([]*ScoredRecord, error) {
	if s.embedder == nil {
		return nil, nil
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	return s.FindSimilar(ctx, owner, embedding, k, minSimilarity)
}

// ReindexEmbeddings recomputes vectors for every active record of every
// owner. Run after the embedding model changes.
func (s *Store) ReindexEmbeddings(ctx context.Context) (int, error) {
	if s.embedder == nil {
		return 0, nil
	}

	rows, err := s.db.Query(`SELECT id, content FROM records WHERE status = 'active'`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type pending struct{ id, content string }
	var all []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content); err != nil {
			return 0, err
		}
		all = append(all, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	count := 0
	for _, p := range all {
		if err := s.EmbedRecord(ctx, p.id, p.content); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func scanScoredRecord(rows rowScanner) (*Record, float64, error) {
	var holder recordRow
	var distance float64
	dest := holder.dest()
	dest = append(dest, &distance)
	if err := rows.Scan(dest...); err != nil {
		return nil, 0, err
	}
	return holder.record(), distance, nil
}
