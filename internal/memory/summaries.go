package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScoredSummary pairs a category summary with its similarity to a query.
type ScoredSummary struct {
	Summary    *Summary
	Similarity float64
}

// SaveSummary upserts the category summary for an owner, bumps its version
// and re-embeds the text. One summary per (owner, category).
func (s *Store) SaveSummary(ctx context.Context, owner, category, text string, memberIDs []string) (*Summary, error) {
	members, err := json.Marshal(memberIDs)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO summaries (id, owner_id, category, summary_text, member_ids, version, last_synthesized)
		 VALUES (?, ?, ?, ?, ?, 1, datetime('now'))
		 ON CONFLICT(owner_id, category) DO UPDATE SET
		   summary_text = excluded.summary_text,
		   member_ids = excluded.member_ids,
		   version = version + 1,
		   last_synthesized = datetime('now')`,
		id, owner, category, text, string(members))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sum, err := s.GetSummary(owner, category)
	if err != nil {
		return nil, err
	}

	if s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, text)
		if err == nil {
			if blob, err := serializeEmbedding(embedding); err == nil {
				s.db.Exec(`DELETE FROM vec_summaries WHERE summary_id = ?`, sum.ID)
				s.db.Exec(`INSERT INTO vec_summaries (summary_id, owner_id, embedding) VALUES (?, ?, ?)`,
					sum.ID, owner, blob)
			}
		}
	}

	return sum, nil
}

func (s *Store) GetSummary(owner, category string) (*Summary, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, category, summary_text, member_ids, version, last_synthesized
		 FROM summaries WHERE owner_id = ? AND category = ?`, owner, category)
	return scanSummary(row)
}

func (s *Store) ListSummaries(owner string) ([]*Summary, error) {
	rows, err := s.db.Query(
		`SELECT id, owner_id, category, summary_text, member_ids, version, last_synthesized
		 FROM summaries WHERE owner_id = ? ORDER BY category`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sums []*Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}
	return sums, rows.Err()
}

// SearchSummaries finds the owner's summaries most similar to the query
// vector, most similar first. Falls back to all summaries when no embedder
// is configured.
func (s *Store) SearchSummaries(ctx context.Context, owner string, embedding []float32, limit int) ([]*ScoredSummary, error) {
	if limit <= 0 {
		limit = 3
	}

	if s.embedder == nil || embedding == nil {
		sums, err := s.ListSummaries(owner)
		if err != nil {
			return nil, err
		}
		var out []*ScoredSummary
		for i, sum := range sums {
			if i >= limit {
				break
			}
			out = append(out, &ScoredSummary{Summary: sum})
		}
		return out, nil
	}

	blob, err := serializeEmbedding(embedding)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sm.id, sm.owner_id, sm.category, sm.summary_text, sm.member_ids,
		        sm.version, sm.last_synthesized, v.distance
		 FROM vec_summaries v
		 JOIN summaries sm ON sm.id = v.summary_id
		 WHERE v.owner_id = ?
		   AND v.embedding MATCH ?
		   AND k = ?
		 ORDER BY v.distance`,
		owner, blob, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScoredSummary
	for rows.Next() {
		var sum Summary
		var members string
		var distance float64
		if err := rows.Scan(&sum.ID, &sum.OwnerID, &sum.Category, &sum.SummaryText,
			&members, &sum.Version, &sum.LastSynthesized, &distance); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(members), &sum.MemberRecordIDs)
		out = append(out, &ScoredSummary{Summary: &sum, Similarity: 1.0 - distance})
	}
	return out, rows.Err()
}

// NewRecordsSince counts active records in a category created after t, used
// to decide whether a resummarize is due early.
func (s *Store) NewRecordsSince(owner, category string, t time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM records
		 WHERE owner_id = ? AND category = ? AND status = 'active'
		   AND julianday(created_at) > julianday(?)`,
		owner, category, t.UTC().Format("2006-01-02 15:04:05")).Scan(&n)
	return n, err
}

func scanSummary(row rowScanner) (*Summary, error) {
	var sum Summary
	var members string
	err := row.Scan(&sum.ID, &sum.OwnerID, &sum.Category, &sum.SummaryText,
		&members, &sum.Version, &sum.LastSynthesized)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(members), &sum.MemberRecordIDs)
	return &sum, nil
}
