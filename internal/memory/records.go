package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Insert stores a new active record. For slotted records (predicate set) the
// slot must be unoccupied; a second active record for an occupied slot is an
// invariant violation, not a merge.
func (s *Store) Insert(ctx context.Context, r *Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.OwnerID == "" || r.SubjectName == "" {
		return fmt.Errorf("memory: owner and subject required")
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
	if r.Sensitivity == "" {
		r.Sensitivity = SensitivityNormal
	}
	if r.Importance == 0 {
		r.Importance = 0.5
	}
	if r.Version == 0 {
		r.Version = 1
	}
	r.Category = NormalizeCategory(r.Category)

	if r.Status == StatusActive && r.Predicate != "" {
		if _, err := s.GetActiveBySlot(r.OwnerID, r.SubjectName, r.Predicate); err == nil {
			return fmt.Errorf("%w: slot (%s, %s, %s) occupied",
				ErrInvariantViolation, r.OwnerID, r.SubjectName, r.Predicate)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, queryInsertRecord,
		r.ID, r.OwnerID, r.Kind, r.Category, r.SubjectName, r.Content,
		r.Predicate, r.Object, r.Importance, r.Sentiment, r.IsHistorical,
		r.EffectiveFrom, r.ExpiresAt, r.Recurrence, r.Sensitivity, r.Status,
		r.SupersedesID, r.Version, r.Pinned)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
		}
		return err
	}

	s.EmbedRecord(ctx, r.ID, r.Content)
	return nil
}

func (s *Store) GetByID(id string) (*Record, error) {
	row := s.db.QueryRow(queryGetRecord, id)
	return scanRecord(row)
}

func (s *Store) GetActiveBySlot(owner, subject, predicate string) (*Record, error) {
	row := s.db.QueryRow(queryGetActiveBySlot, owner, subject, predicate)
	return scanRecord(row)
}

// Patch describes a partial update. Nil fields are left untouched.
type Patch struct {
	Content      *string
	Object       *string
	Importance   *float64
	Sentiment    *float64
	Pinned       *bool
	IsHistorical *bool
	ExpiresAt    *time.Time
	Recurrence   *string
	Sensitivity  *Sensitivity
}

// Update applies a patch in place without touching the version chain. Used
// for the replace and append merge strategies and by maintenance jobs.
func (s *Store) Update(ctx context.Context, id string, p Patch) error {
	sets := []string{"updated_at = datetime('now')"}
	var args []any

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	reembed := false
	if p.Content != nil {
		add("content", *p.Content)
		reembed = true
	}
	if p.Object != nil {
		add("object", *p.Object)
	}
	if p.Importance != nil {
		add("importance", *p.Importance)
	}
	if p.Sentiment != nil {
		add("sentiment", *p.Sentiment)
	}
	if p.Pinned != nil {
		add("pinned", *p.Pinned)
	}
	if p.IsHistorical != nil {
		add("is_historical", *p.IsHistorical)
	}
	if p.ExpiresAt != nil {
		add("expires_at", *p.ExpiresAt)
	}
	if p.Recurrence != nil {
		add("recurrence", *p.Recurrence)
	}
	if p.Sensitivity != nil {
		add("sensitivity", string(*p.Sensitivity))
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE records SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if reembed {
		s.DeleteRecordEmbedding(id)
		s.EmbedRecord(ctx, id, *p.Content)
	}
	return nil
}

// Supersede flips old to superseded and inserts repl as the slot's new active
// record, linked both ways, inside one transaction. oldVersion is the version
// observed when the caller read the record: if another writer got there first
// the version check fails and ErrSlotConflict is returned so the caller can
// re-read and retry.
func (s *Store) Supersede(ctx context.Context, oldID string, oldVersion int, repl *Record) (*Record, error) {
	old, err := s.GetByID(oldID)
	if err != nil {
		return nil, err
	}

	if repl.ID == "" {
		repl.ID = uuid.NewString()
	}
	if s.chainContains(oldID, repl.ID) {
		return nil, fmt.Errorf("%w: supersession would create a cycle", ErrInvariantViolation)
	}

	repl.OwnerID = old.OwnerID
	if repl.SubjectName == "" {
		repl.SubjectName = old.SubjectName
	}
	if repl.Predicate == "" {
		repl.Predicate = old.Predicate
	}
	if repl.Kind == "" {
		repl.Kind = old.Kind
	}
	if repl.Category == "" {
		repl.Category = old.Category
	}
	if repl.Sensitivity == "" {
		repl.Sensitivity = old.Sensitivity
	}
	if repl.Importance == 0 {
		repl.Importance = old.Importance
	}
	repl.Status = StatusActive
	repl.SupersedesID = &oldID
	repl.Version = old.Version + 1
	repl.Category = NormalizeCategory(repl.Category)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, queryDeactivateRecord, repl.ID, oldID, oldVersion)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: record %s version %d is no longer active",
			ErrSlotConflict, oldID, oldVersion)
	}

	_, err = tx.ExecContext(ctx, queryInsertRecord,
		repl.ID, repl.OwnerID, repl.Kind, repl.Category, repl.SubjectName, repl.Content,
		repl.Predicate, repl.Object, repl.Importance, repl.Sentiment, repl.IsHistorical,
		repl.EffectiveFrom, repl.ExpiresAt, repl.Recurrence, repl.Sensitivity, repl.Status,
		repl.SupersedesID, repl.Version, repl.Pinned)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrSlotConflict, err)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.DeleteRecordEmbedding(oldID)
	s.EmbedRecord(ctx, repl.ID, repl.Content)
	return repl, nil
}

// SoftDelete archives a record, keeping the row for history. The vector is
// removed so the record stops matching similarity searches.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, queryArchiveRecord, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.DeleteRecordEmbedding(id)
	return nil
}

// HardDelete removes the row entirely. Only the audit log retains the prior
// content after this.
func (s *Store) HardDelete(ctx context.Context, id string) error {
	s.DeleteRecordEmbedding(id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// unhook chain neighbors so the row can go
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET supersedes_id = NULL WHERE supersedes_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET superseded_by_id = NULL WHERE superseded_by_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source_id = ? OR target_id = ?`, id, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// Touch increments access_count and stamps last_accessed for the given ids.
func (s *Store) Touch(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	_, err := s.db.Exec(fmt.Sprintf(queryTouchRecords, strings.Join(placeholders, ",")), args...)
	return err
}

func (s *Store) ListActiveByOwner(owner string) ([]*Record, error) {
	rows, err := s.db.Query(queryListActiveByOwner, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *Store) ListActiveByCategory(owner, category string) ([]*Record, error) {
	rows, err := s.db.Query(queryListActiveByCategory, owner, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// VersionChain walks supersedes links from id back to the chain root.
// Returns ErrInvariantViolation if a cycle is found.
func (s *Store) VersionChain(id string) ([]*Record, error) {
	var chain []*Record
	seen := make(map[string]bool)

	cur := id
	for cur != "" {
		if seen[cur] {
			return nil, fmt.Errorf("%w: cycle in version chain at %s", ErrInvariantViolation, cur)
		}
		seen[cur] = true

		r, err := s.GetByID(cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)

		if r.SupersedesID == nil {
			break
		}
		cur = *r.SupersedesID
	}

	return chain, nil
}

func (s *Store) chainContains(startID, wantID string) bool {
	seen := make(map[string]bool)
	cur := startID
	for cur != "" && !seen[cur] {
		if cur == wantID {
			return true
		}
		seen[cur] = true

		var next sql.NullString
		if err := s.db.QueryRow(`SELECT supersedes_id FROM records WHERE id = ?`, cur).Scan(&next); err != nil {
			return false
		}
		if !next.Valid {
			return false
		}
		cur = next.String
	}
	return seen[wantID]
}

type rowScanner interface {
	Scan(dest ...any) error
}

// recordRow holds the nullable scan targets for one records row.
type recordRow struct {
	r             Record
	sentiment     sql.NullFloat64
	effectiveFrom sql.NullTime
	expiresAt     sql.NullTime
	lastAccessed  sql.NullTime
	supersedes    sql.NullString
	supersededBy  sql.NullString
}

func (h *recordRow) dest() []any {
	r := &h.r
	return []any{&r.ID, &r.OwnerID, &r.Kind, &r.Category, &r.SubjectName,
		&r.Content, &r.Predicate, &r.Object, &r.Importance, &h.sentiment,
		&r.IsHistorical, &h.effectiveFrom, &h.expiresAt, &r.Recurrence,
		&r.Sensitivity, &r.Status, &h.supersedes, &h.supersededBy, &r.Version,
		&r.Pinned, &r.AccessCount, &h.lastAccessed, &r.CreatedAt, &r.UpdatedAt}
}

func (h *recordRow) record() *Record {
	r := h.r
	if h.sentiment.Valid {
		r.Sentiment = &h.sentiment.Float64
	}
	if h.effectiveFrom.Valid {
		r.EffectiveFrom = &h.effectiveFrom.Time
	}
	if h.expiresAt.Valid {
		r.ExpiresAt = &h.expiresAt.Time
	}
	if h.lastAccessed.Valid {
		r.LastAccessedAt = &h.lastAccessed.Time
	}
	if h.supersedes.Valid {
		r.SupersedesID = &h.supersedes.String
	}
	if h.supersededBy.Valid {
		r.SupersededByID = &h.supersededBy.String
	}
	return &r
}

func scanRecord(row rowScanner) (*Record, error) {
	var holder recordRow
	err := row.Scan(holder.dest()...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return holder.record(), nil
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
