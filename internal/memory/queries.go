package memory

import "strings"

const recordColumns = `id, owner_id, kind, category, subject_name, content, predicate, object,
	importance, sentiment, is_historical, effective_from, expires_at, recurrence,
	sensitivity, status, supersedes_id, superseded_by_id, version, pinned,
	access_count, last_accessed, created_at, updated_at`

// prefixed qualifies every column in a comma-separated list with a table
// alias, for joined selects.
func prefixed(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

const queryInsertRecord = `
	INSERT INTO records (id, owner_id, kind, category, subject_name, content,
		predicate, object, importance, sentiment, is_historical, effective_from,
		expires_at, recurrence, sensitivity, status, supersedes_id, version, pinned)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const queryGetRecord = `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

const queryGetActiveBySlot = `
	SELECT ` + recordColumns + ` FROM records
	WHERE owner_id = ? AND subject_name = ? AND predicate = ? AND status = 'active'`

const queryDeactivateRecord = `
	UPDATE records
	SET status = 'superseded', superseded_by_id = ?, updated_at = datetime('now')
	WHERE id = ? AND status = 'active' AND version = ?`

const queryArchiveRecord = `
	UPDATE records SET status = 'archived', updated_at = datetime('now')
	WHERE id = ? AND status != 'archived'`

const queryTouchRecords = `
	UPDATE records
	SET access_count = access_count + 1, last_accessed = datetime('now')
	WHERE id IN (%s)`

const queryListActiveByOwner = `
	SELECT ` + recordColumns + ` FROM records
	WHERE owner_id = ? AND status = 'active' ORDER BY created_at`

const queryListActiveByCategory = `
	SELECT ` + recordColumns + ` FROM records
	WHERE owner_id = ? AND category = ? AND status = 'active' ORDER BY created_at`
