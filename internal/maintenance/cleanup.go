package maintenance

import (
	"context"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
)

// Cleanup archives records whose validity window has closed and unpinned
// low-importance records nobody has touched in StaleDays. Archived rows
// stay queryable through version chains and the audit log; only their
// vectors are dropped. Already-archived rows are untouched, so the job is
// idempotent.
func (r *Runner) Cleanup(ctx context.Context, job *Job) error {
	expired, err := r.archive(ctx,
		`SELECT id FROM records
		 WHERE status = 'active' AND expires_at IS NOT NULL
		   AND julianday(expires_at) < julianday('now')`)
	if err != nil {
		return err
	}

	stale, err := r.archive(ctx,
		`SELECT id FROM records
		 WHERE status = 'active' AND pinned = 0 AND importance < ?
		   AND julianday('now') - julianday(COALESCE(last_accessed, created_at)) > ?`,
		r.policy.StaleImportance, float64(r.policy.StaleDays))
	if err != nil {
		return err
	}

	logger.Info("cleanup sweep complete", "expired", expired, "stale", stale)
	return nil
}

func (r *Runner) archive(ctx context.Context, query string, args ...any) (int, error) {
	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := r.store.SoftDelete(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
