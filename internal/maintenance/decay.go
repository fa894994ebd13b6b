package maintenance

import (
	"context"
	"math"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

// Decay ages importance scores. Each active record's importance is
// multiplied by exp(-elapsed/halfLife * ln2), where elapsed counts days
// since the record was last accessed, last decayed, or created, whichever
// is latest. Anchoring on decayed_at makes the job idempotent: an
// immediate rerun sees zero elapsed days and changes nothing. Pinned
// records never drop below the policy floor.
func (r *Runner) Decay(ctx context.Context, job *Job) error {
	rows, err := r.store.DB().QueryContext(ctx,
		`SELECT id, kind, importance, pinned,
		        julianday('now') - julianday(MAX(
		            COALESCE(last_accessed, created_at),
		            COALESCE(decayed_at, created_at)))
		 FROM records
		 WHERE status = 'active'`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type update struct {
		id         string
		importance float64
	}
	var updates []update

	for rows.Next() {
		var (
			id         string
			kind       string
			importance float64
			pinned     bool
			days       float64
		)
		if err := rows.Scan(&id, &kind, &importance, &pinned, &days); err != nil {
			return err
		}
		// sub-hour elapses are noise; skipping them keeps reruns stable
		if days < 1.0/24 {
			continue
		}

		halfLife := r.policy.halfLife(memory.Kind(kind))
		decayed := importance * math.Exp(-days/halfLife*math.Ln2)
		if pinned && decayed < r.policy.PinnedFloor {
			decayed = r.policy.PinnedFloor
		}
		if decayed >= importance {
			continue
		}
		updates = append(updates, update{id: id, importance: decayed})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tx, err := r.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET importance = ?, decayed_at = datetime('now') WHERE id = ?`,
			u.importance, u.id); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger.Info("decay sweep complete", "decayed", len(updates))
	return nil
}
