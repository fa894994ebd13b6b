package maintenance

import (
	"context"
	"errors"
	"strings"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

// Consolidate merges near-duplicate active records for one owner. Two
// records merge only when they share a subject and their contents are at
// least ConsolidateSimilarity cosine-similar; the higher-importance record
// survives and the other is archived with a supersession link. Merging
// never invents content, so every fact representable after the pass was
// representable before it. Pinned records are never the losing side.
func (r *Runner) Consolidate(ctx context.Context, job *Job) error {
	owner := job.Payload["owner"]
	if owner == "" {
		return errors.New("consolidate: missing owner in payload")
	}
	if !r.store.HasEmbedder() {
		logger.Warn("consolidate skipped: no embedder configured", "owner", owner)
		return nil
	}

	records, err := r.store.ListActiveByOwner(owner)
	if err != nil {
		return err
	}

	merged := map[string]bool{}
	count := 0

	for _, rec := range records {
		if merged[rec.ID] {
			continue
		}

		similar, err := r.store.FindSimilarText(ctx, owner, rec.Content, 5, r.policy.ConsolidateSimilarity)
		if err != nil {
			return err
		}

		for _, sr := range similar {
			other := sr.Record
			if other.ID == rec.ID || merged[other.ID] || merged[rec.ID] {
				continue
			}
			if !strings.EqualFold(other.SubjectName, rec.SubjectName) {
				continue
			}

			winner, loser := pickWinner(rec, other)
			if loser.Pinned {
				continue
			}

			if err := r.store.Merge(ctx, winner.ID, loser.ID); err != nil {
				// A concurrent write moved the loser; skip the pair, the
				// next sweep will see the new state.
				if errors.Is(err, memory.ErrSlotConflict) || errors.Is(err, memory.ErrInvariantViolation) {
					logger.Debug("merge skipped", "winner", winner.ID, "loser", loser.ID, "error", err)
					continue
				}
				return err
			}
			merged[loser.ID] = true
			count++

			_ = r.store.AppendOperation(&memory.Operation{
				OwnerID:       owner,
				CandidateText: loser.Content,
				Op:            memory.OpConsolidate,
				Reasoning:     "merged near-duplicate into " + winner.ID,
				ResultIDs:     []string{winner.ID},
				Status:        "ok",
			})
		}
	}

	logger.Info("consolidate sweep complete", "owner", owner, "merged", count)
	return nil
}

func pickWinner(a, b *memory.Record) (winner, loser *memory.Record) {
	if b.Pinned && !a.Pinned {
		return b, a
	}
	if a.Pinned && !b.Pinned {
		return a, b
	}
	if b.Importance > a.Importance {
		return b, a
	}
	return a, b
}
