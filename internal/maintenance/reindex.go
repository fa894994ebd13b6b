package maintenance

import (
	"context"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
)

// Reindex rebuilds the vector index from record content and recomputes
// link strengths from access co-occurrence. Both halves overwrite by key,
// so rerunning is harmless.
func (r *Runner) Reindex(ctx context.Context, job *Job) error {
	if !r.store.HasEmbedder() {
		logger.Warn("reindex skipped: no embedder configured")
		return nil
	}

	embedded, err := r.store.ReindexEmbeddings(ctx)
	if err != nil {
		return err
	}

	links, err := r.store.RecomputeLinkStrengths()
	if err != nil {
		return err
	}

	logger.Info("reindex complete", "embedded", embedded, "links", links)
	return nil
}
