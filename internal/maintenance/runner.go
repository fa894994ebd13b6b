package maintenance

import (
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/llm"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

// Runner owns the job handlers. The LLM and backup uploader are optional;
// handlers that need a missing collaborator degrade rather than fail.
type Runner struct {
	store  *memory.Store
	llm    llm.LLM
	policy *Policy
	backup *BackupUploader
}

func NewRunner(store *memory.Store, model llm.LLM, policy *Policy, backup *BackupUploader) *Runner {
	return &Runner{store: store, llm: model, policy: policy, backup: backup}
}

// Handlers maps each job type to its handler for the worker pool.
func (r *Runner) Handlers() map[string]Handler {
	return map[string]Handler{
		JobDecay:       r.Decay,
		JobConsolidate: r.Consolidate,
		JobResummarize: r.Resummarize,
		JobReindex:     r.Reindex,
		JobCleanup:     r.Cleanup,
		JobBackup:      r.Backup,
	}
}
