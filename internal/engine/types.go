package engine

import (
	"context"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/extract"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

// Merge strategies for UPDATE decisions.
const (
	MergeReplace   = "replace"
	MergeAppend    = "append"
	MergeSupersede = "supersede"
)

// Decision is what the reasoning collaborator returns for one candidate:
// which operation applies and why. Any implementation of Decider satisfies
// the engine; the production one prompts an LLM.
type Decision struct {
	Operation     memory.Op `json:"operation"`
	MergeStrategy string    `json:"merge_strategy,omitempty"`
	TargetID      string    `json:"target_id,omitempty"`

	// IsAlias asserts the candidate's subject and the target's subject name
	// the same entity. Aliasing links names, it never merges content.
	IsAlias   bool   `json:"is_alias,omitempty"`
	Reasoning string `json:"reasoning"`

	// HardDelete is set when the input explicitly requests permanent
	// removal rather than archival.
	HardDelete bool `json:"hard_delete,omitempty"`
}

// Decider chooses the operation for a candidate given its nearest
// neighbors in the store.
type Decider interface {
	Decide(ctx context.Context, candidate extract.Candidate, similar []*memory.ScoredRecord) (*Decision, error)
}
