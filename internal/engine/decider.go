package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/extract"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/llm"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

const decidePrompt = `You are the update decider for a personal memory store. A new candidate fact arrived; decide what to do with it given the most similar records already stored.

Candidate fact:
%s

Similar existing records (most similar first):
%s

Choose exactly one operation:
- "ADD": no existing record carries this information; store it as new
- "UPDATE": an existing record covers the same slot of knowledge; pick "target_id" and a "merge_strategy":
    - "replace": the old content is simply wrong, overwrite it
    - "append": the candidate adds detail to the old content
    - "supersede": a true state change (job change, move); keep history, make the candidate current
- "DELETE": the candidate asserts an existing record is no longer true and should go; pick "target_id"; set "hard_delete" true only if permanent removal was explicitly requested
- "NOOP": the candidate duplicates what is already stored, nothing to do

Never treat records about differently-named subjects as the same unless you are confident both names denote one entity; in that case set "is_alias" true and explain in the reasoning.

Respond with JSON only:
{"operation": "ADD|UPDATE|DELETE|NOOP", "merge_strategy": "...", "target_id": "...", "is_alias": false, "hard_delete": false, "reasoning": "one or two sentences"}`

const decideTimeout = 30 * time.Second

// LLMDecider implements the decision contract against a chat model.
type LLMDecider struct {
	llm llm.LLM
}

func NewLLMDecider(model llm.LLM) *LLMDecider {
	return &LLMDecider{llm: model}
}

func (d *LLMDecider) Decide(ctx context.Context, candidate extract.Candidate, similar []*memory.ScoredRecord) (*Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, decideTimeout)
	defer cancel()

	prompt := fmt.Sprintf(decidePrompt, formatCandidate(candidate), formatSimilar(similar))

	response, err := d.llm.Chat(ctx, "", []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}

	return ParseDecision(response)
}

// ParseDecision parses the collaborator's JSON reply, tolerating markdown
// fences and surrounding prose.
func ParseDecision(raw string) (*Decision, error) {
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("engine: no JSON object in decision")
	}

	var d Decision
	if err := json.Unmarshal([]byte(raw[start:end+1]), &d); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	d.Operation = memory.Op(strings.ToUpper(string(d.Operation)))
	switch d.Operation {
	case memory.OpAdd, memory.OpUpdate, memory.OpDelete, memory.OpNoop:
	default:
		return nil, fmt.Errorf("engine: unknown operation %q", d.Operation)
	}

	d.MergeStrategy = strings.ToLower(d.MergeStrategy)
	if d.Operation == memory.OpUpdate {
		switch d.MergeStrategy {
		case MergeReplace, MergeAppend, MergeSupersede:
		default:
			d.MergeStrategy = MergeSupersede
		}
	}

	return &d, nil
}

func formatCandidate(c extract.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "subject: %s\nkind: %s\ncontent: %s\n", c.SubjectName, c.Kind, c.Content)
	if c.Predicate != "" {
		fmt.Fprintf(&b, "relation: %s -> %s\n", c.Predicate, c.Object)
	}
	if c.IsHistorical {
		b.WriteString("stated as no longer current\n")
	}
	if c.Forget {
		b.WriteString("this is an instruction to forget\n")
	}
	return b.String()
}

func formatSimilar(similar []*memory.ScoredRecord) string {
	if len(similar) == 0 {
		return "(none)"
	}

	var b strings.Builder
	for _, sr := range similar {
		r := sr.Record
		fmt.Fprintf(&b, "- id=%s subject=%s", r.ID, r.SubjectName)
		if r.Predicate != "" {
			fmt.Fprintf(&b, " %s=%s", r.Predicate, r.Object)
		}
		fmt.Fprintf(&b, " (similarity %.2f): %s\n", sr.Similarity, r.Content)
	}
	return b.String()
}
