package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/llm"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

const (
	summarizeTimeout   = 45 * time.Second
	summaryInputLimit  = 40
	summaryDigestLimit = 8
)

const summarizePrompt = `You compress personal memory records into a dense third-person summary.

Rules:
- Keep every load-bearing fact: names, preferences, dates, decisions.
- Prefer the present tense for current facts.
- Do not invent anything that is not in the records.
- Output plain prose, at most 150 words, no preamble.`

// Resummarize rebuilds the synthesized summary for one (owner, category)
// pair from its current active records. Private records never enter the
// synthesis input. Without an LLM a deterministic digest of the
// highest-importance records is stored instead, so the summary tier keeps
// working in degraded mode.
func (r *Runner) Resummarize(ctx context.Context, job *Job) error {
	owner := job.Payload["owner"]
	category := job.Payload["category"]
	if owner == "" || category == "" {
		return errors.New("resummarize: missing owner or category in payload")
	}

	records, err := r.store.ListActiveByCategory(owner, category)
	if err != nil {
		return err
	}

	var members []*memory.Record
	for _, rec := range records {
		if rec.Sensitivity == memory.SensitivityPrivate {
			continue
		}
		members = append(members, rec)
	}
	if len(members) == 0 {
		logger.Debug("resummarize skipped: no summarizable records", "owner", owner, "category", category)
		return nil
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].Importance > members[j].Importance
	})
	if len(members) > summaryInputLimit {
		members = members[:summaryInputLimit]
	}

	text := r.synthesize(ctx, members)
	if text == "" {
		text = digest(members)
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}

	if _, err := r.store.SaveSummary(ctx, owner, category, text, ids); err != nil {
		return err
	}
	logger.Info("summary rebuilt", "owner", owner, "category", category, "records", len(members))
	return nil
}

func (r *Runner) synthesize(ctx context.Context, members []*memory.Record) string {
	if r.llm == nil {
		return ""
	}

	var b strings.Builder
	for _, m := range members {
		fmt.Fprintf(&b, "- [%s, importance %.2f] %s\n", m.Kind, m.Importance, m.Content)
	}

	callCtx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	out, err := r.llm.Chat(callCtx, summarizePrompt, []llm.Message{
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		logger.Warn("summary synthesis unavailable, using digest", "error", err)
		return ""
	}
	return strings.TrimSpace(out)
}

// digest is the LLM-free fallback: the top records verbatim, one per line.
func digest(members []*memory.Record) string {
	n := len(members)
	if n > summaryDigestLimit {
		n = summaryDigestLimit
	}
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		lines[i] = members[i].Content
	}
	return strings.Join(lines, " ")
}
