package retrieval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

const (
	defaultTokenBudget = 2000
	summaryFetchLimit  = 3
	recordFetchLimit   = 20

	// a summary this similar to the query is assumed to answer it without
	// drilling into individual records
	summarySufficiency = 0.6

	// candidates below this score-per-token stop the assembly early
	minValuePerToken = 0.002

	recordMinSimilarity = 0.25
)

// Scoring weights for the record fallback path.
const (
	weightSimilarity = 0.5
	weightImportance = 0.2
	weightRecency    = 0.15
	weightAccessFreq = 0.15
)

// Result is a token-bounded context for a query: category summaries when
// they suffice, individual records otherwise.
type Result struct {
	Summaries []*memory.Summary
	Records   []*memory.Record
	Tokens    int
}

// Composer assembles query context from the store, summaries first.
type Composer struct {
	store    *memory.Store
	embedder memory.Embedder
}

func New(store *memory.Store, embedder memory.Embedder) *Composer {
	return &Composer{store: store, embedder: embedder}
}

// Retrieve answers a query for one owner within a token budget. Reads are
// concurrent with writes and tolerate mid-supersession staleness.
func (c *Composer) Retrieve(ctx context.Context, owner, query string, tokenBudget int) (*Result, error) {
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}

	var queryVec []float32
	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, query)
		if err != nil {
			logger.Warn("query embedding failed, summaries only", "error", err)
		} else {
			queryVec = vec
		}
	}

	result := &Result{}

	scored, err := c.store.SearchSummaries(ctx, owner, queryVec, summaryFetchLimit)
	if err != nil {
		return nil, err
	}

	if sufficient(scored, tokenBudget) {
		for _, ss := range scored {
			cost := estimateTokens(ss.Summary.SummaryText)
			if result.Tokens+cost > tokenBudget {
				break
			}
			result.Summaries = append(result.Summaries, ss.Summary)
			result.Tokens += cost
		}
		return result, nil
	}

	if queryVec == nil {
		// no embedder and summaries insufficient: nothing better to offer
		for _, ss := range scored {
			result.Summaries = append(result.Summaries, ss.Summary)
			result.Tokens += estimateTokens(ss.Summary.SummaryText)
		}
		return result, nil
	}

	records, err := c.store.FindSimilar(ctx, owner, queryVec, recordFetchLimit, recordMinSimilarity)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	type scoredRecord struct {
		record *memory.Record
		score  float64
	}

	var candidates []scoredRecord
	for _, sr := range records {
		r := sr.Record

		// not yet in effect; the row stays, retrieval just skips it
		if r.EffectiveFrom != nil && r.EffectiveFrom.After(now) {
			continue
		}

		candidates = append(candidates, scoredRecord{
			record: r,
			score:  compositeScore(sr.Similarity, r, now),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var touched []string
	for _, cand := range candidates {
		cost := estimateTokens(cand.record.Content)
		if result.Tokens+cost > tokenBudget {
			break
		}
		if cost > 0 && cand.score/float64(cost) < minValuePerToken {
			break
		}
		result.Records = append(result.Records, cand.record)
		result.Tokens += cost
		touched = append(touched, cand.record.ID)
	}

	if len(touched) > 0 {
		if err := c.store.Touch(touched); err != nil {
			logger.Warn("access touch failed", "error", err)
		}
		if err := c.store.LogAccess(memory.NewAccessBatchID(), touched); err != nil {
			logger.Warn("co-access log failed", "error", err)
		}
	}

	return result, nil
}

func sufficient(scored []*memory.ScoredSummary, tokenBudget int) bool {
	if len(scored) == 0 {
		return false
	}

	best := scored[0]
	for _, ss := range scored[1:] {
		if ss.Similarity > best.Similarity {
			best = ss
		}
	}
	if best.Similarity < summarySufficiency {
		return false
	}

	return estimateTokens(best.Summary.SummaryText) <= tokenBudget
}

func compositeScore(similarity float64, r *memory.Record, now time.Time) float64 {
	recencyBase := r.CreatedAt
	if r.LastAccessedAt != nil {
		recencyBase = *r.LastAccessedAt
	}
	days := now.Sub(recencyBase).Hours() / 24
	recency := math.Exp(-days / 30)

	accessFreq := math.Min(float64(r.AccessCount)/10.0, 1.0)

	return weightSimilarity*similarity +
		weightImportance*r.Importance +
		weightRecency*recency +
		weightAccessFreq*accessFreq
}

// estimateTokens approximates at four characters per token.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
