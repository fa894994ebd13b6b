package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/llm"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
)

const callTimeout = 30 * time.Second

// Service is the fact-extraction boundary: raw text in, candidates out.
// It performs no writes and never fails the caller: an unavailable or
// unparsable collaborator yields an empty candidate list.
type Service struct {
	llm llm.LLM
}

func NewService(model llm.LLM) *Service {
	return &Service{llm: model}
}

// Extract turns one raw observation into candidate facts. knownEntities
// primes disambiguation so "Sam" resolves to an entity already on file.
func (s *Service) Extract(ctx context.Context, text string, knownEntities []string) []Candidate {
	if s.llm == nil {
		return nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) > MaxTextLength {
		text = text[:MaxTextLength]
	}

	known := "(none yet)"
	if len(knownEntities) > 0 {
		known = strings.Join(knownEntities, ", ")
	}
	prompt := fmt.Sprintf(extractPrompt, known, text)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	response, err := s.llm.Chat(ctx, "", []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		logger.Error("fact extraction failed", "error", err)
		return nil
	}

	candidates, err := ParseResponse(response)
	if err != nil {
		logger.Error("fact parsing failed", "error", err, "response", response)
		return nil
	}

	now := time.Now()
	forget := IsForgetInstruction(text)
	for i := range candidates {
		ApplyTemporalHints(&candidates[i], now)
		if forget {
			candidates[i].Forget = true
		}
	}

	if len(candidates) == 0 {
		logger.Debug("no facts extracted")
	}

	return candidates
}
