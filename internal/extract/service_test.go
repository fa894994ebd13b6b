package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/llm"
)

type stubLLM struct {
	response string
	err      error
	prompt   string
}

func (s *stubLLM) Chat(_ context.Context, _ string, messages []llm.Message) (string, error) {
	if len(messages) > 0 {
		s.prompt = messages[len(messages)-1].Content
	}
	return s.response, s.err
}

func TestExtractHappyPath(t *testing.T) {
	model := &stubLLM{response: `[{"kind": "fact", "subject": "Marcus", "content": "Marcus works at Stripe", "predicate": "employer", "object": "Stripe"}]`}
	svc := NewService(model)

	candidates := svc.Extract(context.Background(), "marcus told me he works at stripe", nil)
	require.Len(t, candidates, 1)
	assert.Equal(t, "employer", candidates[0].Predicate)
	assert.False(t, candidates[0].Forget)
}

func TestExtractPrimesKnownEntities(t *testing.T) {
	model := &stubLLM{response: "[]"}
	svc := NewService(model)

	svc.Extract(context.Background(), "sam called", []string{"Sam Okafor", "Marcus"})
	assert.Contains(t, model.prompt, "Sam Okafor, Marcus")
}

func TestExtractCollaboratorFailureIsEmpty(t *testing.T) {
	svc := NewService(&stubLLM{err: errors.New("upstream timeout")})
	assert.Empty(t, svc.Extract(context.Background(), "marcus works at stripe", nil))
}

func TestExtractUnparsableResponseIsEmpty(t *testing.T) {
	svc := NewService(&stubLLM{response: "sorry, I cannot help with that"})
	assert.Empty(t, svc.Extract(context.Background(), "marcus works at stripe", nil))
}

func TestExtractNilModelAndEmptyText(t *testing.T) {
	assert.Empty(t, NewService(nil).Extract(context.Background(), "anything", nil))

	svc := NewService(&stubLLM{response: "[]"})
	assert.Empty(t, svc.Extract(context.Background(), "   ", nil))
}

func TestExtractTruncatesOversizedText(t *testing.T) {
	model := &stubLLM{response: "[]"}
	svc := NewService(model)

	svc.Extract(context.Background(), strings.Repeat("a", MaxTextLength+500), nil)
	assert.LessOrEqual(t, len(model.prompt), MaxTextLength+len(extractPrompt)+100)
}

func TestExtractMarksForgetInstruction(t *testing.T) {
	model := &stubLLM{response: `[{"kind": "fact", "subject": "Marcus", "content": "Marcus's old address"}]`}
	svc := NewService(model)

	candidates := svc.Extract(context.Background(), "forget about marcus's old address", nil)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].Forget)
}
