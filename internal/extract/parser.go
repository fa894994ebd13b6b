package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseResponse parses the raw collaborator response into candidates.
// Handles markdown code fences and wrapper objects; anything unparsable
// yields an error the service downgrades to "nothing extracted".
func ParseResponse(raw string) ([]Candidate, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, nil
	}

	// find the array even when the model wraps it in prose
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		// some models wrap in {"candidates": [...]}
		var wrapper struct {
			Candidates []Candidate `json:"candidates"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapper); err == nil {
			return filterCandidates(wrapper.Candidates), nil
		}
		return nil, fmt.Errorf("extract: no JSON array found")
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &candidates); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	return filterCandidates(candidates), nil
}

// stripCodeFence removes markdown code block wrappers (```json ... ```).
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func filterCandidates(in []Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		c.SubjectName = strings.TrimSpace(c.SubjectName)
		c.Content = strings.TrimSpace(c.Content)
		if c.SubjectName == "" || c.Content == "" {
			continue
		}

		c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
		if c.Kind == "" {
			c.Kind = "fact"
		}

		if c.Confidence <= 0 {
			c.Confidence = 0.8
		}
		if c.Confidence > 1 {
			c.Confidence = 1
		}

		switch strings.ToLower(c.Sensitivity) {
		case "private":
			c.Sensitivity = "private"
		case "sensitive":
			c.Sensitivity = "sensitive"
		default:
			c.Sensitivity = "normal"
		}

		out = append(out, c)
	}
	return out
}
