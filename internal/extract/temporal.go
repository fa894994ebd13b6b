package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Precompiled patterns for temporal and intent detection. The collaborator
// usually tags these itself; the deterministic pass catches what it missed
// so temporal hints survive a sloppy extraction.
var (
	historicalPattern = regexp.MustCompile(`(?i)\b(used to|formerly|previously|no longer|not anymore|back when)\b`)

	forgetPattern = regexp.MustCompile(`(?i)\b(forget|don'?t remember|stop remembering|delete|erase)\b.*\b(this|that|it|about)\b`)

	recurringPattern = regexp.MustCompile(`(?i)\b(every|each)\s+(day|week|month|year|morning|evening|monday|tuesday|wednesday|thursday|friday|saturday|sunday)s?\b|\b(daily|weekly|monthly|yearly)\b`)

	futureStartPattern = regexp.MustCompile(`(?i)\b(starting|from|as of|beginning)\s+(next\s+(week|month|year)|tomorrow|(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2})`)

	untilPattern = regexp.MustCompile(`(?i)\buntil\s+(next\s+(week|month|year)|tomorrow|(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2})`)
)

// ApplyTemporalHints resolves raw date strings and fills hints the
// collaborator omitted by scanning the candidate's own content.
func ApplyTemporalHints(c *Candidate, now time.Time) {
	if c.EffectiveFrom == nil && c.EffectiveFromRaw != "" {
		c.EffectiveFrom = parseDate(c.EffectiveFromRaw, now)
	}
	if c.ExpiresAt == nil && c.ExpiresAtRaw != "" {
		c.ExpiresAt = parseDate(c.ExpiresAtRaw, now)
	}

	if !c.IsHistorical && historicalPattern.MatchString(c.Content) {
		c.IsHistorical = true
	}

	if c.Recurrence == "" {
		if m := recurringPattern.FindString(c.Content); m != "" {
			c.Recurrence = strings.ToLower(m)
		}
	} else if looksLikeCron(c.Recurrence) {
		// collaborators sometimes emit cron lines; drop ones that can't parse
		if _, err := cron.ParseStandard(c.Recurrence); err != nil {
			c.Recurrence = ""
		}
	}

	if c.EffectiveFrom == nil {
		if m := futureStartPattern.FindStringSubmatch(c.Content); m != nil {
			c.EffectiveFrom = resolveRelative(m[2], now)
		}
	}
	if c.ExpiresAt == nil {
		if m := untilPattern.FindStringSubmatch(c.Content); m != nil {
			c.ExpiresAt = resolveRelative(m[1], now)
		}
	}
}

// IsForgetInstruction reports whether raw observation text is asking the
// system to forget something rather than stating new information.
func IsForgetInstruction(text string) bool {
	return forgetPattern.MatchString(text)
}

// parseDate accepts the date shapes the collaborator tends to emit.
func parseDate(raw string, now time.Time) *time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "January 2, 2006", "January 2"} {
		if t, err := time.Parse(layout, raw); err == nil {
			if t.Year() == 0 {
				t = t.AddDate(now.Year(), 0, 0)
				if t.Before(now) {
					t = t.AddDate(1, 0, 0)
				}
			}
			return &t
		}
	}
	if t := resolveRelative(raw, now); t != nil {
		return t
	}
	return nil
}

func resolveRelative(expr string, now time.Time) *time.Time {
	expr = strings.ToLower(strings.TrimSpace(expr))
	day := now.Truncate(24 * time.Hour)

	var t time.Time
	switch {
	case expr == "tomorrow":
		t = day.AddDate(0, 0, 1)
	case expr == "next week":
		t = day.AddDate(0, 0, 7)
	case expr == "next month":
		t = day.AddDate(0, 1, 0)
	case expr == "next year":
		t = day.AddDate(1, 0, 0)
	default:
		if parsed, err := time.Parse("January 2", titleCase(expr)); err == nil {
			t = parsed.AddDate(now.Year(), 0, 0)
			if t.Before(now) {
				t = t.AddDate(1, 0, 0)
			}
		} else {
			return nil
		}
	}
	return &t
}

// looksLikeCron reports whether a recurrence string is a five-field cron
// expression rather than natural language.
func looksLikeCron(s string) bool {
	fields := strings.Fields(s)
	if len(fields) != 5 {
		return false
	}
	for _, f := range fields {
		if !strings.ContainsAny(f, "0123456789*/,-") {
			return false
		}
	}
	return true
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
