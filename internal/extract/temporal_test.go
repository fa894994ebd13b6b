package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestHistoricalDetection(t *testing.T) {
	c := &Candidate{Content: "Marcus used to work at Stripe"}
	ApplyTemporalHints(c, testNow)
	assert.True(t, c.IsHistorical)

	c = &Candidate{Content: "Marcus works at Stripe"}
	ApplyTemporalHints(c, testNow)
	assert.False(t, c.IsHistorical)
}

func TestHistoricalFlagNotCleared(t *testing.T) {
	c := &Candidate{Content: "Marcus works at Stripe", IsHistorical: true}
	ApplyTemporalHints(c, testNow)
	assert.True(t, c.IsHistorical)
}

func TestRecurrenceDetection(t *testing.T) {
	for content, want := range map[string]string{
		"goes climbing every tuesday":  "every tuesday",
		"standup each morning":         "each morning",
		"reviews the budget monthly":   "monthly",
		"went climbing once last year": "",
	} {
		c := &Candidate{Content: content}
		ApplyTemporalHints(c, testNow)
		assert.Equal(t, want, c.Recurrence, content)
	}
}

func TestCronShapedRecurrenceValidated(t *testing.T) {
	c := &Candidate{Content: "x", SubjectName: "a", Recurrence: "0 9 * * 1"}
	ApplyTemporalHints(c, testNow)
	assert.Equal(t, "0 9 * * 1", c.Recurrence)

	c = &Candidate{Content: "x", SubjectName: "a", Recurrence: "99 99 * * 1"}
	ApplyTemporalHints(c, testNow)
	assert.Empty(t, c.Recurrence)

	c = &Candidate{Content: "x", SubjectName: "a", Recurrence: "weekly on Friday"}
	ApplyTemporalHints(c, testNow)
	assert.Equal(t, "weekly on Friday", c.Recurrence)
}

func TestFutureStartFromContent(t *testing.T) {
	c := &Candidate{Content: "Marcus is joining Notion starting next month"}
	ApplyTemporalHints(c, testNow)
	require.NotNil(t, c.EffectiveFrom)
	assert.Equal(t, time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC), *c.EffectiveFrom)
	assert.Nil(t, c.ExpiresAt)
}

func TestUntilFromContent(t *testing.T) {
	c := &Candidate{Content: "staying in Lisbon until next week"}
	ApplyTemporalHints(c, testNow)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, time.Date(2025, time.March, 22, 0, 0, 0, 0, time.UTC), *c.ExpiresAt)
}

func TestRawDatesResolved(t *testing.T) {
	c := &Candidate{
		Content:          "conference trip",
		EffectiveFromRaw: "2025-06-01",
		ExpiresAtRaw:     "June 5",
	}
	ApplyTemporalHints(c, testNow)
	require.NotNil(t, c.EffectiveFrom)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, 2025, c.EffectiveFrom.Year())
	assert.Equal(t, time.June, c.ExpiresAt.Month())
	assert.Equal(t, 5, c.ExpiresAt.Day())
	assert.Equal(t, 2025, c.ExpiresAt.Year())
}

func TestExplicitDatesWinOverContent(t *testing.T) {
	from := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	c := &Candidate{
		Content:       "joining Notion starting next month",
		EffectiveFrom: &from,
	}
	ApplyTemporalHints(c, testNow)
	assert.Equal(t, from, *c.EffectiveFrom)
}

func TestParseDateLayouts(t *testing.T) {
	for _, raw := range []string{
		"2025-06-01T09:00:00Z",
		"2025-06-01",
		"2025-06-01 09:00:00",
		"June 1, 2025",
	} {
		got := parseDate(raw, testNow)
		require.NotNil(t, got, raw)
		assert.Equal(t, 2025, got.Year(), raw)
		assert.Equal(t, time.June, got.Month(), raw)
	}

	assert.Nil(t, parseDate("sometime soon", testNow))
}

func TestParseDateYearlessRollsForward(t *testing.T) {
	// a month-day already behind the reference date lands next year
	got := parseDate("January 2", testNow)
	require.NotNil(t, got)
	assert.Equal(t, 2026, got.Year())

	got = parseDate("December 25", testNow)
	require.NotNil(t, got)
	assert.Equal(t, 2025, got.Year())
}

func TestParseDateRelative(t *testing.T) {
	got := parseDate("tomorrow", testNow)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC), *got)
}

func TestIsForgetInstruction(t *testing.T) {
	assert.True(t, IsForgetInstruction("forget about my old address"))
	assert.True(t, IsForgetInstruction("please don't remember that"))
	assert.True(t, IsForgetInstruction("delete this from memory"))
	assert.False(t, IsForgetInstruction("Marcus works at Stripe"))
	assert.False(t, IsForgetInstruction("I deleted the staging database today"))
}
