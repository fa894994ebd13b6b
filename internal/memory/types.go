package memory

import (
	"context"
	"time"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Kind classifies what a record represents.
type Kind string

const (
	KindEntity     Kind = "entity"
	KindFact       Kind = "fact"
	KindPreference Kind = "preference"
	KindEvent      Kind = "event"
	KindGoal       Kind = "goal"
	KindProcedure  Kind = "procedure"
	KindDecision   Kind = "decision"
	KindAction     Kind = "action"
)

func IsValidKind(k string) bool {
	switch Kind(k) {
	case KindEntity, KindFact, KindPreference, KindEvent, KindGoal, KindProcedure, KindDecision, KindAction:
		return true
	}
	return false
}

// Status tracks a record's place in its version chain.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
	StatusArchived   Status = "archived"
)

// Sensitivity controls where a record may surface.
type Sensitivity string

const (
	SensitivityNormal    Sensitivity = "normal"
	SensitivitySensitive Sensitivity = "sensitive"
	SensitivityPrivate   Sensitivity = "private"
)

// Record is the atomic unit of stored knowledge. Version chains are linked
// through SupersedesID/SupersededByID; at most one descendant of a chain is
// active per (owner, subject, predicate) slot.
type Record struct {
	ID             string
	OwnerID        string
	Kind           Kind
	Category       string
	SubjectName    string
	Content        string
	Predicate      string
	Object         string
	Importance     float64
	Sentiment      *float64
	IsHistorical   bool
	EffectiveFrom  *time.Time
	ExpiresAt      *time.Time
	Recurrence     string
	Sensitivity    Sensitivity
	Status         Status
	SupersedesID   *string
	SupersededByID *string
	Version        int
	Pinned         bool
	AccessCount    int
	LastAccessedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Slot identifies "one fact about one thing" for uniqueness purposes.
// Records without a predicate are free-form and not slot-constrained.
func (r *Record) Slot() (owner, subject, predicate string, ok bool) {
	return r.OwnerID, r.SubjectName, r.Predicate, r.Predicate != ""
}

// Category is a seeded taxonomy bucket used for summary membership and
// decay half-life overrides.
type Category struct {
	ID   int
	Name string
	Slug string
}

// Entity names something records can be about. Aliases hold alternative
// names detected over time; alias detection links, it never merges content.
type Entity struct {
	ID        int64
	OwnerID   string
	Name      string
	Kind      string
	Aliases   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is a synthesized narrative over the active records of one
// category for one owner.
type Summary struct {
	ID              string
	OwnerID         string
	Category        string
	SummaryText     string
	MemberRecordIDs []string
	Version         int
	LastSynthesized time.Time
}

// Link connects two records; strength is recomputed by the reindex job
// from access co-occurrence.
type Link struct {
	ID        int64
	SourceID  string
	TargetID  string
	Relation  string
	Strength  float64
	CreatedAt time.Time
}

// Op is the operation recorded by an audit entry.
type Op string

const (
	OpAdd         Op = "ADD"
	OpUpdate      Op = "UPDATE"
	OpDelete      Op = "DELETE"
	OpNoop        Op = "NOOP"
	OpConsolidate Op = "CONSOLIDATE"
)

/// Operation is an immutable audit-log row: one per decision the engine
// makes, including NOOPs and failures.
type Operation struct {
	ID            string
	OwnerID       string
	CandidateText string
	SimilarIDs    []string
	Op            Op
	MergeStrategy string
	Reasoning     string
	ResultIDs     []string
	Status        string // ok | failed
	Elapsed       time.Duration
	CreatedAt     time.Time
}

// ScoredRecord pairs a record with its cosine similarity to a query vector.
type ScoredRecord struct {
	Record     *Record
	Similarity float64
}
