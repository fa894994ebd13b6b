package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/extract"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

const (
	defaultK             = 10
	defaultMinSimilarity = 0.5
)

// Engine turns candidate facts into store mutations. Every candidate leaves
// exactly one audit entry behind, whatever happens to it.
type Engine struct {
	store         *memory.Store
	extractor     *extract.Service
	decider       Decider
	k             int
	minSimilarity float64
}

func New(store *memory.Store, extractor *extract.Service, decider Decider) *Engine {
	return &Engine{
		store:         store,
		extractor:     extractor,
		decider:       decider,
		k:             defaultK,
		minSimilarity: defaultMinSimilarity,
	}
}

// Learn runs the full pipeline for one raw observation: extraction, then one
// decision per candidate. Failures degrade to "nothing learned"; they never
// propagate to the caller of the write path.
func (e *Engine) Learn(ctx context.Context, owner, text string) []*memory.Operation {
	known, err := e.store.KnownEntityNames(owner)
	if err != nil {
		logger.Error("known entities lookup failed", "error", err)
	}

	candidates := e.extractor.Extract(ctx, text, known)

	var ops []*memory.Operation
	for _, c := range candidates {
		op, err := e.Process(ctx, owner, c)
		if err != nil {
			logger.Error("candidate not learned", "subject", c.SubjectName, "error", err)
		}
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

// Process decides and executes one candidate. The returned Operation mirrors
// the audit entry written for it.
func (e *Engine) Process(ctx context.Context, owner string, c extract.Candidate) (*memory.Operation, error) {
	started := time.Now()

	op := &memory.Operation{
		OwnerID:       owner,
		CandidateText: c.Content,
	}
	finish := func() {
		op.Elapsed = time.Since(started)
		if err := e.store.AppendOperation(op); err != nil {
			logger.Error("audit append failed", "error", err)
		}
	}

	similar, err := e.store.FindSimilarText(ctx, owner, c.Content, e.k, e.minSimilarity)
	if err != nil {
		op.Op = memory.OpNoop
		op.Status = "failed"
		op.Reasoning = fmt.Sprintf("embedding unavailable: %v", err)
		finish()
		return op, err
	}
	for _, sr := range similar {
		op.SimilarIDs = append(op.SimilarIDs, sr.Record.ID)
	}

	// verbatim duplicates never need the collaborator; a forget instruction
	// matching an existing record is not a duplicate, it is a deletion
	if dup := findDuplicate(c, similar); dup != nil && !c.Forget {
		op.Op = memory.OpNoop
		op.Reasoning = "duplicate of existing record"
		op.ResultIDs = []string{dup.ID}
		e.store.Touch([]string{dup.ID})
		finish()
		return op, nil
	}

	var d *Decision
	if c.Forget {
		// explicit "don't remember this" bypasses the collaborator
		d = &Decision{
			Operation:  memory.OpDelete,
			HardDelete: true,
			Reasoning:  "user instructed the system to forget this",
		}
	} else {
		d, err = e.decide(ctx, c, similar)
		if err != nil {
			op.Op = memory.OpNoop
			op.Status = "failed"
			op.Reasoning = fmt.Sprintf("decision unavailable: %v", err)
			finish()
			return op, err
		}
	}

	e.validate(&c, d, similar)

	op.Op = d.Operation
	op.MergeStrategy = d.MergeStrategy

	resultIDs, err := e.execute(ctx, owner, c, d, similar)
	op.ResultIDs = resultIDs
	op.Reasoning = d.Reasoning
	if err != nil {
		op.Status = "failed"
		op.Reasoning = fmt.Sprintf("%s (execute: %v)", d.Reasoning, err)
	}
	finish()
	return op, err
}

// decide calls the collaborator with one bounded retry.
func (e *Engine) decide(ctx context.Context, c extract.Candidate, similar []*memory.ScoredRecord) (*Decision, error) {
	d, err := e.decider.Decide(ctx, c, similar)
	if err == nil {
		return d, nil
	}
	logger.Warn("decision failed, retrying once", "subject", c.SubjectName, "error", err)
	return e.decider.Decide(ctx, c, similar)
}

// validate applies the deterministic rules that override the collaborator.
func (e *Engine) validate(c *extract.Candidate, d *Decision, similar []*memory.ScoredRecord) {
	if c.Forget {
		d.Operation = memory.OpDelete
		d.HardDelete = true
	}

	if d.Operation == memory.OpUpdate || d.Operation == memory.OpDelete {
		target := resolveTarget(d.TargetID, similar)
		if target == nil {
			// nothing to merge with after all
			if d.Operation == memory.OpUpdate {
				d.Operation = memory.OpAdd
				d.MergeStrategy = ""
			} else {
				d.Operation = memory.OpNoop
			}
			return
		}
		d.TargetID = target.ID

		if !strings.EqualFold(target.SubjectName, c.SubjectName) && !d.IsAlias {
			// differing subjects never merge silently
			d.Operation = memory.OpAdd
			d.MergeStrategy = ""
			d.TargetID = ""
			return
		}

		// "used to" against a present-tense record is a state change, not
		// a correction
		if d.Operation == memory.OpUpdate && c.IsHistorical &&
			d.MergeStrategy == MergeReplace && !target.IsHistorical {
			d.MergeStrategy = MergeSupersede
		}
	}
}

func (e *Engine) execute(ctx context.Context, owner string, c extract.Candidate, d *Decision, similar []*memory.ScoredRecord) ([]string, error) {
	switch d.Operation {
	case memory.OpAdd:
		return e.executeAdd(ctx, owner, c)
	case memory.OpUpdate:
		return e.executeUpdate(ctx, owner, c, d, similar)
	case memory.OpDelete:
		return e.executeDelete(ctx, d)
	case memory.OpNoop:
		return nil, nil
	default:
		return nil, fmt.Errorf("engine: unexpected operation %q", d.Operation)
	}
}

func (e *Engine) executeAdd(ctx context.Context, owner string, c extract.Candidate) ([]string, error) {
	if d := e.aliasTarget(owner, c); d != "" {
		c.SubjectName = d
	}

	if _, err := e.store.GetOrCreateEntity(owner, c.SubjectName, entityKind(c)); err != nil {
		return nil, err
	}

	rec := recordFromCandidate(owner, c)

	// a slotted ADD against an occupied slot is really a state change
	if c.Predicate != "" {
		occupant, err := e.store.GetActiveBySlot(owner, c.SubjectName, c.Predicate)
		if err == nil {
			return e.supersedeWithRetry(ctx, occupant, rec, c)
		}
		if !errors.Is(err, memory.ErrNotFound) {
			return nil, err
		}
	}

	if err := e.store.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return []string{rec.ID}, nil
}

func (e *Engine) executeUpdate(ctx context.Context, owner string, c extract.Candidate, d *Decision, similar []*memory.ScoredRecord) ([]string, error) {
	target := resolveTarget(d.TargetID, similar)
	if target == nil {
		return nil, fmt.Errorf("engine: update target %q not among similar records", d.TargetID)
	}

	if d.IsAlias && !strings.EqualFold(target.SubjectName, c.SubjectName) {
		if ent, err := e.store.GetOrCreateEntity(owner, target.SubjectName, entityKind(c)); err == nil {
			if err := e.store.AddAlias(ent.ID, c.SubjectName); err != nil {
				logger.Warn("alias not recorded", "entity", target.SubjectName, "alias", c.SubjectName, "error", err)
			}
		}
		c.SubjectName = target.SubjectName
	}

	switch d.MergeStrategy {
	case MergeReplace:
		patch := memory.Patch{Content: &c.Content}
		if c.Object != "" {
			patch.Object = &c.Object
		}
		if err := e.store.Update(ctx, target.ID, patch); err != nil {
			return nil, err
		}
		return []string{target.ID}, nil

	case MergeAppend:
		merged := target.Content
		if !strings.Contains(merged, c.Content) {
			merged = merged + "; " + c.Content
		}
		if err := e.store.Update(ctx, target.ID, memory.Patch{Content: &merged}); err != nil {
			return nil, err
		}
		return []string{target.ID}, nil

	case MergeSupersede:
		repl := recordFromCandidate(owner, c)
		return e.supersedeWithRetry(ctx, target, repl, c)

	default:
		return nil, fmt.Errorf("engine: unknown merge strategy %q", d.MergeStrategy)
	}
}

// supersedeWithRetry handles the concurrent-writer race: when the optimistic
// version check fails, re-read the slot and either convert to NOOP (the
// other writer stored the same thing) or supersede the fresh occupant.
func (e *Engine) supersedeWithRetry(ctx context.Context, target *memory.Record, repl *memory.Record, c extract.Candidate) ([]string, error) {
	out, err := e.store.Supersede(ctx, target.ID, target.Version, repl)
	if err == nil {
		return []string{out.ID, target.ID}, nil
	}
	if !errors.Is(err, memory.ErrSlotConflict) {
		return nil, err
	}

	occupant, rerr := e.store.GetActiveBySlot(target.OwnerID, target.SubjectName, target.Predicate)
	if rerr != nil {
		return nil, fmt.Errorf("engine: slot re-read after conflict: %w", rerr)
	}

	if strings.EqualFold(occupant.Content, c.Content) {
		// the competing writer already stored this; nothing left to do
		e.store.Touch([]string{occupant.ID})
		return []string{occupant.ID}, nil
	}

	repl.ID = ""
	repl.SupersedesID = nil
	out, err = e.store.Supersede(ctx, occupant.ID, occupant.Version, repl)
	if err != nil {
		return nil, err
	}
	return []string{out.ID, occupant.ID}, nil
}

func (e *Engine) executeDelete(ctx context.Context, d *Decision) ([]string, error) {
	if d.TargetID == "" {
		return nil, nil
	}

	// after a hard delete the audit entry is the only place the old content
	// survives, so capture it there
	if prior, err := e.store.GetByID(d.TargetID); err == nil {
		d.Reasoning = fmt.Sprintf("%s [removed content: %s]", d.Reasoning, prior.Content)
	}

	if d.HardDelete {
		if err := e.store.HardDelete(ctx, d.TargetID); err != nil && !errors.Is(err, memory.ErrNotFound) {
			return nil, err
		}
		return []string{d.TargetID}, nil
	}

	if err := e.store.SoftDelete(ctx, d.TargetID); err != nil && !errors.Is(err, memory.ErrNotFound) {
		return nil, err
	}
	return []string{d.TargetID}, nil
}

// aliasTarget resolves the candidate's subject through the alias table so
// facts filed under a nickname land on the canonical entity.
func (e *Engine) aliasTarget(owner string, c extract.Candidate) string {
	ent, err := e.store.FindEntity(owner, c.SubjectName)
	if err != nil {
		return ""
	}
	if !strings.EqualFold(ent.Name, c.SubjectName) {
		return ent.Name
	}
	return ""
}

func findDuplicate(c extract.Candidate, similar []*memory.ScoredRecord) *memory.Record {
	for _, sr := range similar {
		r := sr.Record
		if strings.EqualFold(r.SubjectName, c.SubjectName) &&
			strings.EqualFold(strings.TrimSpace(r.Content), strings.TrimSpace(c.Content)) {
			return r
		}
	}
	return nil
}

// resolveTarget finds the decision's target among the retrieved neighbors,
// falling back to the tie-break policy when the id is missing or stale:
// highest similarity, then most recently accessed, then higher importance.
func resolveTarget(targetID string, similar []*memory.ScoredRecord) *memory.Record {
	if len(similar) == 0 {
		return nil
	}

	if targetID != "" {
		for _, sr := range similar {
			if sr.Record.ID == targetID {
				return sr.Record
			}
		}
	}

	best := similar[0]
	for _, sr := range similar[1:] {
		if sr.Similarity > best.Similarity+1e-6 {
			best = sr
			continue
		}
		if sr.Similarity < best.Similarity-1e-6 {
			continue
		}
		if moreRecentlyAccessed(sr.Record, best.Record) {
			best = sr
			continue
		}
		if sameAccessTime(sr.Record, best.Record) && sr.Record.Importance > best.Record.Importance {
			best = sr
		}
	}
	return best.Record
}

func moreRecentlyAccessed(a, b *memory.Record) bool {
	if a.LastAccessedAt == nil {
		return false
	}
	if b.LastAccessedAt == nil {
		return true
	}
	return a.LastAccessedAt.After(*b.LastAccessedAt)
}

func sameAccessTime(a, b *memory.Record) bool {
	if a.LastAccessedAt == nil || b.LastAccessedAt == nil {
		return a.LastAccessedAt == b.LastAccessedAt
	}
	return a.LastAccessedAt.Equal(*b.LastAccessedAt)
}

func recordFromCandidate(owner string, c extract.Candidate) *memory.Record {
	kind := memory.Kind(c.Kind)
	if !memory.IsValidKind(c.Kind) {
		kind = memory.KindFact
	}

	sensitivity := memory.Sensitivity(c.Sensitivity)
	switch sensitivity {
	case memory.SensitivityNormal, memory.SensitivitySensitive, memory.SensitivityPrivate:
	default:
		sensitivity = memory.SensitivityNormal
	}

	return &memory.Record{
		OwnerID:       owner,
		Kind:          kind,
		Category:      memory.NormalizeCategory(c.Category),
		SubjectName:   c.SubjectName,
		Content:       c.Content,
		Predicate:     c.Predicate,
		Object:        c.Object,
		Importance:    c.Confidence,
		IsHistorical:  c.IsHistorical,
		EffectiveFrom: c.EffectiveFrom,
		ExpiresAt:     c.ExpiresAt,
		Recurrence:    c.Recurrence,
		Sensitivity:   sensitivity,
	}
}

func entityKind(c extract.Candidate) string {
	if c.Kind == "entity" {
		return "entity"
	}
	return "subject"
}
