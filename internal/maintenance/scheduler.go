package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

const (
	schedulerTick    = 30 * time.Second
	hotCategoryEvery = time.Hour
)

// Scheduler turns the policy's cron expressions into queued jobs. It only
// enqueues; the worker pool does the work. Owner-scoped sweeps fan out to
// one job per owner, and weekly resummarize jobs depend on that owner's
// consolidate job so summaries are built from merged records.
type Scheduler struct {
	queue     *Queue
	store     *memory.Store
	policy    *Policy
	schedules map[string]cron.Schedule
	next      map[string]time.Time
	hotCheck  time.Time
}

func NewScheduler(queue *Queue, store *memory.Store, policy *Policy) (*Scheduler, error) {
	schedules := make(map[string]cron.Schedule, len(policy.Schedule))
	next := make(map[string]time.Time, len(policy.Schedule))
	now := time.Now()

	for jobType, expr := range policy.Schedule {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", jobType, err)
		}
		schedules[jobType] = sched
		next[jobType] = sched.Next(now)
	}

	return &Scheduler{
		queue:     queue,
		store:     store,
		policy:    policy,
		schedules: schedules,
		next:      next,
	}, nil
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	for jobType, sched := range s.schedules {
		if now.Before(s.next[jobType]) {
			continue
		}
		s.next[jobType] = sched.Next(now)
		if err := s.fire(jobType); err != nil {
			logger.Error("schedule fire failed", "type", jobType, "error", err)
		}
	}

	if now.Sub(s.hotCheck) >= hotCategoryEvery {
		s.hotCheck = now
		if err := s.enqueueHotCategories(); err != nil {
			logger.Error("hot category check failed", "error", err)
		}
	}
}

func (s *Scheduler) fire(jobType string) error {
	switch jobType {
	case JobDecay, JobCleanup, JobReindex, JobBackup:
		return s.enqueueOnce(jobType, nil, "")
	case JobConsolidate:
		return s.eachOwner(func(owner string) error {
			return s.enqueueOnce(JobConsolidate, map[string]string{"owner": owner}, "")
		})
	case JobResummarize:
		return s.eachOwner(s.enqueueOwnerResummarize)
	default:
		return fmt.Errorf("unknown job type %q", jobType)
	}
}

// enqueueOwnerResummarize queues one summary rebuild per category the
// owner has records in, all depending on a fresh consolidate pass.
func (s *Scheduler) enqueueOwnerResummarize(owner string) error {
	categories, err := s.ownerCategories(owner)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return nil
	}

	depID, err := s.queue.Enqueue(JobConsolidate, map[string]string{"owner": owner}, time.Time{}, "")
	if err != nil {
		return err
	}
	for _, category := range categories {
		payload := map[string]string{"owner": owner, "category": category}
		if _, err := s.queue.Enqueue(JobResummarize, payload, time.Time{}, depID); err != nil {
			return err
		}
	}
	logger.Debug("resummarize scheduled", "owner", owner, "categories", len(categories))
	return nil
}

// enqueueHotCategories rebuilds summaries off-schedule for categories that
// accumulated enough new records since the last synthesis.
func (s *Scheduler) enqueueHotCategories() error {
	return s.eachOwner(func(owner string) error {
		categories, err := s.ownerCategories(owner)
		if err != nil {
			return err
		}
		for _, category := range categories {
			since := time.Time{}
			if sum, err := s.store.GetSummary(owner, category); err == nil {
				since = sum.LastSynthesized
			}
			n, err := s.store.NewRecordsSince(owner, category, since)
			if err != nil {
				return err
			}
			if n < s.policy.ResummarizeAfter {
				continue
			}

			payload := map[string]string{"owner": owner, "category": category}
			if _, err := s.enqueueIfAbsent(JobResummarize, payload); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Scheduler) enqueueOnce(jobType string, payload map[string]string, dependsOn string) error {
	pending, err := s.queue.HasPending(jobType, payload)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	id, err := s.queue.Enqueue(jobType, payload, time.Time{}, dependsOn)
	if err != nil {
		return err
	}
	logger.Debug("job scheduled", "type", jobType, "job", id)
	return nil
}

func (s *Scheduler) enqueueIfAbsent(jobType string, payload map[string]string) (string, error) {
	pending, err := s.queue.HasPending(jobType, payload)
	if err != nil || pending {
		return "", err
	}
	return s.queue.Enqueue(jobType, payload, time.Time{}, "")
}

func (s *Scheduler) eachOwner(fn func(owner string) error) error {
	owners, err := s.store.Owners()
	if err != nil {
		return err
	}
	for _, owner := range owners {
		if err := fn(owner); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) ownerCategories(owner string) ([]string, error) {
	rows, err := s.store.DB().Query(
		`SELECT DISTINCT category FROM records WHERE owner_id = ? AND status = 'active'`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
