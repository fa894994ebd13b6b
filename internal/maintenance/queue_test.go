package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
)

func testQueue(t *testing.T, policy *Policy) (*Queue, *memory.Store) {
	t.Helper()
	store, err := memory.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	queue, err := NewQueue(store.DB(), policy)
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	return queue, store
}

func rescheduleNow(t *testing.T, q *Queue, id string) {
	t.Helper()
	_, err := q.db.Exec(`UPDATE jobs SET scheduled_for = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Second).Format(time.RFC3339), id)
	if err != nil {
		t.Fatalf("failed to reschedule: %v", err)
	}
}

func TestEnqueueAndClaim(t *testing.T) {
	queue, _ := testQueue(t, DefaultPolicy())
	ctx := context.Background()

	id, err := queue.Enqueue(JobDecay, nil, time.Time{}, "")
	if err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	job, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("failed to claim: %v", err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("expected the enqueued job, got %+v", job)
	}
	if job.Status != JobRunning || job.Attempts != 1 {
		t.Errorf("expected running with 1 attempt, got %s/%d", job.Status, job.Attempts)
	}

	// running jobs cannot be claimed twice
	again, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if again != nil {
		t.Error("a running job must not be claimable")
	}

	if err := queue.Complete(id); err != nil {
		t.Fatalf("failed to complete: %v", err)
	}
	done, _ := queue.Get(id)
	if done.Status != JobDone {
		t.Errorf("expected done, got %s", done.Status)
	}
}

func TestFutureJobsNotClaimable(t *testing.T) {
	queue, _ := testQueue(t, DefaultPolicy())
	ctx := context.Background()

	if _, err := queue.Enqueue(JobDecay, nil, time.Now().Add(time.Hour), ""); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}

	job, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if job != nil {
		t.Error("a future job must not be claimable yet")
	}
}

func TestDependencyGating(t *testing.T) {
	queue, _ := testQueue(t, DefaultPolicy())
	ctx := context.Background()

	depID, err := queue.Enqueue(JobConsolidate, map[string]string{"owner": "alice"}, time.Time{}, "")
	if err != nil {
		t.Fatalf("failed to enqueue dependency: %v", err)
	}
	childID, err := queue.Enqueue(JobResummarize, map[string]string{"owner": "alice", "category": "career"}, time.Time{}, depID)
	if err != nil {
		t.Fatalf("failed to enqueue dependent: %v", err)
	}

	job, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if job == nil || job.ID != depID {
		t.Fatalf("expected the dependency first, got %+v", job)
	}

	// the child stays blocked while the dependency runs
	blocked, _ := queue.ClaimNext(ctx)
	if blocked != nil {
		t.Fatal("dependent job claimed before its dependency completed")
	}

	if err := queue.Complete(depID); err != nil {
		t.Fatalf("failed to complete: %v", err)
	}

	child, err := queue.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if child == nil || child.ID != childID {
		t.Fatalf("expected the dependent job, got %+v", child)
	}
	if child.Payload["category"] != "career" {
		t.Errorf("payload should round-trip, got %v", child.Payload)
	}
}

func TestRetryBackoffThenPermanentFailure(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxAttempts = 2
	queue, _ := testQueue(t, policy)
	ctx := context.Background()

	id, _ := queue.Enqueue(JobReindex, nil, time.Time{}, "")

	job, _ := queue.ClaimNext(ctx)
	if job == nil {
		t.Fatal("expected a job")
	}
	if err := queue.Fail(id, errors.New("embedder down")); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	j, _ := queue.Get(id)
	if j.Status != JobPending {
		t.Fatalf("first failure should reschedule, got %s", j.Status)
	}
	if !j.ScheduledFor.After(time.Now().UTC()) {
		t.Error("rescheduled job should be backed off into the future")
	}
	if j.LastError != "embedder down" {
		t.Errorf("expected last error to be recorded, got %q", j.LastError)
	}

	// backed-off jobs are invisible until their time comes
	if got, _ := queue.ClaimNext(ctx); got != nil {
		t.Fatal("backed-off job claimed early")
	}

	rescheduleNow(t, queue, id)
	job, _ = queue.ClaimNext(ctx)
	if job == nil || job.Attempts != 2 {
		t.Fatalf("expected second attempt, got %+v", job)
	}
	if err := queue.Fail(id, errors.New("still down")); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	j, _ = queue.Get(id)
	if j.Status != JobFailed {
		t.Errorf("expected permanent failure at the attempt limit, got %s", j.Status)
	}

	failed, err := queue.Failed(10)
	if err != nil {
		t.Fatalf("failed list errored: %v", err)
	}
	if len(failed) != 1 {
		t.Errorf("failed jobs must stay visible, got %d", len(failed))
	}
}

func TestDependencyFailureCascades(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxAttempts = 1
	queue, _ := testQueue(t, policy)
	ctx := context.Background()

	depID, _ := queue.Enqueue(JobConsolidate, map[string]string{"owner": "alice"}, time.Time{}, "")
	childID, _ := queue.Enqueue(JobResummarize, map[string]string{"owner": "alice", "category": "career"}, time.Time{}, depID)

	job, _ := queue.ClaimNext(ctx)
	if job == nil || job.ID != depID {
		t.Fatalf("expected dependency, got %+v", job)
	}
	if err := queue.Fail(depID, errors.New("boom")); err != nil {
		t.Fatalf("fail failed: %v", err)
	}

	// the next claim pass fails the orphaned child instead of leaving it
	if got, _ := queue.ClaimNext(ctx); got != nil {
		t.Fatalf("nothing should be runnable, got %+v", got)
	}
	child, _ := queue.Get(childID)
	if child.Status != JobFailed {
		t.Errorf("expected cascaded failure, got %s", child.Status)
	}
	if child.LastError != "dependency failed" {
		t.Errorf("unexpected error %q", child.LastError)
	}
}

func TestRecoverRequeuesRunningJobs(t *testing.T) {
	queue, _ := testQueue(t, DefaultPolicy())
	ctx := context.Background()

	id, _ := queue.Enqueue(JobCleanup, nil, time.Time{}, "")
	if job, _ := queue.ClaimNext(ctx); job == nil {
		t.Fatal("expected a job")
	}

	// simulate a crash mid-run
	n, err := queue.Recover()
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recovered job, got %d", n)
	}

	job, _ := queue.ClaimNext(ctx)
	if job == nil || job.ID != id {
		t.Fatal("recovered job should be claimable again")
	}
}

func TestHasPending(t *testing.T) {
	queue, _ := testQueue(t, DefaultPolicy())

	payload := map[string]string{"owner": "alice"}
	if _, err := queue.Enqueue(JobConsolidate, payload, time.Time{}, ""); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	pending, err := queue.HasPending(JobConsolidate, payload)
	if err != nil {
		t.Fatalf("has pending failed: %v", err)
	}
	if !pending {
		t.Error("expected pending job to be found")
	}

	pending, _ = queue.HasPending(JobConsolidate, map[string]string{"owner": "bob"})
	if pending {
		t.Error("different payload should not match")
	}
}
