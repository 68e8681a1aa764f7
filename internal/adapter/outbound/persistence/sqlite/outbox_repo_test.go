package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/rafaeldc/triagebot/internal/adapter/outbound/persistence/sqlite"
	"github.com/rafaeldc/triagebot/internal/domain/model"
	"github.com/rafaeldc/triagebot/internal/domain/port/outbound"
)

func testSubmission() model.Submission {
	return model.Submission{
		Description:   "Estorno travado",
		Client:        "Loja Y",
		Channel:       model.ChannelSlack,
		Module:        "estorno",
		Attempts:      model.AttemptsBasic,
		SlackUserID:   "U1",
		TargetChannel: "C1",
	}
}

func TestOutboxRepo_EnqueueAndDue(t *testing.T) {
	repo := sqlite.NewOutboxRepo(newTestStore(t), 3)
	ctx := context.Background()

	job, err := repo.Enqueue(ctx, testSubmission())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.ID == "" {
		t.Fatal("job id must be assigned")
	}
	if job.Status != outbound.JobPending {
		t.Errorf("status = %q", job.Status)
	}

	due, err := repo.Due(ctx, time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due = %d, want 1", len(due))
	}
	if due[0].ID != job.ID {
		t.Errorf("due id = %q, want %q", due[0].ID, job.ID)
	}
	if due[0].Submission != testSubmission() {
		t.Errorf("submission round-trip changed: %+v", due[0].Submission)
	}
}

func TestOutboxRepo_MarkDoneRemovesFromDue(t *testing.T) {
	repo := sqlite.NewOutboxRepo(newTestStore(t), 3)
	ctx := context.Background()

	job, err := repo.Enqueue(ctx, testSubmission())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := repo.MarkDone(ctx, job.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	due, err := repo.Due(ctx, time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("due = %d, want 0", len(due))
	}

	if err := repo.MarkDone(ctx, "missing"); err == nil {
		t.Error("expected error for unknown job id")
	}
}

func TestOutboxRepo_FailedJobRetriesAfterBackoff(t *testing.T) {
	repo := sqlite.NewOutboxRepo(newTestStore(t), 3)
	ctx := context.Background()

	job, err := repo.Enqueue(ctx, testSubmission())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	retryAt := time.Now().Add(time.Minute)
	if err := repo.MarkFailed(ctx, job.ID, "classifier timeout", retryAt); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	due, err := repo.Due(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Error("job must not be due before its retry time")
	}

	due, err = repo.Due(ctx, retryAt.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due = %d, want 1 after retry time", len(due))
	}
	if due[0].Attempts != 1 {
		t.Errorf("attempts = %d, want 1", due[0].Attempts)
	}
	if due[0].LastError != "classifier timeout" {
		t.Errorf("last error = %q", due[0].LastError)
	}
}

func TestOutboxRepo_ExhaustedJobIsDead(t *testing.T) {
	repo := sqlite.NewOutboxRepo(newTestStore(t), 2)
	ctx := context.Background()

	job, err := repo.Enqueue(ctx, testSubmission())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	if err := repo.MarkFailed(ctx, job.ID, "erro 1", past); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, job.ID, "erro 2", past); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	due, err := repo.Due(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Error("dead job must never be due again")
	}
}

func TestOutboxRepo_DueOrdersOldestFirstAndLimits(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewOutboxRepo(store, 3)
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, testSubmission())
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Force distinct created_at values; sqlite stores what we pass.
	if _, err := store.DB.Exec(`UPDATE triage_jobs SET created_at = ? WHERE id = ?`,
		time.Now().Add(-time.Hour).UTC(), first.ID); err != nil {
		t.Fatalf("backdating job: %v", err)
	}
	if _, err := repo.Enqueue(ctx, testSubmission()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	due, err := repo.Due(ctx, time.Now().Add(time.Second), 1)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("due = %d, want limited to 1", len(due))
	}
	if due[0].ID != first.ID {
		t.Errorf("due id = %q, want oldest job %q", due[0].ID, first.ID)
	}
}
