package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := New()
	err := s.AddJob("bad", "not a cron spec", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestJobRunsOnSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a cron tick")
	}

	s := New()
	var runs atomic.Int64
	if err := s.AddJob("tick", "@every 100ms", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(20 * time.Millisecond):
		}
	}

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	if jobs[0].Status != JobStatusCompleted && jobs[0].Status != JobStatusRunning {
		t.Errorf("status = %s", jobs[0].Status)
	}
}

func TestFailedJobRecordsError(t *testing.T) {
	s := New()
	job := &Job{Name: "broken", Status: JobStatusPending}
	s.jobs[job.Name] = job

	s.run(job, func(ctx context.Context) error {
		return errors.New("upstream down")
	})

	if job.Status != JobStatusFailed {
		t.Errorf("status = %s", job.Status)
	}
	if job.Error != "upstream down" {
		t.Errorf("error = %q", job.Error)
	}
	if job.LastRunTime.IsZero() {
		t.Error("last run time not recorded")
	}
}

func TestSuccessfulJobClearsError(t *testing.T) {
	s := New()
	job := &Job{Name: "flaky", Status: JobStatusFailed, Error: "old failure"}
	s.jobs[job.Name] = job

	s.run(job, func(ctx context.Context) error { return nil })

	if job.Status != JobStatusCompleted {
		t.Errorf("status = %s", job.Status)
	}
	if job.Error != "" {
		t.Errorf("error = %q, want cleared", job.Error)
	}
}
