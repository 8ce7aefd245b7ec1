package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"arcana-reading-server/internal/domain"
	"arcana-reading-server/internal/domain/model"
	"arcana-reading-server/internal/infra/store"
)

func TestSweepWorkerRemovesOldTerminalJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := store.NewMemoryJobRepo()
	job := repo.Create(ctx, "sess-1", "q", "c", "single", []model.CardItem{{Name: "The Fool"}})
	_ = repo.Complete(ctx, job.ID, "")
	running := repo.Create(ctx, "sess-2", "q", "c", "single", []model.CardItem{{Name: "The Star"}})

	logger := zerolog.Nop()
	worker := NewSweepWorker(10*time.Millisecond, time.Nanosecond, repo, &logger)
	go func() { _ = worker.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := repo.Find(ctx, job.ID); errors.Is(err, domain.ErrJobNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("terminal job was never swept")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := repo.Find(ctx, running.ID); err != nil {
		t.Fatalf("processing job should survive the sweep: %v", err)
	}
}

func TestSweepWorkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := store.NewMemoryJobRepo()
	logger := zerolog.Nop()
	worker := NewSweepWorker(5*time.Millisecond, time.Hour, repo, &logger)

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}
