package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"homewatch/config"
	"homewatch/models"
)

// blockingRunner counts invocations and holds each run until released.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	runs    int32
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(ctx context.Context, initialRun bool) error {
	atomic.AddInt32(&r.runs, 1)
	r.started <- struct{}{}
	<-r.release
	return nil
}

func testScheduler(pipe PipelineRunner) *Scheduler {
	return New(&config.Config{}, pipe, nil)
}

func TestRunPipeline_SkipsWhileInFlight(t *testing.T) {
	runner := newBlockingRunner()
	s := testScheduler(runner)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.runPipeline(context.Background(), false); err != nil {
			t.Errorf("first run: %v", err)
		}
	}()
	<-runner.started

	// Both trigger surfaces firing mid-run must drop, not overlap.
	if err := s.runPipeline(context.Background(), true); err != nil {
		t.Fatalf("overlapping trigger: %v", err)
	}
	s.runScheduled(context.Background())
	if got := atomic.LoadInt32(&runner.runs); got != 1 {
		t.Fatalf("expected 1 pipeline invocation while in flight, got %d", got)
	}

	close(runner.release)
	<-done

	// Once the run finishes the next trigger goes through again.
	runner.release = make(chan struct{})
	close(runner.release)
	if err := s.runPipeline(context.Background(), false); err != nil {
		t.Fatalf("follow-up run: %v", err)
	}
	<-runner.started
	if got := atomic.LoadInt32(&runner.runs); got != 2 {
		t.Fatalf("expected the follow-up trigger to run, got %d invocations", got)
	}
}

func TestRunPipeline_ConcurrentTriggersRunOnce(t *testing.T) {
	runner := newBlockingRunner()
	s := testScheduler(runner)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.runPipeline(context.Background(), false)
		}()
	}

	<-runner.started
	close(runner.release)
	wg.Wait()

	if got := atomic.LoadInt32(&runner.runs); got != 1 {
		t.Fatalf("expected exactly 1 invocation from 8 concurrent triggers, got %d", got)
	}
}

type countingRunner struct {
	runs int32
}

func (r *countingRunner) Run(ctx context.Context, initialRun bool) error {
	atomic.AddInt32(&r.runs, 1)
	return nil
}

func TestPauseResume(t *testing.T) {
	runner := &countingRunner{}
	s := testScheduler(runner)

	if err := s.handleCommand(context.Background(), &models.Command{Command: models.CmdPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	s.runScheduled(context.Background())
	if got := atomic.LoadInt32(&runner.runs); got != 0 {
		t.Fatalf("paused scheduler must not run, got %d invocations", got)
	}

	if err := s.handleCommand(context.Background(), &models.Command{Command: models.CmdResume}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	s.runScheduled(context.Background())
	if got := atomic.LoadInt32(&runner.runs); got != 1 {
		t.Fatalf("resumed scheduler should run, got %d invocations", got)
	}
}

func TestPauseFlagRace(t *testing.T) {
	s := testScheduler(&countingRunner{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(v bool) {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				s.setPaused(v)
				_ = s.isPaused()
			}
		}(i%2 == 0)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pause flag accessors deadlocked")
	}
}
