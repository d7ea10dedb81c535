package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"homewatch/config"
	"homewatch/models"
	"homewatch/pipeline"
	"homewatch/storage"
)

// PipelineRunner is the pipeline surface the scheduler drives.
type PipelineRunner interface {
	Run(ctx context.Context, initialRun bool) error
}

// Scheduler owns the daemon's two trigger surfaces: the recurring schedule
// (cron or fixed interval) and the polled command queue an external process
// enqueues run requests into. The pipeline is a single logical worker: while
// one invocation is in flight every other trigger is skipped, never queued.
type Scheduler struct {
	cfg    *config.Config
	pipe   PipelineRunner
	ledger *storage.LedgerStore
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}

	mu      sync.Mutex
	paused  bool
	running bool
}

var _ PipelineRunner = (*pipeline.Pipeline)(nil)

func New(cfg *config.Config, pipe PipelineRunner, ledger *storage.LedgerStore) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		pipe:   pipe,
		ledger: ledger,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runScheduled(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runScheduled(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// runPipeline is the single entry point both trigger surfaces go through. A
// trigger arriving while a run is in flight is dropped with a log line; the
// next schedule tick or command picks the work up again.
func (s *Scheduler) runPipeline(ctx context.Context, initialRun bool) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Println("Pipeline already running, skipping trigger")
		return nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return s.pipe.Run(ctx, initialRun)
}

func (s *Scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) setPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if s.isPaused() {
		log.Println("Pipeline is paused, skipping scheduled run")
		return
	}
	// Scheduled runs are always incremental; the bulk mode is command-only.
	if err := s.runPipeline(ctx, false); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.ledger.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				if err := s.handleCommand(ctx, &cmd); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.ledger.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRunPipeline:
		if s.isPaused() {
			log.Println("Pipeline is paused, ignoring run command")
			return nil
		}
		params, err := s.ledger.ParseCommandParams(cmd)
		if err != nil {
			return err
		}
		return s.runPipeline(ctx, params.Initial)
	case models.CmdPause:
		s.setPaused(true)
		log.Println("Pipeline paused")
	case models.CmdResume:
		s.setPaused(false)
		log.Println("Pipeline resumed")
	}
	return nil
}
