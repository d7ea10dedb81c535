package pipeline

import (
	"context"
	"log"
	"time"

	"homewatch/models"
	"homewatch/scraper"
	"homewatch/services"
)

// RunRecorder persists per-invocation accounting records.
type RunRecorder interface {
	CreateRun(run *models.PipelineRun) (int64, error)
	UpdateRun(run *models.PipelineRun) error
}

// Pipeline drives one full invocation: scrape pass, then tiered retry
// passes, then ingestion, then enrichment, on a single logical worker.
// Per-item failures stay inside their stage; an error escaping a stage means
// its backing storage is unavailable and aborts the invocation.
type Pipeline struct {
	orch    *scraper.Orchestrator
	ingest  *services.IngestService
	enrich  *services.EnrichService
	records RunRecorder
}

func New(orch *scraper.Orchestrator, ingest *services.IngestService, enrich *services.EnrichService, records RunRecorder) *Pipeline {
	return &Pipeline{orch: orch, ingest: ingest, enrich: enrich, records: records}
}

// Run executes the whole pipeline once. The initial flag selects the
// one-time bulk mode over the recurring incremental mode.
func (p *Pipeline) Run(ctx context.Context, initialRun bool) error {
	run := &models.PipelineRun{
		InitialRun: initialRun,
		StartedAt:  time.Now().UTC(),
		Status:     models.RunStatusRunning,
	}

	if p.records != nil {
		id, err := p.records.CreateRun(run)
		if err != nil {
			log.Printf("Warning: could not create run record: %v", err)
		} else {
			run.ID = id
		}
	}

	var runErr error
	defer func() {
		now := time.Now().UTC()
		run.FinishedAt = &now
		run.Status = models.RunStatusCompleted
		if runErr != nil {
			run.Status = models.RunStatusFailed
		}
		if p.records != nil && run.ID != 0 {
			if err := p.records.UpdateRun(run); err != nil {
				log.Printf("Warning: could not update run record: %v", err)
			}
		}
	}()

	log.Printf("Pipeline start (initial=%v)", initialRun)

	scrapeStats, err := p.orch.Run(ctx, initialRun, nil)
	p.applyScrapeStats(run, scrapeStats)
	if err != nil {
		runErr = err
		return err
	}

	retryStats, err := p.orch.RunRetries(ctx, initialRun)
	p.applyScrapeStats(run, retryStats)
	if err != nil {
		runErr = err
		return err
	}

	ingestStats, err := p.ingest.Run(ctx, initialRun)
	if ingestStats != nil {
		run.ListingsSeen += ingestStats.ListingsSeen
		run.PropertiesNew += ingestStats.PropertiesNew
		run.Transitions += ingestStats.Transitions
		run.ErrorsCount += ingestStats.Errors
	}
	if err != nil {
		runErr = err
		return err
	}

	enrichStats, err := p.enrich.Run(ctx)
	if enrichStats != nil {
		run.Enriched += enrichStats.Enriched
	}
	if err != nil {
		runErr = err
		return err
	}

	log.Printf("Pipeline done: %d jobs created, %d ready, %d failed, %d retries, %d new properties, %d transitions, %d enriched",
		run.JobsCreated, run.JobsReady, run.JobsFailed, run.RetriesRun,
		run.PropertiesNew, run.Transitions, run.Enriched)
	return nil
}

func (p *Pipeline) applyScrapeStats(run *models.PipelineRun, stats *scraper.PassStats) {
	if stats == nil {
		return
	}
	run.JobsCreated += stats.JobsCreated
	run.JobsReady += stats.JobsReady
	run.JobsFailed += stats.JobsFailed
	run.RetriesRun += stats.RetriesRun
}
