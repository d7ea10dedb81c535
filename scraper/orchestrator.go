package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"homewatch/config"
	"homewatch/keys"
	"homewatch/models"
)

// Ledger is the slice of the job ledger the orchestrator drives.
type Ledger interface {
	CreateJob(key, sourceID, sourceURL string, initialRun bool) error
	MarkReady(key string, resultCount int) error
	MarkFailed(key string) error
	IncrementAttempt(key string) error
	ListFailed(sourceID string) ([]models.FailedJob, error)
}

// ArtifactStore writes success and error payloads addressed by job key.
type ArtifactStore interface {
	PutResult(ctx context.Context, key string, payload *models.SearchResults, sourceTag string, initialRun bool) (string, error)
	PutError(ctx context.Context, key string, detail interface{}, sourceTag string) (string, error)
}

// Fetcher issues the outbound search request for one descriptor.
type Fetcher interface {
	Fetch(ctx context.Context, src *config.SourceConfig, tier config.ProxyTier) ([]models.ListingRecord, error)
}

// PassStats summarizes one orchestrator pass for run accounting.
type PassStats struct {
	JobsCreated int
	JobsReady   int
	JobsFailed  int
	RetriesRun  int
}

// Orchestrator drives the scrape and retry passes. Items are processed
// strictly sequentially with a random pause in a configured window between
// them; the pacing is part of the rate-limit contract with the remote source
// and must stay random.
type Orchestrator struct {
	cfg     *config.Config
	ledger  Ledger
	raw     ArtifactStore
	fetcher Fetcher
	sources SourceProvider

	newKey func() string
	sleep  func(ctx context.Context, d time.Duration)
	randFn func(n int64) int64
}

func NewOrchestrator(cfg *config.Config, ledger Ledger, raw ArtifactStore, fetcher Fetcher, sources SourceProvider) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		ledger:  ledger,
		raw:     raw,
		fetcher: fetcher,
		sources: sources,
		newKey:  keys.NewJobKey,
		sleep:   sleepCtx,
		randFn:  rand.Int63n,
	}
}

// Run performs one full scrape pass over the worklist. A nil worklist is
// fetched from the active sources provider. Per-item failures are recorded
// and skipped; only ledger unavailability aborts the pass.
func (o *Orchestrator) Run(ctx context.Context, initialRun bool, worklist []models.Source) (*PassStats, error) {
	stats := &PassStats{}

	if worklist == nil {
		var err error
		worklist, err = o.sources.ActiveSources(ctx)
		if err != nil {
			return stats, fmt.Errorf("active sources: %w", err)
		}
	}

	log.Printf("Scrape pass: %d sources (initial=%v)", len(worklist), initialRun)

	for i, src := range worklist {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key := o.newKey()
		if err := o.ledger.CreateJob(key, src.ID, src.URL, initialRun); err != nil {
			// Ledger down is fatal for the whole invocation.
			return stats, fmt.Errorf("register job for %s: %w", src.ID, err)
		}
		stats.JobsCreated++

		if o.scrapeOne(ctx, key, src, config.TierDatacenter, initialRun) {
			stats.JobsReady++
		} else {
			stats.JobsFailed++
		}

		if i < len(worklist)-1 {
			o.pause(ctx)
		}
	}

	log.Printf("Scrape pass done: %d ready, %d failed", stats.JobsReady, stats.JobsFailed)
	return stats, nil
}

// RunRetries re-drives failed jobs through the configured tier schedule.
// Each pass re-queries the failed worklist fresh, so jobs that succeed on an
// earlier pass drop out of later ones via the ledger's live status.
func (o *Orchestrator) RunRetries(ctx context.Context, initialRun bool) (*PassStats, error) {
	stats := &PassStats{}

	for _, pass := range o.cfg.Scraper.RetryPasses {
		for n := 0; n < pass.Count; n++ {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			failed, err := o.ledger.ListFailed("")
			if err != nil {
				return stats, fmt.Errorf("list failed jobs: %w", err)
			}
			if len(failed) == 0 {
				return stats, nil
			}

			log.Printf("Retry pass %d/%d on %s tier: %d jobs", n+1, pass.Count, pass.Tier, len(failed))

			for i, job := range failed {
				if err := ctx.Err(); err != nil {
					return stats, err
				}

				if err := o.ledger.IncrementAttempt(job.Key); err != nil {
					return stats, fmt.Errorf("increment attempt %s: %w", job.Key, err)
				}
				stats.RetriesRun++

				src := models.Source{ID: job.SourceID, URL: job.SourceURL}
				if o.scrapeOne(ctx, job.Key, src, pass.Tier, initialRun) {
					stats.JobsReady++
				} else {
					stats.JobsFailed++
				}

				if i < len(failed)-1 {
					o.pause(ctx)
				}
			}
		}
	}

	return stats, nil
}

// scrapeOne runs the fetch/store/ledger-update sequence for one job and
// reports whether it ended ready. Failures are isolated to the item.
func (o *Orchestrator) scrapeOne(ctx context.Context, key string, src models.Source, tier config.ProxyTier, initialRun bool) bool {
	desc, ok := o.cfg.Sources[src.ID]
	if !ok {
		log.Printf("No descriptor for source %s, failing job %s", src.ID, key)
		o.recordFailure(ctx, key, src.ID, &FetchDiagnostic{
			SourceID:  src.ID,
			Message:   "no saved-search descriptor configured",
			Timestamp: time.Now().UTC(),
		})
		return false
	}

	listings, err := o.fetcher.Fetch(ctx, desc, tier)
	if err != nil {
		log.Printf("Fetch error for %s (job %s): %v", src.ID, key, err)
		o.recordFailure(ctx, key, src.ID, diagnosticFor(err, src.ID))
		return false
	}

	// An empty result set is indistinguishable from a blocked or malformed
	// response at this layer, so it routes to the failed path and gets
	// another chance on a later retry tier.
	if len(listings) == 0 {
		log.Printf("Empty result set for %s (job %s), treating as fetch failure", src.ID, key)
		o.recordFailure(ctx, key, src.ID, &FetchDiagnostic{
			SourceID:  src.ID,
			Tier:      string(tier),
			Message:   "empty result set",
			Timestamp: time.Now().UTC(),
		})
		return false
	}

	payload := &models.SearchResults{
		SourceID:   src.ID,
		SourceURL:  src.URL,
		FetchedAt:  time.Now().UTC().Format(time.RFC3339),
		InitialRun: initialRun,
		Results:    listings,
	}

	if _, err := o.raw.PutResult(ctx, key, payload, src.ID, initialRun); err != nil {
		log.Printf("Raw store error for %s (job %s): %v", src.ID, key, err)
		if err := o.ledger.MarkFailed(key); err != nil {
			log.Printf("Ledger error marking %s failed: %v", key, err)
		}
		return false
	}

	if err := o.ledger.MarkReady(key, len(listings)); err != nil {
		log.Printf("Ledger error marking %s ready: %v", key, err)
		return false
	}

	log.Printf("Source %s: %d listings (job %s)", src.ID, len(listings), key)
	return true
}

func (o *Orchestrator) recordFailure(ctx context.Context, key, sourceID string, diag *FetchDiagnostic) {
	if err := o.ledger.MarkFailed(key); err != nil {
		log.Printf("Ledger error marking %s failed: %v", key, err)
	}
	if _, err := o.raw.PutError(ctx, key, diag, sourceID); err != nil {
		log.Printf("Raw store error writing diagnostic for %s: %v", key, err)
	}
}

func diagnosticFor(err error, sourceID string) *FetchDiagnostic {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Diagnostic
	}
	return &FetchDiagnostic{
		SourceID:  sourceID,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// pause sleeps a random duration drawn uniformly from the configured jitter
// window, returning early on cancellation.
func (o *Orchestrator) pause(ctx context.Context) {
	o.sleep(ctx, o.jitterDelay())
}

func (o *Orchestrator) jitterDelay() time.Duration {
	min, max := o.cfg.Scraper.JitterMin, o.cfg.Scraper.JitterMax
	if max <= min {
		return min
	}
	return min + time.Duration(o.randFn(int64(max-min)+1))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
