package services

import (
	"context"
	"fmt"
	"log"

	"homewatch/models"
)

// EnrichmentRepository is the property-store slice the enrichment trigger
// uses.
type EnrichmentRepository interface {
	FindUnenriched(ctx context.Context, limit int) ([]models.PropertyRecord, error)
	UpdateEnrichment(ctx context.Context, zpid string, res *models.EnrichmentResult) error
}

// EnrichmentLookup performs one third-party lookup per record.
type EnrichmentLookup interface {
	Lookup(ctx context.Context, record *models.PropertyRecord) (*models.EnrichmentResult, error)
}

type EnrichStats struct {
	Attempted int
	Enriched  int
	Skipped   int
}

// EnrichService selects records lacking third-party enrichment and maps the
// lookup results back onto them, one bounded batch per run.
type EnrichService struct {
	repo      EnrichmentRepository
	lookup    EnrichmentLookup
	batchSize int
}

func NewEnrichService(repo EnrichmentRepository, lookup EnrichmentLookup, batchSize int) *EnrichService {
	return &EnrichService{repo: repo, lookup: lookup, batchSize: batchSize}
}

func (s *EnrichService) Run(ctx context.Context) (*EnrichStats, error) {
	stats := &EnrichStats{}

	batch, err := s.repo.FindUnenriched(ctx, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("find unenriched: %w", err)
	}
	if len(batch) == 0 {
		log.Println("Enrich: nothing to do")
		return stats, nil
	}

	log.Printf("Enrich: %d records", len(batch))

	for i := range batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		record := &batch[i]
		stats.Attempted++

		res, err := s.lookup.Lookup(ctx, record)
		if err != nil {
			log.Printf("Warning: enrichment lookup for %s failed: %v", record.ZPID, err)
			stats.Skipped++
			continue
		}
		if res == nil || res.ZPID == "" {
			log.Printf("Warning: enrichment response for %s missing external id, skipping", record.ZPID)
			stats.Skipped++
			continue
		}

		if err := s.repo.UpdateEnrichment(ctx, record.ZPID, res); err != nil {
			log.Printf("Warning: enrichment write for %s failed: %v", record.ZPID, err)
			stats.Skipped++
			continue
		}
		stats.Enriched++
	}

	log.Printf("Enrich done: %d enriched, %d skipped", stats.Enriched, stats.Skipped)
	return stats, nil
}
