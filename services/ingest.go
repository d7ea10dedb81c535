package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"homewatch/models"
	"homewatch/storage"
)

// JobLedger is the slice of the ledger the ingestion engine consumes.
type JobLedger interface {
	ListReadyUnconsumed(initialRun bool) ([]models.ReadyJob, error)
	MarkConsumed(key string) error
}

// ResultStore reads back success artifacts by job key.
type ResultStore interface {
	GetResult(ctx context.Context, key string) (*models.SearchResults, error)
}

// PropertyRepository is the external PropertyRecord collaborator interface.
type PropertyRepository interface {
	CreateProperty(ctx context.Context, p *models.PropertyRecord) error
	FindByExternalID(ctx context.Context, zpid string) (*models.PropertyRecord, error)
	RecordStatusTransition(ctx context.Context, zpid, status string, observedAt time.Time) error
	TouchLastSeen(ctx context.Context, zpid string, seenAt time.Time) error
}

// IngestStats summarizes one ingestion pass.
type IngestStats struct {
	JobsConsumed  int
	JobsSkipped   int
	ListingsSeen  int
	NoIDSkipped   int
	PropertiesNew int
	Transitions   int
	Errors        int
}

// IngestService reconciles ready raw payloads against the property store.
// Re-processing a payload is idempotent, so a crash mid-job is safe: the job
// stays unconsumed and the next pass upserts the same listings again.
type IngestService struct {
	ledger JobLedger
	raw    ResultStore
	props  PropertyRepository
}

func NewIngestService(ledger JobLedger, raw ResultStore, props PropertyRepository) *IngestService {
	return &IngestService{ledger: ledger, raw: raw, props: props}
}

// Run folds every ready-unconsumed payload for the requested mode into the
// property store. An empty worklist is a normal outcome, not an error.
func (s *IngestService) Run(ctx context.Context, initialRun bool) (*IngestStats, error) {
	stats := &IngestStats{}

	jobs, err := s.ledger.ListReadyUnconsumed(initialRun)
	if err != nil {
		return stats, fmt.Errorf("list ready jobs: %w", err)
	}
	if len(jobs) == 0 {
		log.Println("Ingest: nothing to do")
		return stats, nil
	}

	log.Printf("Ingest: %d ready jobs (initial=%v)", len(jobs), initialRun)

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if err := s.ingestJob(ctx, job, stats); err != nil {
			// Per-job failures are isolated; the job stays unconsumed for
			// manual inspection and the pass moves on.
			log.Printf("Ingest: job %s: %v", job.Key, err)
			stats.JobsSkipped++
			continue
		}

		if err := s.ledger.MarkConsumed(job.Key); err != nil {
			return stats, fmt.Errorf("mark consumed %s: %w", job.Key, err)
		}
		stats.JobsConsumed++
	}

	log.Printf("Ingest done: %d consumed, %d skipped, %d new properties, %d transitions",
		stats.JobsConsumed, stats.JobsSkipped, stats.PropertiesNew, stats.Transitions)
	return stats, nil
}

func (s *IngestService) ingestJob(ctx context.Context, job models.ReadyJob, stats *IngestStats) error {
	payload, err := s.raw.GetResult(ctx, job.Key)
	if err != nil {
		if errors.Is(err, storage.ErrCorruptPayload) || errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("fetch payload: %w", err)
	}

	observedAt := payloadTime(payload, job)

	var listingErrs int
	for _, listing := range payload.Results {
		stats.ListingsSeen++

		// Records without an external id are advertisement noise.
		if listing.ZPID == "" {
			stats.NoIDSkipped++
			continue
		}

		if err := s.reconcile(ctx, job.SourceID, &listing, observedAt, stats); err != nil {
			log.Printf("Ingest: listing %s: %v", listing.ZPID, err)
			stats.Errors++
			listingErrs++
		}
	}

	// A job is consumed only after every listing landed; otherwise it stays
	// ready for the next pass to re-run the (idempotent) upserts.
	if listingErrs > 0 {
		return fmt.Errorf("%d listings failed, leaving job unconsumed", listingErrs)
	}
	return nil
}

// reconcile applies one listing record to the property store: insert when
// unknown, otherwise record the forward status transition the payload newly
// indicates. Transitions are monotonic; an already-set status timestamp is
// never touched and a later status never reverts.
func (s *IngestService) reconcile(ctx context.Context, sourceID string, listing *models.ListingRecord, observedAt time.Time, stats *IngestStats) error {
	existing, err := s.props.FindByExternalID(ctx, listing.ZPID)
	if err != nil {
		return fmt.Errorf("find property: %w", err)
	}

	if existing == nil {
		record := newPropertyRecord(sourceID, listing, observedAt)
		if err := s.props.CreateProperty(ctx, record); err != nil {
			return fmt.Errorf("create property: %w", err)
		}
		stats.PropertiesNew++
		return nil
	}

	status := listing.StatusType
	incoming := models.StatusRank(status)
	if incoming == 0 {
		// Unknown status indicator; just refresh the observation time.
		return s.props.TouchLastSeen(ctx, listing.ZPID, observedAt)
	}

	if existing.StatusTimestamp(status) != nil {
		// Already recorded; nothing new applies.
		return s.props.TouchLastSeen(ctx, listing.ZPID, observedAt)
	}

	if incoming <= existing.HighestRecordedRank() {
		// The payload indicates an earlier lifecycle stage than what is
		// already on record; forward transitions only.
		return s.props.TouchLastSeen(ctx, listing.ZPID, observedAt)
	}

	if err := s.props.RecordStatusTransition(ctx, listing.ZPID, status, observedAt); err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	stats.Transitions++
	return nil
}

func newPropertyRecord(sourceID string, listing *models.ListingRecord, observedAt time.Time) *models.PropertyRecord {
	record := &models.PropertyRecord{
		ID:                 uuid.New(),
		ZPID:               listing.ZPID,
		SourceID:           sourceID,
		Address:            listing.Address,
		City:               listing.AddressCity,
		State:              listing.AddressState,
		Zipcode:            listing.AddressZipcode,
		DetailURL:          listing.DetailURL,
		InitialObservation: true,
		FirstSeenAt:        observedAt,
		LastSeenAt:         observedAt,
		CreatedAt:          observedAt,
		UpdatedAt:          observedAt,
	}

	if listing.UnformattedPrice > 0 {
		price := listing.UnformattedPrice
		record.Price = &price
	}
	if listing.Beds > 0 {
		beds := listing.Beds
		record.Beds = &beds
	}
	if listing.Baths > 0 {
		baths := listing.Baths
		record.Baths = &baths
	}
	if listing.Area > 0 {
		area := listing.Area
		record.SqFt = &area
	}
	if listing.LatLong.Latitude != 0 || listing.LatLong.Longitude != 0 {
		lat, lng := listing.LatLong.Latitude, listing.LatLong.Longitude
		record.Lat = &lat
		record.Lng = &lng
	}

	// The first observation also seeds the status timestamp that applies.
	ts := observedAt
	switch listing.StatusType {
	case models.ListingStatusComingSoon:
		record.ComingSoonAt = &ts
	case models.ListingStatusForSale:
		record.ForSaleAt = &ts
	case models.ListingStatusPending:
		record.PendingAt = &ts
	}

	return record
}

func payloadTime(payload *models.SearchResults, job models.ReadyJob) time.Time {
	if t, err := time.Parse(time.RFC3339, payload.FetchedAt); err == nil {
		return t
	}
	if !job.CreatedAt.IsZero() {
		return job.CreatedAt
	}
	return time.Now().UTC()
}
