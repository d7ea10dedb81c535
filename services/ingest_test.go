package services

import (
	"context"
	"testing"
	"time"

	"homewatch/models"
	"homewatch/storage"
)

type fakeJobLedger struct {
	ready    []models.ReadyJob
	consumed map[string]bool
}

func newFakeJobLedger(jobs ...models.ReadyJob) *fakeJobLedger {
	return &fakeJobLedger{ready: jobs, consumed: map[string]bool{}}
}

func (l *fakeJobLedger) ListReadyUnconsumed(initialRun bool) ([]models.ReadyJob, error) {
	var out []models.ReadyJob
	for _, j := range l.ready {
		if !l.consumed[j.Key] {
			out = append(out, j)
		}
	}
	return out, nil
}

func (l *fakeJobLedger) MarkConsumed(key string) error {
	l.consumed[key] = true
	return nil
}

type fakeResultStore struct {
	payloads map[string]*models.SearchResults
	errs     map[string]error
}

func (r *fakeResultStore) GetResult(ctx context.Context, key string) (*models.SearchResults, error) {
	if err, ok := r.errs[key]; ok {
		return nil, err
	}
	if p, ok := r.payloads[key]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

type fakePropertyRepo struct {
	records map[string]*models.PropertyRecord

	creates     int
	transitions int
	touches     int
}

func newFakePropertyRepo() *fakePropertyRepo {
	return &fakePropertyRepo{records: map[string]*models.PropertyRecord{}}
}

func (r *fakePropertyRepo) CreateProperty(ctx context.Context, p *models.PropertyRecord) error {
	r.creates++
	if _, ok := r.records[p.ZPID]; ok {
		// Upsert semantics: descriptive refresh only, timestamps untouched.
		return nil
	}
	cp := *p
	r.records[p.ZPID] = &cp
	return nil
}

func (r *fakePropertyRepo) FindByExternalID(ctx context.Context, zpid string) (*models.PropertyRecord, error) {
	p, ok := r.records[zpid]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *fakePropertyRepo) RecordStatusTransition(ctx context.Context, zpid, status string, observedAt time.Time) error {
	r.transitions++
	p, ok := r.records[zpid]
	if !ok {
		return nil
	}
	ts := observedAt
	switch status {
	case models.ListingStatusComingSoon:
		if p.ComingSoonAt == nil {
			p.ComingSoonAt = &ts
		}
	case models.ListingStatusForSale:
		if p.ForSaleAt == nil {
			p.ForSaleAt = &ts
		}
	case models.ListingStatusPending:
		if p.PendingAt == nil {
			p.PendingAt = &ts
		}
	}
	return nil
}

func (r *fakePropertyRepo) TouchLastSeen(ctx context.Context, zpid string, seenAt time.Time) error {
	r.touches++
	if p, ok := r.records[zpid]; ok {
		p.LastSeenAt = seenAt
	}
	return nil
}

func payloadFor(fetchedAt time.Time, results ...models.ListingRecord) *models.SearchResults {
	return &models.SearchResults{
		SourceID:  "austin_tx_core",
		SourceURL: "https://example.com/austin",
		FetchedAt: fetchedAt.Format(time.RFC3339),
		Results:   results,
	}
}

func TestIngest_NewPropertySeedsStatusTimestamp(t *testing.T) {
	observed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	ledger := newFakeJobLedger(models.ReadyJob{Key: "job1", SourceID: "austin_tx_core"})
	raw := &fakeResultStore{payloads: map[string]*models.SearchResults{
		"job1": payloadFor(observed, models.ListingRecord{
			ZPID:             "44331234",
			StatusType:       models.ListingStatusForSale,
			Address:          "1200 Example Dr, Austin, TX 78701",
			AddressCity:      "Austin",
			AddressState:     "TX",
			AddressZipcode:   "78701",
			UnformattedPrice: 550000,
			Beds:             3,
			Baths:            2,
			Area:             1820,
		}),
	}}
	props := newFakePropertyRepo()

	svc := NewIngestService(ledger, raw, props)
	stats, err := svc.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.PropertiesNew != 1 || stats.JobsConsumed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rec := props.records["44331234"]
	if rec == nil {
		t.Fatal("property not created")
	}
	if rec.ForSaleAt == nil || !rec.ForSaleAt.Equal(observed) {
		t.Fatalf("for-sale timestamp not seeded: %+v", rec.ForSaleAt)
	}
	if rec.ComingSoonAt != nil || rec.PendingAt != nil {
		t.Fatal("only the observed status should be seeded")
	}
	if !rec.InitialObservation {
		t.Fatal("first sighting should be flagged as initial observation")
	}
	if rec.Price == nil || *rec.Price != 550000 {
		t.Fatalf("price not carried: %+v", rec.Price)
	}
}

func TestIngest_ForwardTransitionRecordedOnce(t *testing.T) {
	t0 := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	ledger := newFakeJobLedger(
		models.ReadyJob{Key: "job1", SourceID: "austin_tx_core"},
		models.ReadyJob{Key: "job2", SourceID: "austin_tx_core"},
	)
	raw := &fakeResultStore{payloads: map[string]*models.SearchResults{
		"job1": payloadFor(t0, models.ListingRecord{ZPID: "44331234", StatusType: models.ListingStatusForSale}),
		"job2": payloadFor(t1, models.ListingRecord{ZPID: "44331234", StatusType: models.ListingStatusPending}),
	}}
	props := newFakePropertyRepo()

	svc := NewIngestService(ledger, raw, props)
	stats, err := svc.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.PropertiesNew != 1 || stats.Transitions != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rec := props.records["44331234"]
	if rec.ForSaleAt == nil || !rec.ForSaleAt.Equal(t0) {
		t.Fatalf("for-sale timestamp wrong: %+v", rec.ForSaleAt)
	}
	if rec.PendingAt == nil || !rec.PendingAt.Equal(t1) {
		t.Fatalf("pending timestamp wrong: %+v", rec.PendingAt)
	}
}

func TestIngest_NoStatusRegression(t *testing.T) {
	t0 := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	ledger := newFakeJobLedger(
		models.ReadyJob{Key: "job1", SourceID: "austin_tx_core"},
		models.ReadyJob{Key: "job2", SourceID: "austin_tx_core"},
	)
	raw := &fakeResultStore{payloads: map[string]*models.SearchResults{
		"job1": payloadFor(t0, models.ListingRecord{ZPID: "44331234", StatusType: models.ListingStatusPending}),
		"job2": payloadFor(t1, models.ListingRecord{ZPID: "44331234", StatusType: models.ListingStatusForSale}),
	}}
	props := newFakePropertyRepo()

	svc := NewIngestService(ledger, raw, props)
	stats, err := svc.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Transitions != 0 {
		t.Fatalf("a backward status must not record a transition: %+v", stats)
	}

	rec := props.records["44331234"]
	if rec.ForSaleAt != nil {
		t.Fatal("for-sale timestamp must not be set after pending was recorded")
	}
	if rec.PendingAt == nil || !rec.PendingAt.Equal(t0) {
		t.Fatalf("pending timestamp changed: %+v", rec.PendingAt)
	}
	if !rec.LastSeenAt.Equal(t1) {
		t.Fatalf("observation time not refreshed: %+v", rec.LastSeenAt)
	}
}

func TestIngest_ReprocessingIsIdempotent(t *testing.T) {
	observed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	payload := payloadFor(observed,
		models.ListingRecord{ZPID: "44331234", StatusType: models.ListingStatusForSale},
		models.ListingRecord{ZPID: "44335678", StatusType: models.ListingStatusPending},
	)

	raw := &fakeResultStore{payloads: map[string]*models.SearchResults{"job1": payload}}
	props := newFakePropertyRepo()
	svc := NewIngestService(newFakeJobLedger(models.ReadyJob{Key: "job1"}), raw, props)

	if _, err := svc.Run(context.Background(), false); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Same payload arriving again under a fresh job must change nothing.
	raw.payloads["job2"] = payload
	svc = NewIngestService(newFakeJobLedger(models.ReadyJob{Key: "job2"}), raw, props)
	stats, err := svc.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.PropertiesNew != 0 || stats.Transitions != 0 {
		t.Fatalf("re-ingest must be a no-op: %+v", stats)
	}
	if len(props.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(props.records))
	}
}

func TestIngest_MissingExternalIDSkipped(t *testing.T) {
	observed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	ledger := newFakeJobLedger(models.ReadyJob{Key: "job1"})
	raw := &fakeResultStore{payloads: map[string]*models.SearchResults{
		"job1": payloadFor(observed,
			models.ListingRecord{ZPID: "", StatusText: "Advertisement"},
			models.ListingRecord{ZPID: "44331234", StatusType: models.ListingStatusForSale},
		),
	}}
	props := newFakePropertyRepo()

	svc := NewIngestService(ledger, raw, props)
	stats, err := svc.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.NoIDSkipped != 1 {
		t.Fatalf("expected 1 id-less skip, got %d", stats.NoIDSkipped)
	}
	if stats.PropertiesNew != 1 || len(props.records) != 1 {
		t.Fatalf("only the identified listing should land: %+v", stats)
	}
	if stats.JobsConsumed != 1 {
		t.Fatal("the skip must not block consumption")
	}
}

func TestIngest_CorruptPayloadLeavesJobUnconsumed(t *testing.T) {
	observed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	ledger := newFakeJobLedger(
		models.ReadyJob{Key: "bad"},
		models.ReadyJob{Key: "good"},
	)
	raw := &fakeResultStore{
		payloads: map[string]*models.SearchResults{
			"good": payloadFor(observed, models.ListingRecord{ZPID: "44331234", StatusType: models.ListingStatusForSale}),
		},
		errs: map[string]error{"bad": storage.ErrCorruptPayload},
	}
	props := newFakePropertyRepo()

	svc := NewIngestService(ledger, raw, props)
	stats, err := svc.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.JobsSkipped != 1 || stats.JobsConsumed != 1 {
		t.Fatalf("corrupt payload should skip its job only: %+v", stats)
	}
	if ledger.consumed["bad"] {
		t.Fatal("corrupt job must stay unconsumed")
	}
	if !ledger.consumed["good"] {
		t.Fatal("healthy job should be consumed")
	}
}

func TestIngest_EmptyWorklistIsNormal(t *testing.T) {
	svc := NewIngestService(newFakeJobLedger(), &fakeResultStore{}, newFakePropertyRepo())
	stats, err := svc.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.JobsConsumed != 0 || stats.ListingsSeen != 0 {
		t.Fatalf("expected a no-op pass, got %+v", stats)
	}
}
