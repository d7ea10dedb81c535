package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"homewatch/models"
)

// PropertyStore is the PropertyRecord repository collaborator, backed by
// Postgres.
type PropertyStore struct {
	pool *pgxpool.Pool
}

func NewPropertyStore(ctx context.Context, connString string) (*PropertyStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PropertyStore{pool: pool}, nil
}

func (s *PropertyStore) Close() {
	s.pool.Close()
}

const propertyColumns = `
	id, zpid, source_id, address, city, state, zipcode, price, beds, baths,
	sqft, lat, lng, detail_url, initial_observation, coming_soon_at,
	for_sale_at, pending_at, first_seen_at, last_seen_at, created_at,
	updated_at, realtor_name, realtor_phone, brokerage_name, enriched_at`

func scanProperty(row pgx.Row) (*models.PropertyRecord, error) {
	var p models.PropertyRecord
	err := row.Scan(
		&p.ID, &p.ZPID, &p.SourceID, &p.Address, &p.City, &p.State, &p.Zipcode,
		&p.Price, &p.Beds, &p.Baths, &p.SqFt, &p.Lat, &p.Lng, &p.DetailURL,
		&p.InitialObservation, &p.ComingSoonAt, &p.ForSaleAt, &p.PendingAt,
		&p.FirstSeenAt, &p.LastSeenAt, &p.CreatedAt, &p.UpdatedAt,
		&p.RealtorName, &p.RealtorPhone, &p.BrokerageName, &p.EnrichedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProperty inserts a record for a newly observed external id. Safe to
// re-run for the same ZPID: a conflict only refreshes last-seen and the
// mutable descriptive fields, never the status timestamps.
func (s *PropertyStore) CreateProperty(ctx context.Context, p *models.PropertyRecord) error {
	query := `
		INSERT INTO properties (
			id, zpid, source_id, address, city, state, zipcode, price, beds, baths,
			sqft, lat, lng, detail_url, initial_observation, coming_soon_at,
			for_sale_at, pending_at, first_seen_at, last_seen_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (zpid) DO UPDATE SET
			price = COALESCE(EXCLUDED.price, properties.price),
			beds = COALESCE(EXCLUDED.beds, properties.beds),
			baths = COALESCE(EXCLUDED.baths, properties.baths),
			sqft = COALESCE(EXCLUDED.sqft, properties.sqft),
			lat = COALESCE(EXCLUDED.lat, properties.lat),
			lng = COALESCE(EXCLUDED.lng, properties.lng),
			detail_url = COALESCE(NULLIF(EXCLUDED.detail_url, ''), properties.detail_url),
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = NOW()
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		p.ID, p.ZPID, p.SourceID, p.Address, p.City, p.State, p.Zipcode, p.Price, p.Beds, p.Baths,
		p.SqFt, p.Lat, p.Lng, p.DetailURL, p.InitialObservation, p.ComingSoonAt,
		p.ForSaleAt, p.PendingAt, p.FirstSeenAt, p.LastSeenAt, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

// FindByExternalID looks a record up by its stable external listing id.
// Returns nil when unknown.
func (s *PropertyStore) FindByExternalID(ctx context.Context, zpid string) (*models.PropertyRecord, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE zpid = $1`
	return scanProperty(s.pool.QueryRow(ctx, query, zpid))
}

// RecordStatusTransition appends the timestamp for one listing status,
// leaving an already-set timestamp untouched.
func (s *PropertyStore) RecordStatusTransition(ctx context.Context, zpid, status string, observedAt time.Time) error {
	var column string
	switch status {
	case models.ListingStatusComingSoon:
		column = "coming_soon_at"
	case models.ListingStatusForSale:
		column = "for_sale_at"
	case models.ListingStatusPending:
		column = "pending_at"
	default:
		return fmt.Errorf("unknown listing status %q", status)
	}

	query := fmt.Sprintf(`
		UPDATE properties SET %s = $2, last_seen_at = $2, updated_at = NOW()
		WHERE zpid = $1 AND %s IS NULL`, column, column)

	_, err := s.pool.Exec(ctx, query, zpid, observedAt)
	return err
}

// TouchLastSeen refreshes the last observation time without changing
// anything else.
func (s *PropertyStore) TouchLastSeen(ctx context.Context, zpid string, seenAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE properties SET last_seen_at = $2, updated_at = NOW() WHERE zpid = $1`,
		zpid, seenAt)
	return err
}

// FindUnenriched returns a bounded batch of records still missing
// third-party enrichment.
func (s *PropertyStore) FindUnenriched(ctx context.Context, limit int) ([]models.PropertyRecord, error) {
	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE enriched_at IS NULL AND detail_url <> ''
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PropertyRecord
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *p)
	}
	return records, rows.Err()
}

// UpdateEnrichment maps the third-party fields onto the record and stamps it
// enriched.
func (s *PropertyStore) UpdateEnrichment(ctx context.Context, zpid string, res *models.EnrichmentResult) error {
	query := `
		UPDATE properties SET
			realtor_name = COALESCE(NULLIF($2, ''), realtor_name),
			realtor_phone = COALESCE(NULLIF($3, ''), realtor_phone),
			brokerage_name = COALESCE(NULLIF($4, ''), brokerage_name),
			lat = COALESCE($5, lat),
			lng = COALESCE($6, lng),
			enriched_at = NOW(),
			updated_at = NOW()
		WHERE zpid = $1`

	_, err := s.pool.Exec(ctx, query,
		zpid, res.RealtorName, res.RealtorPhone, res.BrokerageName, res.Lat, res.Lng)
	return err
}
