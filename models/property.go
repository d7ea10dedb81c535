package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyRecord is a stored observation of an external listing, identified
// by its stable external id (ZPID). Status timestamps are append-once: a set
// field is never overwritten and a later status never reverts to an earlier
// one.
type PropertyRecord struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	ZPID               string     `json:"zpid" db:"zpid"`
	SourceID           string     `json:"source_id" db:"source_id"`
	Address            string     `json:"address" db:"address"`
	City               string     `json:"city" db:"city"`
	State              string     `json:"state" db:"state"`
	Zipcode            string     `json:"zipcode" db:"zipcode"`
	Price              *float64   `json:"price" db:"price"`
	Beds               *float64   `json:"beds" db:"beds"`
	Baths              *float64   `json:"baths" db:"baths"`
	SqFt               *int       `json:"sqft" db:"sqft"`
	Lat                *float64   `json:"lat" db:"lat"`
	Lng                *float64   `json:"lng" db:"lng"`
	DetailURL          string     `json:"detail_url" db:"detail_url"`
	InitialObservation bool       `json:"initial_observation" db:"initial_observation"`
	ComingSoonAt       *time.Time `json:"coming_soon_at" db:"coming_soon_at"`
	ForSaleAt          *time.Time `json:"for_sale_at" db:"for_sale_at"`
	PendingAt          *time.Time `json:"pending_at" db:"pending_at"`
	FirstSeenAt        time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt         time.Time  `json:"last_seen_at" db:"last_seen_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`

	// Third-party enrichment fields, populated by the enrichment trigger.
	RealtorName   string     `json:"realtor_name" db:"realtor_name"`
	RealtorPhone  string     `json:"realtor_phone" db:"realtor_phone"`
	BrokerageName string     `json:"brokerage_name" db:"brokerage_name"`
	EnrichedAt    *time.Time `json:"enriched_at" db:"enriched_at"`
}

// StatusTimestamp returns the recorded timestamp for a listing status, or nil
// when the status has not been observed for this record.
func (p *PropertyRecord) StatusTimestamp(status string) *time.Time {
	switch status {
	case ListingStatusComingSoon:
		return p.ComingSoonAt
	case ListingStatusForSale:
		return p.ForSaleAt
	case ListingStatusPending:
		return p.PendingAt
	}
	return nil
}

// HighestRecordedRank returns the rank of the furthest status already
// recorded on this record, or 0 when none is set.
func (p *PropertyRecord) HighestRecordedRank() int {
	rank := 0
	if p.ComingSoonAt != nil {
		rank = StatusRank(ListingStatusComingSoon)
	}
	if p.ForSaleAt != nil {
		rank = StatusRank(ListingStatusForSale)
	}
	if p.PendingAt != nil {
		rank = StatusRank(ListingStatusPending)
	}
	return rank
}

// EnrichmentResult carries the third-party fields returned by one lookup.
type EnrichmentResult struct {
	ZPID          string   `json:"zpid"`
	RealtorName   string   `json:"realtor_name"`
	RealtorPhone  string   `json:"realtor_phone"`
	BrokerageName string   `json:"brokerage_name"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
}
