package models

import "encoding/json"

// Listing status indicators as they appear in search payloads. Transitions
// are monotonic in the domain: coming_soon -> for_sale -> pending.
const (
	ListingStatusComingSoon = "COMING_SOON"
	ListingStatusForSale    = "FOR_SALE"
	ListingStatusPending    = "PENDING"
)

// StatusRank orders listing statuses along the domain lifecycle. Unknown
// statuses rank below everything and are never recorded as transitions.
func StatusRank(status string) int {
	switch status {
	case ListingStatusComingSoon:
		return 1
	case ListingStatusForSale:
		return 2
	case ListingStatusPending:
		return 3
	}
	return 0
}

// ListingRecord is one map result from the remote search endpoint. Records
// without a ZPID are advertisement tiles and carry no listing data.
type ListingRecord struct {
	ZPID             string          `json:"zpid"`
	StatusType       string          `json:"statusType"`
	StatusText       string          `json:"statusText"`
	Price            string          `json:"price"`
	UnformattedPrice float64         `json:"unformattedPrice"`
	Address          string          `json:"address"`
	AddressStreet    string          `json:"addressStreet"`
	AddressCity      string          `json:"addressCity"`
	AddressState     string          `json:"addressState"`
	AddressZipcode   string          `json:"addressZipcode"`
	Beds             float64         `json:"beds"`
	Baths            float64         `json:"baths"`
	Area             int             `json:"area"`
	LatLong          LatLong         `json:"latLong"`
	DetailURL        string          `json:"detailUrl"`
	ImgSrc           string          `json:"imgSrc"`
	HdpData          json.RawMessage `json:"hdpData,omitempty"`
}

type LatLong struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchResults is the canonical success artifact written to the raw store.
type SearchResults struct {
	SourceID   string          `json:"source_id"`
	SourceURL  string          `json:"source_url"`
	FetchedAt  string          `json:"fetched_at"`
	InitialRun bool            `json:"initial_run"`
	Results    []ListingRecord `json:"results"`
}
