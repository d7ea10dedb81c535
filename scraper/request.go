package scraper

import "homewatch/config"

// SearchRequest is the JSON body expected by the remote search endpoint. The
// wants directive requests map-result data only.
type SearchRequest struct {
	SearchQueryState SearchQueryState `json:"searchQueryState"`
	Wants            Wants            `json:"wants"`
	RequestID        int              `json:"requestId"`
}

type SearchQueryState struct {
	Pagination      Pagination        `json:"pagination"`
	UsersSearchTerm string            `json:"usersSearchTerm"`
	MapBounds       MapBounds         `json:"mapBounds"`
	MapZoom         int               `json:"mapZoom"`
	RegionSelection []RegionSelection `json:"regionSelection"`
	IsMapVisible    bool              `json:"isMapVisible"`
	IsListVisible   bool              `json:"isListVisible"`
	FilterState     FilterState       `json:"filterState"`
}

type Pagination struct {
	CurrentPage int `json:"currentPage"`
}

type MapBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

type RegionSelection struct {
	RegionID   int `json:"regionId"`
	RegionType int `json:"regionType"`
}

// FilterState enumerates every filter the pipeline ever sends. The endpoint
// wraps each scalar in a value object.
type FilterState struct {
	Price            *RangeValue `json:"price,omitempty"`
	SortSelection    StringValue `json:"sortSelection"`
	IsForSaleByAgent BoolValue   `json:"isForSaleByAgent"`
	IsForSaleByOwner BoolValue   `json:"isForSaleByOwner"`
	IsComingSoon     BoolValue   `json:"isComingSoon"`
	IsAuction        BoolValue   `json:"isAuction"`
	IsForeclosure    BoolValue   `json:"isForSaleForeclosure"`
	IsNewConstruct   BoolValue   `json:"isNewConstruction"`
}

type RangeValue struct {
	Min int `json:"min,omitempty"`
	Max int `json:"max,omitempty"`
}

type StringValue struct {
	Value string `json:"value"`
}

type BoolValue struct {
	Value bool `json:"value"`
}

type Wants struct {
	Cat1 []string `json:"cat1"`
}

// BuildSearchRequest transforms a saved-search descriptor into the remote
// endpoint's request shape. Pure: same descriptor in, same request out, with
// every absent filter resolved to its documented default.
func BuildSearchRequest(src *config.SourceConfig) SearchRequest {
	eff := src.Filter.Effective()

	state := SearchQueryState{
		Pagination:      Pagination{CurrentPage: 1},
		UsersSearchTerm: src.Region.SearchTerm,
		MapBounds: MapBounds{
			North: src.Region.LatMax,
			South: src.Region.LatMin,
			East:  src.Region.LngMax,
			West:  src.Region.LngMin,
		},
		MapZoom:       src.Region.Zoom,
		IsMapVisible:  true,
		IsListVisible: false,
		FilterState: FilterState{
			SortSelection:    StringValue{Value: eff.SortOrder},
			IsForSaleByAgent: BoolValue{Value: eff.ForSaleByAgent},
			IsForSaleByOwner: BoolValue{Value: eff.ForSaleByOwner},
			IsComingSoon:     BoolValue{Value: eff.ComingSoon},
			IsAuction:        BoolValue{Value: eff.Auctions},
			IsForeclosure:    BoolValue{Value: eff.Foreclosures},
			IsNewConstruct:   BoolValue{Value: eff.NewConstruction},
		},
	}

	if src.Region.RegionID != 0 {
		state.RegionSelection = []RegionSelection{{
			RegionID:   src.Region.RegionID,
			RegionType: src.Region.RegionType,
		}}
	}

	if eff.PriceMin > 0 || eff.PriceMax > 0 {
		state.FilterState.Price = &RangeValue{Min: eff.PriceMin, Max: eff.PriceMax}
	}

	return SearchRequest{
		SearchQueryState: state,
		Wants:            Wants{Cat1: []string{"mapResults"}},
		RequestID:        1,
	}
}
