package config

// SourceConfig is one saved-search descriptor loaded from
// config/sources/*.yaml. Every recognized filter option is enumerated here
// with an explicit default; the request builder never reads ad hoc optional
// fields.
type SourceConfig struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Region Region `yaml:"region"`
	Filter Filter `yaml:"filter"`
}

// Region describes the map viewport of the saved search.
type Region struct {
	SearchTerm string  `yaml:"search_term"`
	RegionID   int     `yaml:"region_id"`
	RegionType int     `yaml:"region_type"`
	LatMin     float64 `yaml:"lat_min"`
	LatMax     float64 `yaml:"lat_max"`
	LngMin     float64 `yaml:"lng_min"`
	LngMax     float64 `yaml:"lng_max"`
	Zoom       int     `yaml:"zoom"`
}

// Filter holds the saved-search filter flags. Pointer fields distinguish
// "absent from the descriptor" from an explicit false/zero; the defaults
// below document what absence means.
type Filter struct {
	// PriceMin/PriceMax bound the asking price. Default: unbounded (0 means
	// no bound for max).
	PriceMin int `yaml:"price_min"`
	PriceMax int `yaml:"price_max"`
	// SortOrder of results. Default "globalrelevanceex" (source relevance).
	SortOrder string `yaml:"sort_order"`
	// Status flags. Defaults: agent-listed, owner-listed and coming-soon
	// inventory included; everything else excluded.
	ForSaleByAgent  *bool `yaml:"for_sale_by_agent"`
	ForSaleByOwner  *bool `yaml:"for_sale_by_owner"`
	ComingSoon      *bool `yaml:"coming_soon"`
	Auctions        *bool `yaml:"auctions"`
	Foreclosures    *bool `yaml:"foreclosures"`
	NewConstruction *bool `yaml:"new_construction"`
}

const DefaultSortOrder = "globalrelevanceex"

// boolOr resolves a tri-state yaml flag against its documented default.
func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// EffectiveFilter applies the documented defaults to every absent field.
type EffectiveFilter struct {
	PriceMin        int
	PriceMax        int
	SortOrder       string
	ForSaleByAgent  bool
	ForSaleByOwner  bool
	ComingSoon      bool
	Auctions        bool
	Foreclosures    bool
	NewConstruction bool
}

func (f Filter) Effective() EffectiveFilter {
	sort := f.SortOrder
	if sort == "" {
		sort = DefaultSortOrder
	}
	return EffectiveFilter{
		PriceMin:        f.PriceMin,
		PriceMax:        f.PriceMax,
		SortOrder:       sort,
		ForSaleByAgent:  boolOr(f.ForSaleByAgent, true),
		ForSaleByOwner:  boolOr(f.ForSaleByOwner, true),
		ComingSoon:      boolOr(f.ComingSoon, true),
		Auctions:        boolOr(f.Auctions, false),
		Foreclosures:    boolOr(f.Foreclosures, false),
		NewConstruction: boolOr(f.NewConstruction, false),
	}
}
