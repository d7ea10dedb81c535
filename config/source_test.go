package config

import "testing"

func TestFilterEffective_Defaults(t *testing.T) {
	eff := Filter{}.Effective()

	if eff.SortOrder != DefaultSortOrder {
		t.Fatalf("expected default sort %s, got %s", DefaultSortOrder, eff.SortOrder)
	}
	if !eff.ForSaleByAgent || !eff.ForSaleByOwner || !eff.ComingSoon {
		t.Fatalf("expected agent/owner/coming-soon included by default: %+v", eff)
	}
	if eff.Auctions || eff.Foreclosures || eff.NewConstruction {
		t.Fatalf("expected auctions/foreclosures/new-construction excluded by default: %+v", eff)
	}
	if eff.PriceMin != 0 || eff.PriceMax != 0 {
		t.Fatalf("expected unbounded price by default, got %d..%d", eff.PriceMin, eff.PriceMax)
	}
}

func TestFilterEffective_ExplicitFalseBeatsDefault(t *testing.T) {
	no := false
	eff := Filter{ComingSoon: &no}.Effective()
	if eff.ComingSoon {
		t.Fatal("explicit coming_soon: false was overridden by the default")
	}
}
