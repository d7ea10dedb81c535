package scraper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func TestParseResults_Basic(t *testing.T) {
	f := &SearchFetcher{}
	data := loadFixture(t, "search_basic.json")

	listings, err := f.parseResults(data, &FetchDiagnostic{SourceID: "austin_tx_core"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 map results, got %d", len(listings))
	}

	first := listings[0]
	if first.ZPID != "44331234" {
		t.Fatalf("expected zpid 44331234, got %s", first.ZPID)
	}
	if first.StatusType != "FOR_SALE" {
		t.Fatalf("expected FOR_SALE, got %s", first.StatusType)
	}
	if first.UnformattedPrice != 515000 {
		t.Fatalf("expected price 515000, got %f", first.UnformattedPrice)
	}
	if first.AddressCity != "Austin" || first.AddressZipcode != "78704" {
		t.Fatalf("unexpected address fields: %+v", first)
	}

	// The advertisement tile comes through with no zpid; filtering it out
	// is the ingestion engine's job, not the fetcher's.
	if listings[1].ZPID != "" {
		t.Fatalf("expected empty zpid on ad tile, got %s", listings[1].ZPID)
	}
}

func TestParseResults_MalformedShapeFails(t *testing.T) {
	f := &SearchFetcher{}
	data := loadFixture(t, "search_malformed.json")

	diag := &FetchDiagnostic{SourceID: "austin_tx_core", Timestamp: time.Now()}
	_, err := f.parseResults(data, diag)
	if err == nil {
		t.Fatal("expected error for response missing the results path")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Diagnostic.ResponseBody == "" {
		t.Fatal("expected diagnostic to capture the response body")
	}
}

func TestParseResults_NotJSONFails(t *testing.T) {
	f := &SearchFetcher{}

	_, err := f.parseResults([]byte("<html>blocked</html>"), &FetchDiagnostic{})
	if err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}
