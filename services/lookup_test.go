package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"homewatch/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return data
}

func TestParseHTML_DetailPage(t *testing.T) {
	page := loadFixture(t, "detail_page.html")

	l := NewDetailPageLookup(nil, 0)
	res, err := l.ParseHTML(strings.NewReader(string(page)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if res.ZPID != "44331234" {
		t.Fatalf("expected zpid 44331234, got %q", res.ZPID)
	}
	if res.RealtorName != "Jane Realtor" {
		t.Fatalf("unexpected realtor: %q", res.RealtorName)
	}
	if res.RealtorPhone != "512-555-0100" {
		t.Fatalf("unexpected phone: %q", res.RealtorPhone)
	}
	if res.BrokerageName != "Example Brokerage, LLC" {
		t.Fatalf("unexpected brokerage: %q", res.BrokerageName)
	}
	if res.Lat == nil || *res.Lat != 30.270512 {
		t.Fatalf("latitude not extracted: %v", res.Lat)
	}
	if res.Lng == nil || *res.Lng != -97.742312 {
		t.Fatalf("longitude not extracted: %v", res.Lng)
	}
}

func TestParseHTML_NoCanonicalLink(t *testing.T) {
	l := NewDetailPageLookup(nil, 0)
	res, err := l.ParseHTML(strings.NewReader("<html><body><p>blocked</p></body></html>"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.ZPID != "" {
		t.Fatalf("expected empty zpid for a page without canonical link, got %q", res.ZPID)
	}
}

func TestLookup_TimeoutHonored(t *testing.T) {
	page := loadFixture(t, "detail_page.html")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	l := NewDetailPageLookup(srv.Client(), 30*time.Millisecond)
	start := time.Now()
	_, err := l.Lookup(context.Background(), &models.PropertyRecord{DetailURL: srv.URL})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("lookup did not cut off at its own timeout, took %v", elapsed)
	}
}
