package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"homewatch/models"
)

var zpidPattern = regexp.MustCompile(`/(\d+)_zpid`)

// DetailPageLookup enriches a record by fetching its listing detail page and
// extracting realtor, brokerage and geolocation fields from the markup.
type DetailPageLookup struct {
	client  *http.Client
	timeout time.Duration
}

func NewDetailPageLookup(client *http.Client, timeout time.Duration) *DetailPageLookup {
	return &DetailPageLookup{client: client, timeout: timeout}
}

func (l *DetailPageLookup) Lookup(ctx context.Context, record *models.PropertyRecord) (*models.EnrichmentResult, error) {
	if record.DetailURL == "" {
		return nil, fmt.Errorf("record has no detail url")
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, record.DetailURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return l.ParseHTML(resp.Body)
}

// ParseHTML extracts the enrichment fields from a listing detail page.
func (l *DetailPageLookup) ParseHTML(r io.Reader) (*models.EnrichmentResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	res := &models.EnrichmentResult{}

	// The canonical link carries the external id; without it the page is
	// not attributable to a record.
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		if m := zpidPattern.FindStringSubmatch(href); len(m) > 1 {
			res.ZPID = m[1]
		}
	}

	res.RealtorName = strings.TrimSpace(doc.Find(`[data-testid="attribution-agent-name"]`).First().Text())
	res.RealtorPhone = strings.TrimSpace(doc.Find(`[data-testid="attribution-agent-phone"]`).First().Text())
	res.BrokerageName = strings.TrimSpace(doc.Find(`[data-testid="attribution-broker-name"]`).First().Text())

	if lat, ok := metaFloat(doc, `meta[property="place:location:latitude"]`); ok {
		res.Lat = &lat
	}
	if lng, ok := metaFloat(doc, `meta[property="place:location:longitude"]`); ok {
		res.Lng = &lng
	}

	return res, nil
}

func metaFloat(doc *goquery.Document, selector string) (float64, bool) {
	content, ok := doc.Find(selector).Attr("content")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
