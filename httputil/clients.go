package httputil

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"homewatch/config"
)

// Clients holds one HTTP client per proxy tier plus a direct client for
// non-scraping calls. Tier clients are built once at startup from injected
// configuration.
type Clients struct {
	tiers  map[config.ProxyTier]*http.Client
	Direct *http.Client
}

func NewClients(proxies map[config.ProxyTier]config.ProxyConfig, timeout time.Duration) (*Clients, error) {
	tiers := make(map[config.ProxyTier]*http.Client, len(proxies))

	for tier, proxyCfg := range proxies {
		client, err := newTierClient(proxyCfg, timeout)
		if err != nil {
			return nil, fmt.Errorf("proxy tier %s: %w", tier, err)
		}
		tiers[tier] = client
	}

	return &Clients{
		tiers:  tiers,
		Direct: &http.Client{Timeout: timeout},
	}, nil
}

func newTierClient(proxyCfg config.ProxyConfig, timeout time.Duration) (*http.Client, error) {
	if proxyCfg.Endpoint == "" {
		// No proxy configured for this tier; egress directly.
		return &http.Client{Timeout: timeout}, nil
	}

	proxyURL, err := url.Parse(proxyCfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if proxyCfg.Username != "" {
		proxyURL.User = url.UserPassword(proxyCfg.Username, proxyCfg.Password)
	}

	transport := &http.Transport{
		Proxy:             http.ProxyURL(proxyURL),
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

// ForTier returns the client for a proxy tier, falling back to the direct
// client when the tier is unknown.
func (c *Clients) ForTier(tier config.ProxyTier) *http.Client {
	if client, ok := c.tiers[tier]; ok {
		return client
	}
	return c.Direct
}
