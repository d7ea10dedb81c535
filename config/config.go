package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProxyTier names one of the two egress paths used to vary request origin
// characteristics across retries.
type ProxyTier string

const (
	TierDatacenter  ProxyTier = "datacenter"
	TierResidential ProxyTier = "residential"
)

type Config struct {
	Proxies    map[ProxyTier]ProxyConfig
	Ledger     LedgerConfig
	RawStore   RawStoreConfig
	Properties PropertiesConfig
	Scraper    ScraperConfig
	Enrich     EnrichConfig
	Scheduler  SchedulerConfig
	LogPath    string
	Sources    map[string]*SourceConfig
}

// ProxyConfig is resolved once at pipeline start; orchestration code only
// ever sees the tier name.
type ProxyConfig struct {
	Endpoint string
	Username string
	Password string
}

type LedgerConfig struct {
	DBPath string
}

type RawStoreConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
	// MaxPayloadBytes is the documented ceiling for a single success
	// artifact. Payloads at or below it are always accepted.
	MaxPayloadBytes int64
}

type PropertiesConfig struct {
	DBURL string
}

type ScraperConfig struct {
	SearchEndpoint string
	FetchTimeout   time.Duration
	// JitterMin/JitterMax bound the random pause between work items. The
	// pause keeps request pacing irregular for upstream rate limiting and
	// must stay random.
	JitterMin   time.Duration
	JitterMax   time.Duration
	RetryPasses []RetryPass
}

// RetryPass is one entry of the ordered retry schedule: re-drive the failed
// worklist Count times through Tier's egress.
type RetryPass struct {
	Tier  ProxyTier
	Count int
}

type EnrichConfig struct {
	BatchSize int
	Timeout   time.Duration
}

type SchedulerConfig struct {
	Cron     string
	Interval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Proxies: map[ProxyTier]ProxyConfig{
			TierDatacenter: {
				Endpoint: os.Getenv("PROXY_DATACENTER_ENDPOINT"),
				Username: os.Getenv("PROXY_DATACENTER_USERNAME"),
				Password: os.Getenv("PROXY_DATACENTER_PASSWORD"),
			},
			TierResidential: {
				Endpoint: os.Getenv("PROXY_RESIDENTIAL_ENDPOINT"),
				Username: os.Getenv("PROXY_RESIDENTIAL_USERNAME"),
				Password: os.Getenv("PROXY_RESIDENTIAL_PASSWORD"),
			},
		},
		Ledger: LedgerConfig{
			DBPath: getEnv("LEDGER_DB_PATH", "ledger.db"),
		},
		RawStore: RawStoreConfig{
			Bucket:          os.Getenv("RAW_BUCKET"),
			Region:          getEnv("RAW_REGION", "us-east-1"),
			Endpoint:        os.Getenv("RAW_ENDPOINT"),
			AccessKeyID:     os.Getenv("RAW_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("RAW_SECRET_ACCESS_KEY"),
			MaxPayloadBytes: int64(getEnvInt("RAW_MAX_PAYLOAD_BYTES", 16*1024*1024)),
		},
		Properties: PropertiesConfig{
			DBURL: os.Getenv("DATABASE_URL"),
		},
		Scraper: ScraperConfig{
			SearchEndpoint: getEnv("SEARCH_ENDPOINT", "https://www.zillow.com/async-create-search-page-state"),
			FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
			JitterMin:      getEnvDuration("JITTER_MIN", 5*time.Second),
			JitterMax:      getEnvDuration("JITTER_MAX", 25*time.Second),
			RetryPasses: []RetryPass{
				{Tier: TierDatacenter, Count: getEnvInt("RETRY_DATACENTER_PASSES", 5)},
				{Tier: TierResidential, Count: getEnvInt("RETRY_RESIDENTIAL_PASSES", 5)},
			},
		},
		Enrich: EnrichConfig{
			BatchSize: getEnvInt("ENRICH_BATCH_SIZE", 25),
			Timeout:   getEnvDuration("ENRICH_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("PIPELINE_CRON"),
			Interval: getEnvDuration("PIPELINE_INTERVAL", 0),
		},
		LogPath: getEnv("LOG_PATH", "daemon.log"),
		Sources: make(map[string]*SourceConfig),
	}

	if cfg.Scraper.JitterMax < cfg.Scraper.JitterMin {
		return nil, fmt.Errorf("jitter window inverted: min=%s max=%s",
			cfg.Scraper.JitterMin, cfg.Scraper.JitterMax)
	}

	if err := cfg.loadSourceConfigs(getEnv("SOURCES_DIR", "config/sources")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSourceConfigs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var src SourceConfig
		if err := yaml.Unmarshal(data, &src); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		c.Sources[src.ID] = &src
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
