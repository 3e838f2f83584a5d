package commands

import (
	"time"

	"aopskey/lib/configutil"
	"aopskey/lib/pagestore"
	"aopskey/lib/scrapers/aopswiki"
	"aopskey/lib/serviceutil"
)

type CacheConfig struct {
	// Path of the sqlite page cache; empty disables persistence.
	Path        string `json:"path"`
	MaxAgeHours int    `json:"max_age_hours"`
}

type FetchConfig struct {
	MaxRetries        int     `json:"max_retries"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Concurrency       int     `json:"concurrency"`
}

type Config struct {
	Site        aopswiki.Templates   `json:"site"`
	Credentials aopswiki.Credentials `json:"credentials"`
	Cache       CacheConfig          `json:"cache"`
	Fetch       FetchConfig          `json:"fetch"`
}

var configPath *string

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The config file to read site and credential settings from.")
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

// createExtractor wires the whole pipeline out of the config. The returned
// cleanup closes the page cache.
func createExtractor(cfg Config) (*aopswiki.Extractor, func()) {
	session, err := aopswiki.NewSession(aopswiki.SessionOptions{
		Templates:         cfg.Site,
		Credentials:       cfg.Credentials,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize session", err)
	}

	var store *pagestore.Store
	cleanup := func() {}
	if cfg.Cache.Path != "" {
		opened, err := pagestore.Open(cfg.Cache.Path)
		if err != nil {
			serviceutil.Fatal("failed to open page cache", err)
		}
		store = &opened
		cleanup = func() { opened.Close() }
	}

	extractor := aopswiki.NewExtractor(aopswiki.ExtractorOptions{
		Session:     session,
		Concurrency: cfg.Fetch.Concurrency,
		Fetcher: aopswiki.FetcherOptions{
			MaxRetries: cfg.Fetch.MaxRetries,
		},
		Cache: aopswiki.CacheOptions{
			Store:  store,
			MaxAge: time.Duration(cfg.Cache.MaxAgeHours) * time.Hour,
		},
	})
	return extractor, cleanup
}
