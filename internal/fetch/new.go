package fetch

import (
	"time"

	"github.com/sells-group/product-analyzer/internal/config"
	"github.com/sells-group/product-analyzer/pkg/firecrawl"
)

// New builds the page fetcher described by cfg, adding the Firecrawl
// fallback when it is enabled.
func New(cfg *config.Config) PageFetcher {
	direct := NewHTTPFetcher(Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxBytes:  cfg.Fetch.MaxBytes,
		Limiter:   NewHostLimiter(cfg.Fetch.RatePerHost, cfg.Fetch.BurstPerHost),
	})
	if !cfg.Firecrawl.Enabled || cfg.Firecrawl.Key == "" {
		return direct
	}
	client := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	return NewFirecrawlFallback(direct, client)
}
