package fetch

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/product-analyzer/pkg/firecrawl"
)

// FirecrawlFallback retries pages the direct fetcher could not get through
// Firecrawl's raw HTML scrape. Only allowlisted URLs are forwarded.
type FirecrawlFallback struct {
	direct   *HTTPFetcher
	client   firecrawl.Client
	maxBytes int64
}

// NewFirecrawlFallback wraps direct with a Firecrawl scrape fallback.
func NewFirecrawlFallback(direct *HTTPFetcher, client firecrawl.Client) *FirecrawlFallback {
	return &FirecrawlFallback{direct: direct, client: client, maxBytes: direct.opts.MaxBytes}
}

func (f *FirecrawlFallback) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	page, err := f.direct.FetchPage(ctx, rawURL)
	if err == nil {
		return page, nil
	}
	if !f.direct.Allows(rawURL) || !shouldFallback(err) || ctx.Err() != nil {
		return nil, err
	}

	zap.L().Debug("fetch: direct fetch failed, trying firecrawl",
		zap.String("url", rawURL),
		zap.Error(err),
	)

	resp, ferr := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     rawURL,
		Formats: []string{"rawHtml"},
	})
	if ferr != nil {
		return nil, eris.Wrapf(ferr, "fetch: firecrawl fallback for %s", rawURL)
	}

	body := resp.Data.Body()
	if strings.TrimSpace(body) == "" {
		return nil, &RejectError{URL: rawURL, Reason: "firecrawl returned no html"}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &RejectError{URL: rawURL, Reason: "page exceeds size limit"}
	}

	final := rawURL
	if u := resp.Data.Metadata.SourceURL; u != "" {
		final = u
	}
	return &Page{HTML: body, FinalURL: final, Domain: Domain(final)}, nil
}

// shouldFallback is true for blocked responses and transport failures, not
// for pages rejected on content.
func shouldFallback(err error) bool {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej.Blocked()
	}
	return true
}
