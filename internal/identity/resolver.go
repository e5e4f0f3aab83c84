package identity

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/product-analyzer/internal/fetch"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/search"
)

const resultsPerQuery = 5

// Options tunes candidate selection.
type Options struct {
	MinScore       float64
	TopN           int
	MaxConcurrency int
}

// DefaultOptions keeps candidates scoring 0.6 or more, at most three.
func DefaultOptions() Options {
	return Options{MinScore: 0.6, TopN: 3, MaxConcurrency: 3}
}

// Resolver finds candidate identities for a product code. It keeps no state
// between calls.
type Resolver struct {
	searcher search.Searcher
	fetcher  fetch.PageFetcher
	opts     Options
}

// NewResolver creates a Resolver. Zero option values take the defaults.
func NewResolver(s search.Searcher, f fetch.PageFetcher, opts Options) *Resolver {
	def := DefaultOptions()
	if opts.MinScore <= 0 {
		opts.MinScore = def.MinScore
	}
	if opts.TopN <= 0 {
		opts.TopN = def.TopN
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = def.MaxConcurrency
	}
	return &Resolver{searcher: s, fetcher: f, opts: opts}
}

// Queries returns the lookup queries issued for code, in order.
func Queries(code string) []string {
	return []string{
		fmt.Sprintf(`"%s" site:eandata.com OR site:barcodelookup.com OR site:upcitemdb.com`, code),
		fmt.Sprintf(`"%s" "gtin13" OR "ean13"`, code),
		fmt.Sprintf(`"%s" "fiche technique" OR "caractéristiques" OR "specifications"`, code),
	}
}

// ResolveCandidates searches for pages mentioning code and returns the best
// scoring identities. Codes failing the EAN-13 checksum return nil without
// any network call. Search and page failures are logged and skipped, so an
// empty result is normal.
func (r *Resolver) ResolveCandidates(ctx context.Context, code string) []model.IdentityCandidate {
	log := zap.L().With(zap.String("code", code))
	if !ValidEAN13(code) {
		log.Info("identity: invalid EAN-13 checksum, skipping lookup")
		return nil
	}

	queries := Queries(code)
	hits := make([][]model.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			res, err := r.searcher.Search(gctx, q, resultsPerQuery)
			if err != nil {
				log.Warn("identity: search failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			hits[i] = res
			return nil
		})
	}
	_ = g.Wait()

	// Flatten in (query, result) order; later duplicates of a URL are not
	// fetched again.
	var urls []string
	seen := make(map[string]struct{})
	for _, res := range hits {
		for _, h := range res {
			if _, ok := seen[h.URL]; ok {
				continue
			}
			seen[h.URL] = struct{}{}
			urls = append(urls, h.URL)
		}
	}

	found := make([]*model.IdentityCandidate, len(urls))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			page, err := r.fetcher.FetchPage(gctx, u)
			if err != nil {
				log.Debug("identity: page skipped", zap.String("url", u), zap.Error(err))
				return nil
			}
			ex := Extract(page.HTML, code)
			if ex.Name == "" {
				return nil
			}
			found[i] = &model.IdentityCandidate{
				Name:            ex.Name,
				Brand:           ex.Brand,
				Category:        ex.Category,
				SourceURL:       page.FinalURL,
				SourceDomain:    page.Domain,
				MatchedOnSource: ex.CodeOnPage,
			}
			return nil
		})
	}
	_ = g.Wait()

	cands := make([]model.IdentityCandidate, 0, len(found))
	for _, c := range found {
		if c != nil {
			cands = append(cands, *c)
		}
	}

	ranked := Rank(Dedupe(cands), code, r.opts.MinScore, r.opts.TopN)
	log.Info("identity: resolved candidates",
		zap.Int("pages", len(urls)),
		zap.Int("extracted", len(cands)),
		zap.Int("kept", len(ranked)),
	)
	return ranked
}
