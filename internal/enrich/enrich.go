// Package enrich gathers web-search context used to ground analysis prompts.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/sells-group/product-analyzer/internal/identity"
	"github.com/sells-group/product-analyzer/internal/model"
	"github.com/sells-group/product-analyzer/internal/search"
)

const (
	validationResults = 3
	broadResults      = 3
	maxBroadResults   = 5
	nameResults       = 3
	maxSourceContent  = 200

	// IssueNameMismatch is reported when the product name scores below
	// mismatchThreshold against the validation sources.
	IssueNameMismatch = "name does not match validation sources"
	// IssueNoValidation is reported when the validation search found nothing.
	IssueNoValidation = "no validation data"

	mismatchThreshold = 0.3
)

// Enricher builds an EnrichedContext for a product.
type Enricher struct {
	searcher search.Searcher
}

// New creates an Enricher backed by searcher.
func New(searcher search.Searcher) *Enricher {
	return &Enricher{searcher: searcher}
}

// ValidationQuery is the lookup-site query for a product code.
func ValidationQuery(code string) string {
	return fmt.Sprintf(`"%s" site:eandata.com OR site:barcodelookup.com OR site:gepir.gs1.org`, code)
}

// BroadQueries are the general queries issued for a code-kind product.
func BroadQueries(code, name string) []string {
	return []string{
		fmt.Sprintf(`"%s" "%s" specifications`, code, name),
		fmt.Sprintf(`"%s" price review features`, code),
		fmt.Sprintf(`"%s" EAN %s product information`, name, code),
	}
}

// NameQuery is the single query issued for a name-kind product.
func NameQuery(name string) string {
	return fmt.Sprintf(`"%s" product information specifications`, name)
}

// Enrich returns the search context for p. It never fails: search errors
// leave the affected part of the context empty.
func (e *Enricher) Enrich(ctx context.Context, p model.Product) model.EnrichedContext {
	log := zap.L().With(zap.String("product", p.Identifier))

	if !p.IsCode() {
		res, err := e.searcher.Search(ctx, NameQuery(p.Name), nameResults)
		if err != nil {
			log.Warn("enrich: name search failed", zap.Error(err))
			return model.EnrichedContext{}
		}
		return model.EnrichedContext{Results: res}
	}

	var (
		validation model.Validation
		broad      []model.SearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		validation = e.validate(gctx, p.Identifier)
		return nil
	})
	g.Go(func() error {
		broad = e.broadSearch(gctx, p)
		return nil
	})
	_ = g.Wait()

	coherence := Check(p.Name, validation.Sources)
	log.Debug("enrich: context built",
		zap.Int("validation_sources", len(validation.Sources)),
		zap.Int("results", len(broad)),
		zap.Float64("coherence", coherence.Score),
	)
	return model.EnrichedContext{
		Validation: &validation,
		Coherence:  &coherence,
		Results:    broad,
	}
}

func (e *Enricher) validate(ctx context.Context, code string) model.Validation {
	v := model.Validation{Code: code, IsValid: identity.ValidEAN13(code)}
	res, err := e.searcher.Search(ctx, ValidationQuery(code), validationResults)
	if err != nil {
		zap.L().Warn("enrich: validation search failed", zap.String("code", code), zap.Error(err))
		v.Error = err.Error()
		return v
	}
	for _, r := range res {
		v.Sources = append(v.Sources, model.ValidationSource{
			Title:   r.Title,
			URL:     r.URL,
			Content: truncate(r.Content, maxSourceContent),
		})
	}
	return v
}

// broadSearch runs the broad queries concurrently and merges their hits in
// query order, dropping repeated URLs.
func (e *Enricher) broadSearch(ctx context.Context, p model.Product) []model.SearchResult {
	queries := BroadQueries(p.Identifier, p.Name)
	hits := make([][]model.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			res, err := e.searcher.Search(gctx, q, broadResults)
			if err != nil {
				zap.L().Warn("enrich: broad search failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			hits[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var out []model.SearchResult
	seen := make(map[string]struct{})
	for _, res := range hits {
		for _, r := range res {
			if len(out) == maxBroadResults {
				return out
			}
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// Check scores how many significant tokens of name occur in the validation
// sources. The result is advisory.
func Check(name string, sources []model.ValidationSource) model.Coherence {
	if len(sources) == 0 {
		return model.Coherence{Issues: []string{IssueNoValidation}}
	}

	fold := cases.Fold()
	var sb strings.Builder
	for _, s := range sources {
		sb.WriteString(s.Title)
		sb.WriteByte(' ')
		sb.WriteString(s.Content)
		sb.WriteByte(' ')
	}
	haystack := fold.String(sb.String())

	var tokens, matched int
	for _, tok := range strings.Fields(fold.String(name)) {
		if len([]rune(tok)) <= 2 {
			continue
		}
		tokens++
		if strings.Contains(haystack, tok) {
			matched++
		}
	}

	var c model.Coherence
	if tokens > 0 {
		c.Score = float64(matched) / float64(tokens)
	}
	c.NameMatch = matched > 0
	if c.Score < mismatchThreshold {
		c.Issues = append(c.Issues, IssueNameMismatch)
	}
	return c
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
