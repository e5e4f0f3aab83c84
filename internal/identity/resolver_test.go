package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/product-analyzer/internal/fetch"
	"github.com/sells-group/product-analyzer/internal/model"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]model.SearchResult
	errs    map[string]error
	calls   []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]model.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]*fetch.Page
	calls map[string]int
}

func (f *fakeFetcher) FetchPage(_ context.Context, rawURL string) (*fetch.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[rawURL]++
	p, ok := f.pages[rawURL]
	if !ok {
		return nil, &fetch.RejectError{URL: rawURL, Reason: "status", StatusCode: 404}
	}
	return p, nil
}

func page(url, domain, html string) *fetch.Page {
	return &fetch.Page{HTML: html, FinalURL: url, Domain: domain}
}

func TestResolveCandidates_InvalidChecksum(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{}
	f := &fakeFetcher{}
	r := NewResolver(s, f, Options{})

	got := r.ResolveCandidates(context.Background(), "4006381333930")
	assert.Empty(t, got)
	assert.Empty(t, s.calls)
	assert.Empty(t, f.calls)
}

func TestResolveCandidates_NoResults(t *testing.T) {
	t.Parallel()

	s := &fakeSearcher{}
	f := &fakeFetcher{}
	r := NewResolver(s, f, Options{})

	got := r.ResolveCandidates(context.Background(), "3017620422003")
	assert.Empty(t, got)
	assert.Len(t, s.calls, 3)
	assert.Empty(t, f.calls)
}

func TestResolveCandidates_RanksAndSkipsFailures(t *testing.T) {
	t.Parallel()

	const code = "3017620422003"
	q := Queries(code)

	s := &fakeSearcher{
		results: map[string][]model.SearchResult{
			q[0]: {
				{URL: "https://www.eandata.com/3017620422003"},
				{URL: "https://www.barcodelookup.com/missing"},
			},
			q[1]: {
				// Same page as query 0; fetched once.
				{URL: "https://www.eandata.com/3017620422003"},
				{URL: "https://world.openfoodfacts.org/product/3017620422003"},
			},
		},
		errs: map[string]error{q[2]: errors.New("search down")},
	}
	f := &fakeFetcher{pages: map[string]*fetch.Page{
		"https://www.eandata.com/3017620422003": page(
			"https://www.eandata.com/3017620422003", "eandata.com",
			`<title>Nutella 400g | EANdata</title><p>EAN 3017620422003</p>`),
		"https://world.openfoodfacts.org/product/3017620422003": page(
			"https://world.openfoodfacts.org/product/3017620422003", "world.openfoodfacts.org",
			`<script type="application/ld+json">{"@type":"Product","name":"Nutella","brand":"Ferrero","category":"Spreads"}</script>
			<p>3017620422003</p>`),
	}}

	r := NewResolver(s, f, Options{})
	got := r.ResolveCandidates(context.Background(), code)

	want := []model.IdentityCandidate{
		{
			Name: "Nutella", Brand: "Ferrero", Category: "Spreads",
			SourceURL:       "https://world.openfoodfacts.org/product/3017620422003",
			SourceDomain:    "world.openfoodfacts.org",
			MatchedOnSource: true, Score: 1.0,
		},
		{
			Name:            "Nutella 400g",
			SourceURL:       "https://www.eandata.com/3017620422003",
			SourceDomain:    "eandata.com",
			MatchedOnSource: true, Score: 0.9,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveCandidates mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, f.calls["https://www.eandata.com/3017620422003"])
	assert.Equal(t, 1, f.calls["https://www.barcodelookup.com/missing"])
}

func TestResolveCandidates_DeterministicOrder(t *testing.T) {
	t.Parallel()

	const code = "4006381333931"
	q := Queries(code)

	// Equal scores: order follows (query, result) position.
	html := func(name string) string {
		return `<title>` + name + `</title><p>` + code + `</p>`
	}
	s := &fakeSearcher{results: map[string][]model.SearchResult{
		q[0]: {{URL: "https://a.example/1"}},
		q[1]: {{URL: "https://b.example/1"}},
		q[2]: {{URL: "https://c.example/1"}},
	}}
	f := &fakeFetcher{pages: map[string]*fetch.Page{
		"https://a.example/1": page("https://a.example/1", "a.example", html("Alpha")),
		"https://b.example/1": page("https://b.example/1", "b.example", html("Bravo")),
		"https://c.example/1": page("https://c.example/1", "c.example", html("Charlie")),
	}}

	for range 5 {
		r := NewResolver(s, f, Options{MinScore: 0.6, TopN: 3, MaxConcurrency: 3})
		got := r.ResolveCandidates(context.Background(), code)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"},
			[]string{got[0].Name, got[1].Name, got[2].Name})
	}
}

func TestNewResolver_Defaults(t *testing.T) {
	t.Parallel()

	r := NewResolver(nil, nil, Options{})
	assert.Equal(t, DefaultOptions(), r.opts)
}
