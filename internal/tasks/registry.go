// Package tasks defines the nine product analysis tasks: how each prompt is
// built, what a usable answer must contain and what to return when the
// backend cannot produce one.
package tasks

import (
	"maps"

	"github.com/sells-group/product-analyzer/internal/model"
)

// Category groups tasks for display.
type Category string

const (
	CategoryAnalysis     Category = "analysis"
	CategoryOptimization Category = "optimization"
	CategoryGeneration   Category = "generation"
)

// Task ids.
const (
	Categorizer          = "categorizer"
	Competitor           = "competitor"
	SEOOptimizer         = "seo_optimizer"
	Trends               = "trends"
	PriceOptimizer       = "price_optimizer"
	ContentEnhancer      = "content_enhancer"
	DescriptionGenerator = "description_generator"
	SEOGenerator         = "seo_generator"
	MarketingGenerator   = "marketing_generator"
)

// Task is one entry of the registry.
type Task struct {
	ID                string
	Name              string
	Category          Category
	DefaultConfidence float64

	prompt   func(p model.Product, ec *model.EnrichedContext) string
	validate func(data map[string]any) bool
	fallback map[string]any
}

// BuildPrompt renders the task prompt for p using the shared context. ec may
// be nil.
func (t Task) BuildPrompt(p model.Product, ec *model.EnrichedContext) string {
	return t.prompt(p, ec)
}

// Validate reports whether data has the fields the task requires.
func (t Task) Validate(data map[string]any) bool {
	if data == nil {
		return false
	}
	return t.validate(data)
}

// Fallback returns a fresh copy of the static payload used when the backend
// gives no usable answer.
func (t Task) Fallback() map[string]any {
	return deepCopy(t.fallback)
}

// Registry is an immutable, ordered set of tasks.
type Registry struct {
	tasks []Task
	index map[string]int
}

// NewRegistry builds a registry from tasks, keeping their order. Later
// duplicates of an id are ignored.
func NewRegistry(tasks ...Task) *Registry {
	r := &Registry{index: make(map[string]int, len(tasks))}
	for _, t := range tasks {
		if _, ok := r.index[t.ID]; ok {
			continue
		}
		r.index[t.ID] = len(r.tasks)
		r.tasks = append(r.tasks, t)
	}
	return r
}

// Default returns the registry of the nine analysis tasks.
func Default() *Registry {
	return NewRegistry(
		Task{ID: Categorizer, Name: "Auto Categorizer", Category: CategoryAnalysis, DefaultConfidence: 0.80,
			prompt: categorizerSpec.render, validate: validCategorizer, fallback: categorizerFallback},
		Task{ID: Competitor, Name: "Competitor Analyzer", Category: CategoryAnalysis, DefaultConfidence: 0.75,
			prompt: competitorSpec.render, validate: validCompetitor, fallback: competitorFallback},
		Task{ID: SEOOptimizer, Name: "SEO Optimizer", Category: CategoryOptimization, DefaultConfidence: 0.80,
			prompt: seoOptimizerSpec.render, validate: validSEOOptimizer, fallback: seoOptimizerFallback},
		Task{ID: Trends, Name: "Trend Detector", Category: CategoryAnalysis, DefaultConfidence: 0.75,
			prompt: trendsSpec.render, validate: validTrends, fallback: trendsFallback},
		Task{ID: PriceOptimizer, Name: "Price Optimizer", Category: CategoryOptimization, DefaultConfidence: 0.80,
			prompt: priceSpec.render, validate: validPrice, fallback: priceFallback},
		Task{ID: ContentEnhancer, Name: "Content Enhancer", Category: CategoryOptimization, DefaultConfidence: 0.85,
			prompt: contentSpec.render, validate: validContent, fallback: contentFallback},
		Task{ID: DescriptionGenerator, Name: "Description Generator", Category: CategoryGeneration, DefaultConfidence: 0.80,
			prompt: descriptionSpec.render, validate: validDescription, fallback: descriptionFallback},
		Task{ID: SEOGenerator, Name: "SEO Generator", Category: CategoryGeneration, DefaultConfidence: 0.80,
			prompt: seoGeneratorSpec.render, validate: validSEOGenerator, fallback: seoGeneratorFallback},
		Task{ID: MarketingGenerator, Name: "Marketing Generator", Category: CategoryGeneration, DefaultConfidence: 0.80,
			prompt: marketingSpec.render, validate: validMarketing, fallback: marketingFallback},
	)
}

// Get returns the task with the given id.
func (r *Registry) Get(id string) (Task, bool) {
	i, ok := r.index[id]
	if !ok {
		return Task{}, false
	}
	return r.tasks[i], true
}

// IDs returns the task ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		ids[i] = t.ID
	}
	return ids
}

// All returns the tasks in registration order.
func (r *Registry) All() []Task {
	out := make([]Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Len returns the number of tasks.
func (r *Registry) Len() int {
	return len(r.tasks)
}

// GenericFallback is returned for task ids the registry does not know.
func GenericFallback() map[string]any {
	return map[string]any{"note": "analysis unavailable"}
}

// ValidObject accepts any non-nil JSON object. It stands in for the
// validator of unknown task ids.
func ValidObject(data map[string]any) bool {
	return data != nil
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = copyValue(e)
		}
		return s
	default:
		return v
	}
}
