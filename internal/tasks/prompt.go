package tasks

import (
	"fmt"
	"strings"

	"github.com/sells-group/product-analyzer/internal/model"
)

const snippetChars = 200

// promptSpec describes one task prompt. The rendered prompt is the task
// sentence, the product line, the context blocks and the JSON shape.
type promptSpec struct {
	task       string
	label      string
	snippets   int
	validation string
	shape      string
}

func (s promptSpec) render(p model.Product, ec *model.EnrichedContext) string {
	var b strings.Builder
	b.WriteString(s.task)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Product: %s (%s)\n", p.Name, p.Identifier)

	if s.validation != "" && p.IsCode() {
		if v := validationBlock(ec); v != "" {
			fmt.Fprintf(&b, "\n%s:\n%s", s.validation, v)
		}
	}
	if snips := ec.Snippets(s.snippets); len(snips) > 0 {
		fmt.Fprintf(&b, "\n%s:\n", s.label)
		for _, r := range snips {
			fmt.Fprintf(&b, "- %s: %s\n", r.Title, clip(r.Content, snippetChars))
		}
	}

	b.WriteString("\nProvide the result in JSON format:\n")
	b.WriteString(s.shape)
	return b.String()
}

func validationBlock(ec *model.EnrichedContext) string {
	if ec == nil || ec.Validation == nil {
		return ""
	}
	v := ec.Validation
	var b strings.Builder
	fmt.Fprintf(&b, "Code %s, checksum valid: %t\n", v.Code, v.IsValid)
	for _, s := range v.Sources {
		fmt.Fprintf(&b, "- %s (%s): %s\n", s.Title, s.URL, s.Content)
	}
	if c := ec.Coherence; c != nil && len(c.Issues) > 0 {
		fmt.Fprintf(&b, "Note: %s\n", strings.Join(c.Issues, "; "))
	}
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	categorizerSpec = promptSpec{
		task:       "Categorize this product for an online catalogue.",
		label:      "Market Info",
		snippets:   2,
		validation: "EAN Info",
		shape: `{
  "main_category": "string",
  "subcategories": ["string"],
  "tags": ["string"],
  "attributes": {"key": "value"},
  "reasoning": "string",
  "confidence_score": 0.0
}`,
	}

	competitorSpec = promptSpec{
		task:     "Analyze the main competitors of this product.",
		label:    "Market Data",
		snippets: 3,
		shape: `{
  "competitors": [{"name": "string", "price": "string", "features": ["string"], "strengths": ["string"], "weaknesses": ["string"]}],
  "market_position": "string",
  "competitive_advantages": ["string"],
  "threats": ["string"],
  "data_sources": ["string"],
  "confidence_score": 0.0
}`,
	}

	seoOptimizerSpec = promptSpec{
		task:     "Optimize the search engine visibility of this product page.",
		label:    "Market Context",
		snippets: 2,
		shape: `{
  "title_tags": ["string"],
  "meta_descriptions": ["string"],
  "keywords": {"primary": ["string"], "secondary": ["string"], "long_tail": ["string"]},
  "seo_score": 0,
  "confidence_score": 0.0
}`,
	}

	trendsSpec = promptSpec{
		task:     "Identify the market trends affecting this product.",
		label:    "Market Data",
		snippets: 3,
		shape: `{
  "current_trends": ["string"],
  "seasonal_patterns": {"peak_months": ["string"], "low_months": ["string"]},
  "growth_prediction": "string",
  "market_opportunities": ["string"],
  "emerging_competitors": ["string"],
  "technology_trends": ["string"],
  "forecast_period": "string",
  "confidence_score": 0.0
}`,
	}

	priceSpec = promptSpec{
		task:     "Recommend an optimal price for this product.",
		label:    "Competitor Pricing",
		snippets: 3,
		shape: `{
  "recommended_price_range": {"min": 0, "max": 0, "optimal": 0},
  "pricing_strategy": "string",
  "competitor_prices": [{"name": "string", "price": 0}],
  "value_propositions": ["string"],
  "price_sensitivity_factors": ["string"],
  "seasonal_adjustments": ["string"],
  "currency": "string",
  "confidence_score": 0.0
}`,
	}

	contentSpec = promptSpec{
		task:       "Improve the catalogue content of this product.",
		label:      "Additional Context",
		snippets:   2,
		validation: "Validated Product Info",
		shape: `{
  "enhanced_title": "string",
  "short_description": "string",
  "detailed_description": "string",
  "key_features": ["string"],
  "benefits": ["string"],
  "use_cases": ["string"],
  "technical_specs": {"key": "value"},
  "content_quality_score": 0,
  "confidence_score": 0.0
}`,
	}

	descriptionSpec = promptSpec{
		task:     "Write product descriptions of several lengths for this product.",
		label:    "Research Data",
		snippets: 3,
		shape: `{
  "descriptions": {"short": "string", "medium": "string", "detailed": "string", "bullet_points": ["string"]},
  "target_audiences": ["string"],
  "emotional_appeals": ["string"],
  "call_to_action": "string",
  "readability_score": 0,
  "confidence_score": 0.0
}`,
	}

	seoGeneratorSpec = promptSpec{
		task:     "Generate SEO content for the page of this product.",
		label:    "SEO Context",
		snippets: 2,
		shape: `{
  "seo_title": "string",
  "meta_description": "string",
  "h1_tag": "string",
  "h2_tags": ["string"],
  "seo_content": "string",
  "alt_texts": ["string"],
  "internal_links": ["string"],
  "faq_section": [{"question": "string", "answer": "string"}],
  "seo_score": 0,
  "confidence_score": 0.0
}`,
	}

	marketingSpec = promptSpec{
		task:     "Write marketing copy for this product.",
		label:    "Market Context",
		snippets: 2,
		shape: `{
  "marketing_messages": {"headline": "string", "tagline": "string", "elevator_pitch": "string"},
  "social_media_posts": [{"platform": "string", "content": "string"}],
  "ad_copy": ["string"],
  "email_marketing": {"subject": "string", "body": "string"},
  "value_propositions": ["string"],
  "engagement_prediction": "string",
  "confidence_score": 0.0
}`,
	}
)
