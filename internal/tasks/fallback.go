package tasks

// Static payloads returned after retries are exhausted. They use only JSON
// value types (map[string]any, []any, string, float64) so they look the same
// as decoded backend answers.

var categorizerFallback = map[string]any{
	"main_category": "General Merchandise",
	"subcategories": []any{"Consumer Products"},
	"tags":          []any{"product", "retail"},
	"attributes": map[string]any{
		"condition": "new",
	},
	"reasoning": "Default categorization used because no analysis was available.",
}

var competitorFallback = map[string]any{
	"competitors": []any{
		map[string]any{
			"name":       "Comparable products in the same category",
			"price":      "varies",
			"features":   []any{"similar core functionality"},
			"strengths":  []any{"established availability"},
			"weaknesses": []any{"not individually assessed"},
		},
	},
	"market_position":        "Not assessed",
	"competitive_advantages": []any{"To be determined from market research"},
	"threats":                []any{"Competing products in the same category"},
	"data_sources":           []any{},
}

var seoOptimizerFallback = map[string]any{
	"title_tags":        []any{"Product overview and specifications"},
	"meta_descriptions": []any{"Discover product details, features and specifications."},
	"keywords": map[string]any{
		"primary":   []any{"product"},
		"secondary": []any{"specifications", "features"},
		"long_tail": []any{"product features and specifications"},
	},
	"seo_score": 50.0,
}

var trendsFallback = map[string]any{
	"current_trends": []any{"Steady demand in the product category"},
	"seasonal_patterns": map[string]any{
		"peak_months": []any{"November", "December"},
		"low_months":  []any{"January", "February"},
	},
	"growth_prediction":    "stable",
	"market_opportunities": []any{"Online retail channels"},
	"emerging_competitors": []any{},
	"technology_trends":    []any{},
	"forecast_period":      "12 months",
}

var priceFallback = map[string]any{
	"recommended_price_range": map[string]any{
		"min":     0.0,
		"max":     0.0,
		"optimal": 0.0,
	},
	"pricing_strategy":          "competitive",
	"competitor_prices":         []any{},
	"value_propositions":        []any{"Price aligned with comparable products"},
	"price_sensitivity_factors": []any{"Competitor pricing", "Perceived quality"},
	"seasonal_adjustments":      []any{},
	"currency":                  "EUR",
}

var contentFallback = map[string]any{
	"enhanced_title":        "Product",
	"short_description":     "A product for everyday use.",
	"detailed_description":  "Detailed product information is not available at this time.",
	"key_features":          []any{},
	"benefits":              []any{},
	"use_cases":             []any{},
	"technical_specs":       map[string]any{},
	"content_quality_score": 40.0,
}

var descriptionFallback = map[string]any{
	"descriptions": map[string]any{
		"short":         "A product for everyday use.",
		"medium":        "A product designed for everyday use. Detailed information is not available at this time.",
		"detailed":      "Detailed product information is not available at this time.",
		"bullet_points": []any{"Everyday use"},
	},
	"target_audiences":  []any{"General consumers"},
	"emotional_appeals": []any{"Reliability"},
	"call_to_action":    "Learn more about this product.",
	"readability_score": 60.0,
}

var seoGeneratorFallback = map[string]any{
	"seo_title":        "Product details and specifications",
	"meta_description": "Find product details, features and specifications.",
	"h1_tag":           "Product details",
	"h2_tags":          []any{"Features", "Specifications"},
	"seo_content":      "Product details, features and specifications.",
	"alt_texts":        []any{"Product image"},
	"internal_links":   []any{},
	"faq_section":      []any{},
	"seo_score":        50.0,
}

var marketingFallback = map[string]any{
	"marketing_messages": map[string]any{
		"headline":       "Discover this product",
		"tagline":        "Made for everyday use",
		"elevator_pitch": "A dependable product for everyday needs.",
	},
	"social_media_posts": []any{},
	"ad_copy":            []any{},
	"email_marketing": map[string]any{
		"subject": "Discover this product",
		"body":    "Learn more about this product.",
	},
	"value_propositions":    []any{"Dependable everyday use"},
	"engagement_prediction": "unknown",
}
