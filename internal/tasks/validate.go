package tasks

import "strings"

// truthy reports whether key holds a usable value: a non-blank string, a
// non-zero number, true, or any object or array.
func truthy(data map[string]any, key string) bool {
	switch v := data[key].(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return true
	}
}

func nonEmptyString(data map[string]any, key string) bool {
	s, ok := data[key].(string)
	return ok && strings.TrimSpace(s) != ""
}

func isArray(data map[string]any, key string) bool {
	_, ok := data[key].([]any)
	return ok
}

func isObject(data map[string]any, key string) bool {
	_, ok := data[key].(map[string]any)
	return ok
}

func validCategorizer(d map[string]any) bool {
	return nonEmptyString(d, "main_category") && isArray(d, "tags")
}

func validCompetitor(d map[string]any) bool {
	return isArray(d, "competitors") && truthy(d, "market_position")
}

func validSEOOptimizer(d map[string]any) bool {
	return isArray(d, "title_tags") && truthy(d, "keywords")
}

func validTrends(d map[string]any) bool {
	return isArray(d, "current_trends") && truthy(d, "growth_prediction")
}

func validPrice(d map[string]any) bool {
	return isObject(d, "recommended_price_range") && nonEmptyString(d, "pricing_strategy")
}

func validContent(d map[string]any) bool {
	return truthy(d, "enhanced_title") && truthy(d, "short_description")
}

func validDescription(d map[string]any) bool {
	desc, ok := d["descriptions"].(map[string]any)
	return ok && truthy(desc, "short")
}

func validSEOGenerator(d map[string]any) bool {
	return truthy(d, "seo_title") && truthy(d, "meta_description")
}

func validMarketing(d map[string]any) bool {
	return truthy(d, "marketing_messages") && truthy(d, "value_propositions")
}
