package identity

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extracted is the product identity read from one page.
type Extracted struct {
	Name     string
	Brand    string
	Category string
	// CodeOnPage is true when the product code appears word-bounded in the
	// page source.
	CodeOnPage bool
}

// titleSuffix matches a trailing " - Site" or " | Site" segment.
var titleSuffix = regexp.MustCompile(`\s+[-|]\s+[^-|]*$`)

// Extract reads a product identity from an HTML page. JSON-LD Product data
// wins; otherwise the <title> (minus a site suffix) and brand meta tags are
// used. Name is empty when nothing usable was found.
func Extract(page, code string) Extracted {
	out := Extracted{CodeOnPage: containsCode(page, code)}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return out
	}

	var (
		title      string
		metaBrand  string
		ldProducts []map[string]any
	)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = strings.TrimSpace(textOf(n))
				}
			case atom.Meta:
				if metaBrand == "" {
					metaBrand = brandFromMeta(n)
				}
			case atom.Script:
				if strings.EqualFold(attr(n, "type"), "application/ld+json") {
					if p := productFromJSONLD(textOf(n)); p != nil {
						ldProducts = append(ldProducts, p)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(ldProducts) > 0 {
		p := ldProducts[0]
		out.Name = strings.TrimSpace(stringField(p["name"]))
		out.Brand = strings.TrimSpace(brandField(p["brand"]))
		out.Category = strings.TrimSpace(stringField(p["category"]))
	}
	if out.Name == "" && title != "" {
		out.Name = strings.TrimSpace(titleSuffix.ReplaceAllString(title, ""))
	}
	if out.Brand == "" {
		out.Brand = metaBrand
	}
	return out
}

func containsCode(page, code string) bool {
	if code == "" {
		return false
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(code) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(page)
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func brandFromMeta(n *html.Node) string {
	prop := strings.ToLower(attr(n, "property"))
	name := strings.ToLower(attr(n, "name"))
	if prop == "product:brand" || name == "brand" {
		return strings.TrimSpace(attr(n, "content"))
	}
	return ""
}

// productFromJSONLD returns the first object typed Product in a JSON-LD
// block, which may hold a single object or an array.
func productFromJSONLD(raw string) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		if isProduct(t) {
			return t
		}
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok && isProduct(m) {
				return m
			}
		}
	}
	return nil
}

func isProduct(m map[string]any) bool {
	switch t := m["@type"].(type) {
	case string:
		return t == "Product"
	case []any:
		for _, s := range t {
			if s == "Product" {
				return true
			}
		}
	}
	return false
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}

// brandField accepts a brand given as a string or as {"name": ...}.
func brandField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return stringField(t["name"])
	}
	return ""
}
