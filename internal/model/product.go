package model

import (
	"regexp"
	"strings"
)

// ProductKind distinguishes retail product codes from free-text names.
type ProductKind string

const (
	KindCode ProductKind = "code"
	KindName ProductKind = "name"
)

// codePattern matches identifiers treated as retail product codes (EAN-8 to EAN-13).
var codePattern = regexp.MustCompile(`^\d{8,13}$`)

// Product is a reference to the product being analyzed. Kind is derived from
// the identifier once, at construction.
type Product struct {
	Identifier string      `json:"identifier"`
	Name       string      `json:"name"`
	Kind       ProductKind `json:"kind"`
}

// NewProduct builds a Product from raw user input. Code-kind products without a
// name get a placeholder name; name-kind products default to the identifier.
func NewProduct(identifier, name string) Product {
	id := strings.TrimSpace(identifier)
	p := Product{
		Identifier: id,
		Name:       strings.TrimSpace(name),
		Kind:       KindName,
	}
	if IsCode(id) {
		p.Kind = KindCode
		if p.Name == "" {
			p.Name = "Product " + id
		}
	} else if p.Name == "" {
		p.Name = id
	}
	return p
}

// IsCode reports whether s has the shape of a retail product code.
func IsCode(s string) bool {
	return codePattern.MatchString(s)
}

// IsCode reports whether the product is a code-kind reference.
func (p Product) IsCode() bool {
	return p.Kind == KindCode
}

// WithName returns a copy of p carrying a confirmed name.
func (p Product) WithName(name string) Product {
	name = strings.TrimSpace(name)
	if name == "" {
		return p
	}
	p.Name = name
	return p
}

// DedupeProducts drops products whose identifier was already seen. The first
// occurrence wins.
func DedupeProducts(products []Product) []Product {
	seen := make(map[string]struct{}, len(products))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Identifier == "" {
			continue
		}
		if _, ok := seen[p.Identifier]; ok {
			continue
		}
		seen[p.Identifier] = struct{}{}
		out = append(out, p)
	}
	return out
}
