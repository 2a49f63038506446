//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package probe

// Variant builds one candidate shape of the "input" argument for a
// free-text question.
type Variant struct {
	Name  string
	Build func(question string, limit int) map[string]any
}

// searchFields are the field names the backend has used for the search
// term, in the order they are tried.
var searchFields = []string{"text", "query", "keyword", "value", "q"}

// DefaultVariants returns the fixed ordered list: one variant per
// search field name, then one without a search filter at all.
func DefaultVariants() []Variant {
	variants := make([]Variant, 0, len(searchFields)+1)
	for _, field := range searchFields {
		variants = append(variants, searchVariant(field))
	}
	return append(variants, Variant{
		Name: "no-search",
		Build: func(_ string, limit int) map[string]any {
			return pageInput(limit)
		},
	})
}

func searchVariant(field string) Variant {
	return Variant{
		Name: "search." + field,
		Build: func(question string, limit int) map[string]any {
			input := pageInput(limit)
			input["search"] = map[string]any{field: question}
			return input
		},
	}
}

func pageInput(limit int) map[string]any {
	return map[string]any{
		"page":  1,
		"limit": limit,
	}
}
