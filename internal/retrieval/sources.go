//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package retrieval

// Source describes one backend data source contributing to the context.
type Source struct {
	// Name identifies the source in logs and spans.
	Name string

	// Header prefixes the source's section in the aggregated context.
	Header string

	// Field is the top-level field of the query's data payload.
	Field string

	// Path is the site path detail links are built on; the record id
	// is appended.
	Path string

	// Query is the GraphQL document. It must declare $input.
	Query string

	// Describe renders the name and secondary attributes of a record.
	// The link and excerpt are appended by the formatter.
	Describe func(rec Record) string

	// ExcerptFields lists candidate text fields, first non-empty wins.
	ExcerptFields []string
}

// Section headers, in the order sections appear in the context.
const (
	HeaderProducts = "[Products]"
	HeaderArticles = "[Articles]"
	HeaderNotices  = "[Notices]"
	HeaderStores   = "[Stores]"
)

const productsQuery = `query AssistantProducts($input: ProductListInput) {
  products(input: $input) {
    items { id name price salePrice brand category stock description }
  }
}`

const articlesQuery = `query AssistantArticles($input: ArticleListInput) {
  articles(input: $input) {
    items { id title author category publishedAt summary content }
  }
}`

const noticesQuery = `query AssistantNotices($input: NoticeListInput) {
  notices(input: $input) {
    items { id title category createdAt content }
  }
}`

const storesQuery = `query AssistantStores($input: StoreListInput) {
  stores(input: $input) {
    items { id name address phone openingHours description }
  }
}`

// DefaultSources returns the four storefront sources in section order:
// catalog, articles, notices, stores.
func DefaultSources() []Source {
	return []Source{
		{
			Name:   "products",
			Header: HeaderProducts,
			Field:  "products",
			Path:   "/products/",
			Query:  productsQuery,
			Describe: func(rec Record) string {
				return joinAttrs(rec.String("name", "title"),
					attr("price", rec.String("salePrice", "price")),
					attr("brand", rec.String("brand")),
					attr("category", rec.String("category")),
					attr("stock", rec.String("stock")),
				)
			},
			ExcerptFields: []string{"description", "summary"},
		},
		{
			Name:   "articles",
			Header: HeaderArticles,
			Field:  "articles",
			Path:   "/articles/",
			Query:  articlesQuery,
			Describe: func(rec Record) string {
				return joinAttrs(rec.String("title", "name"),
					attr("author", rec.String("author")),
					attr("category", rec.String("category")),
					attr("published", rec.String("publishedAt", "createdAt")),
				)
			},
			ExcerptFields: []string{"summary", "content"},
		},
		{
			Name:   "notices",
			Header: HeaderNotices,
			Field:  "notices",
			Path:   "/notices/",
			Query:  noticesQuery,
			Describe: func(rec Record) string {
				return joinAttrs(rec.String("title", "name"),
					attr("category", rec.String("category")),
					attr("posted", rec.String("createdAt", "publishedAt")),
				)
			},
			ExcerptFields: []string{"content", "summary"},
		},
		{
			Name:   "stores",
			Header: HeaderStores,
			Field:  "stores",
			Path:   "/stores/",
			Query:  storesQuery,
			Describe: func(rec Record) string {
				return joinAttrs(rec.String("name", "title"),
					attr("address", rec.String("address")),
					attr("phone", rec.String("phone")),
					attr("hours", rec.String("openingHours", "hours")),
				)
			},
			ExcerptFields: []string{"description"},
		},
	}
}
