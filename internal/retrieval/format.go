//-------------------------------------------------------------------------
//
// Storefront Assistant Relay
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package retrieval

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Record is one matched backend record. The backend's field set is not
// fixed, so records stay untyped and are read through String.
type Record map[string]any

// String returns the first non-empty value among keys, rendered as text.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

// Piece is one formatted record plus its detail link.
type Piece struct {
	Text string
	Link string
}

// extractRecords finds the record list under field. The list may be the
// field itself or nested under items, nodes, data, or edges[].node.
func extractRecords(data json.RawMessage, field string) ([]Record, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse %s payload: %w", field, err)
	}

	raw, ok := payload[field]
	if !ok || string(raw) == "null" {
		return nil, nil
	}

	var list []Record
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var container struct {
		Items []Record `json:"items"`
		Nodes []Record `json:"nodes"`
		Data  []Record `json:"data"`
		Edges []struct {
			Node Record `json:"node"`
		} `json:"edges"`
	}
	if err := json.Unmarshal(raw, &container); err != nil {
		return nil, fmt.Errorf("unexpected %s payload shape: %w", field, err)
	}

	switch {
	case len(container.Items) > 0:
		return container.Items, nil
	case len(container.Nodes) > 0:
		return container.Nodes, nil
	case len(container.Data) > 0:
		return container.Data, nil
	}

	records := make([]Record, 0, len(container.Edges))
	for _, e := range container.Edges {
		if e.Node != nil {
			records = append(records, e.Node)
		}
	}
	return records, nil
}

// formatPiece renders one record: description line, link, excerpt.
func formatPiece(src Source, rec Record, origin string, excerptLen int) Piece {
	link := ""
	if id := rec.String("id", "slug"); id != "" {
		link = origin + src.Path + id
	}

	var sb strings.Builder
	sb.WriteString("- ")
	sb.WriteString(src.Describe(rec))
	if link != "" {
		sb.WriteString("\n  Link: ")
		sb.WriteString(link)
	}

	excerpt := Truncate(StripHTML(rec.String(src.ExcerptFields...)), excerptLen)
	if excerpt != "" {
		sb.WriteString("\n  ")
		sb.WriteString(excerpt)
	}

	return Piece{Text: sb.String(), Link: link}
}

func attr(label, value string) string {
	if value == "" {
		return ""
	}
	return label + ": " + value
}

// joinAttrs joins the title and the non-empty attributes with " | ".
func joinAttrs(title string, attrs ...string) string {
	parts := make([]string, 0, len(attrs)+1)
	if title == "" {
		title = "(untitled)"
	}
	parts = append(parts, title)
	for _, a := range attrs {
		if a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " | ")
}

// blockElements are separated from their neighbours by a space so that
// adjacent paragraphs and list items do not run together.
const blockElements = "p,div,br,li,ul,ol,dt,dd,h1,h2,h3,h4,h5,h6," +
	"pre,blockquote,table,tr,td,th,section,article,header,footer"

// StripHTML removes markup and collapses whitespace. Plain text is only
// whitespace-normalized.
func StripHTML(s string) string {
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			doc.Find("script,style").Remove()
			doc.Find(blockElements).Each(func(_ int, sel *goquery.Selection) {
				sel.BeforeNodes(spaceNode())
				sel.AfterNodes(spaceNode())
			})
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func spaceNode() *html.Node {
	return &html.Node{Type: html.TextNode, Data: " "}
}

// Truncate caps s at limit runes, appending an ellipsis when cut.
// A limit of zero or less disables excerpts.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
