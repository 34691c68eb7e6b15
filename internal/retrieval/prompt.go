package retrieval

import (
	"fmt"
	"strings"
)

// Citation is the structured, output-facing reference to a source chunk.
// SID labels are assigned per response in final ranked order; they are not
// stable across queries. Snippet carries the untruncated preview text even
// though the prompt line is truncated, so UI layers can show the full
// passage.
type Citation struct {
	SID     string  `json:"sid"`
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title,omitempty"`
	Year    int     `json:"year,omitempty"`
	Page    int     `json:"page,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// BuildPromptEntries converts prepared hits into prompt source lines and the
// parallel citation records. Lines look like
//
//	[S2] Irrigation Review (2021, doc42, p.14): <snippet>
//
// with the parenthesized metadata omitted field-by-field when absent.
func BuildPromptEntries(hits []Hit, snippetLimit int) ([]string, []Citation) {
	lines := make([]string, 0, len(hits))
	citations := make([]Citation, 0, len(hits))

	for i, hit := range hits {
		sid := fmt.Sprintf("S%d", i+1)
		meta := hit.Meta

		full := metaString(meta, "preview", "text")
		snippet := truncateRunes(full, snippetLimit)
		if len([]rune(full)) > snippetLimit {
			snippet += "…"
		}

		title := metaString(meta, "title", "doc_id", "id")
		if title == "" {
			title = "Source"
		}
		docID := metaString(meta, "doc_id", "id")
		year, hasYear := metaInt(meta, "year")
		page, hasPage := metaInt(meta, "page")

		var metaParts []string
		if hasYear {
			metaParts = append(metaParts, fmt.Sprintf("%d", year))
		}
		if docID != "" {
			metaParts = append(metaParts, docID)
		}
		if hasPage {
			metaParts = append(metaParts, fmt.Sprintf("p.%d", page))
		}
		suffix := ""
		if len(metaParts) > 0 {
			suffix = " (" + strings.Join(metaParts, ", ") + ")"
		}

		lines = append(lines, fmt.Sprintf("[%s] %s%s: %s", sid, title, suffix, snippet))

		citation := Citation{
			SID:     sid,
			DocID:   docID,
			Title:   metaString(meta, "title"),
			URL:     metaString(meta, "url"),
			Score:   hit.Score,
			Snippet: full,
		}
		if hasYear {
			citation.Year = year
		}
		if hasPage {
			citation.Page = page
		}
		citations = append(citations, citation)
	}

	return lines, citations
}

// FormatSnippet truncates text to at most length runes, appending an ellipsis
// when shortened. Shared by the CLI's pretty output.
func FormatSnippet(text string, length int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if len([]rune(text)) <= length {
		return text
	}
	return truncateRunes(text, length) + "…"
}

// FormatMetaSuffix builds a human-readable "(Title, 2024, p5)" suffix from
// metadata, skipping missing fields.
func FormatMetaSuffix(meta map[string]any) string {
	var parts []string
	if title := metaString(meta, "title"); title != "" {
		parts = append(parts, title)
	}
	if year, ok := metaInt(meta, "year"); ok {
		parts = append(parts, fmt.Sprintf("%d", year))
	}
	if page, ok := metaInt(meta, "page"); ok {
		parts = append(parts, fmt.Sprintf("p%d", page))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
