// Package retrieval turns raw nearest-neighbor hits into a ranked,
// deduplicated, citation-annotated context set. It is shared by the API
// engine, the query CLI, and the question router so all three agree on
// filtering, diversification, and stitching semantics.
package retrieval

import (
	"strconv"
	"strings"
)

// Defaults and clamps for retrieval settings.
const (
	DefaultNeighbors       = 1
	DefaultPerDoc          = 2
	DefaultMaxPreviewChars = 1800
	DefaultMaxSnippetChars = 500

	minPreviewChars = 100
	minSnippetChars = 120
)

// Settings is the canonical form of a loosely-typed filter payload.
// All numeric fields are clamped to valid minimums; malformed input falls
// back to defaults rather than erroring.
type Settings struct {
	Contains        []string // lowercased, deduplicated, first-seen order
	YearMin         *int
	YearMax         *int
	Neighbors       int
	PerDoc          int
	MaxPreviewChars int
	MaxSnippetChars int
	NoTruncate      bool // print full stitched previews, ignoring MaxPreviewChars
}

// Resolve normalizes a raw filter payload from the API, CLI flags, or config
// into Settings. It is total: any malformed value is absorbed by a default.
func Resolve(raw map[string]any) Settings {
	s := Settings{
		Neighbors:       DefaultNeighbors,
		PerDoc:          DefaultPerDoc,
		MaxPreviewChars: DefaultMaxPreviewChars,
		MaxSnippetChars: DefaultMaxSnippetChars,
	}
	if raw == nil {
		return s
	}

	s.Contains = resolveContains(raw["contains"])
	s.YearMin = toIntPtr(raw["year_min"])
	s.YearMax = toIntPtr(raw["year_max"])
	s.Neighbors = toIntClamped(raw["neighbors"], DefaultNeighbors, 0)
	s.PerDoc = toIntClamped(raw["per_doc"], DefaultPerDoc, 1)
	s.MaxPreviewChars = toIntClamped(raw["max_preview_chars"], DefaultMaxPreviewChars, minPreviewChars)
	s.MaxSnippetChars = toIntClamped(raw["max_snippet_chars"], DefaultMaxSnippetChars, minSnippetChars)
	s.NoTruncate = toBool(raw["no_truncate"])

	return s
}

// Map renders the settings back into the raw payload shape.
// Resolve(s.Map()) reproduces s exactly, which keeps settings stable when a
// caller round-trips them through a filter payload.
func (s Settings) Map() map[string]any {
	raw := map[string]any{
		"contains":          append([]string(nil), s.Contains...),
		"neighbors":         s.Neighbors,
		"per_doc":           s.PerDoc,
		"max_preview_chars": s.MaxPreviewChars,
		"max_snippet_chars": s.MaxSnippetChars,
	}
	if s.YearMin != nil {
		raw["year_min"] = *s.YearMin
	}
	if s.YearMax != nil {
		raw["year_max"] = *s.YearMax
	}
	if s.NoTruncate {
		raw["no_truncate"] = true
	}
	return raw
}

// toBool recognizes bools and common string forms; anything else is false.
func toBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		}
	}
	return false
}

// resolveContains accepts a comma-separated string or a list of strings.
// Entries are trimmed, lowercased, and deduplicated preserving first-seen order.
func resolveContains(value any) []string {
	var entries []string
	switch v := value.(type) {
	case string:
		entries = strings.Split(v, ",")
	case []string:
		entries = v
	case []any:
		for _, item := range v {
			entries = append(entries, anyToString(item))
		}
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, entry := range entries {
		kw := strings.ToLower(strings.TrimSpace(entry))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func anyToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// toIntPtr parses a loosely-typed value to an int, or nil on any failure.
func toIntPtr(value any) *int {
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		return &v
	case int32:
		n := int(v)
		return &n
	case int64:
		n := int(v)
		return &n
	case float64:
		n := int(v)
		return &n
	case float32:
		n := int(v)
		return &n
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// toIntClamped parses a loosely-typed value to an int with a default and a
// minimum bound.
func toIntClamped(value any, def, minimum int) int {
	p := toIntPtr(value)
	if p == nil {
		return def
	}
	if *p < minimum {
		return minimum
	}
	return *p
}
