package recordtext

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/custodia-labs/tidemark/internal/core/domain"
)

// Candidates lists the attribute names searched for usable text, in
// priority order. Matching is case-insensitive.
var Candidates = []string{
	"summary",
	"text",
	"content",
	"review_summary",
	"review_text",
	"description",
	"body",
	"article",
	"title",
	"headline",
	"selftext",
	"query",
	"keyword",
	"term",
	"trend_name",
	"trend_breakdown",
	"company",
	"symbol",

	// Trend data specific fields
	"percent_increase",
	"search_volume",
	"source_page",
	"started_time_ago",

	// Market data columns
	"avgvolume30",
	"bollingerlo",
	"bollingerup",
	"changepct",
	"changepctstr",
	"highprice",
	"lastprice",
	"lastpricetime",
	"lastupdated",
	"lastvolume",
	"lowprice",
	"prevclose",
	"rsi14",
	"sma20",
	"week52high",
	"week52low",
}

// Extract returns the prompt text for attrs. For each candidate in
// order: a non-blank string wins trimmed, a number wins stringified,
// and a list or map wins as compact JSON. Candidates that are absent,
// blank, or fail to serialise are passed over. ok is false when no
// candidate yields text.
func Extract(attrs map[string]any) (string, bool) {
	if len(attrs) == 0 {
		return "", false
	}

	lower := lowerView(attrs)
	for _, key := range Candidates {
		v, present := lower[key]
		if !present {
			continue
		}

		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s, true
			}
		case int, int32, int64, float32, float64, json.Number:
			return domain.Stringify(t), true
		case []any, map[string]any:
			if s, ok := compactJSON(t); ok {
				return s, true
			}
		}
	}
	return "", false
}

// lowerView indexes attrs by folded attribute name. When two names
// collide under folding, the lexicographically larger name wins,
// keeping the result independent of map iteration order.
func lowerView(attrs map[string]any) map[string]any {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(attrs))
	for _, name := range names {
		out[strings.ToLower(name)] = attrs[name]
	}
	return out
}

// compactJSON renders structured values the way the model should see
// them: no extra whitespace, no HTML escaping.
func compactJSON(v any) (string, bool) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", false
	}

	s := strings.TrimSuffix(buf.String(), "\n")
	if s == "" {
		return "", false
	}
	return s, true
}
