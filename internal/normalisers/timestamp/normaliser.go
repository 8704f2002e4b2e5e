package timestamp

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Keys lists the recognised event-time attribute names in priority
// order. Matching against attribute names is case-insensitive, so
// "Timestamp" and "publishedAt" are found too.
var Keys = []string{
	// Generic
	"timestamp",
	"ts",
	"time",
	"date",
	"datetime",
	"created",
	"created_at",
	"createdat",

	// Published / news specific
	"published",
	"published_at",
	"publishedat",
	"pub_date",

	// Historical hold-overs
	"est_timestamp",
}

// isoLayouts covers the ISO 8601 shapes seen across source tables:
// date only, date and time separated by "T" or a space, optional
// fractional seconds, optional "Z" or numeric offset. Layouts without
// an offset parse as UTC.
var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
}

// easternZones maps the two US-Eastern abbreviations that appear in
// legacy feeds to fixed offsets. ISO parsers reject bare zone
// abbreviations, so these are handled separately.
var easternZones = []struct {
	name   string
	suffix string
	offset int
}{
	{"EST", " EST", -5 * 60 * 60},
	{"EDT", " EDT", -4 * 60 * 60},
}

// FromAttrs scans attrs for the first recognised key whose value
// normalises to epoch seconds. Keys are tried in priority order, and a
// recognised key with an unusable value does not stop the search.
func FromAttrs(attrs map[string]any) (int64, bool) {
	if len(attrs) == 0 {
		return 0, false
	}

	// Index attribute names by their folded form. Names are kept
	// sorted so the result never depends on map iteration order.
	byLower := make(map[string][]string, len(attrs))
	for name := range attrs {
		l := strings.ToLower(name)
		byLower[l] = append(byLower[l], name)
	}

	for _, key := range Keys {
		names := byLower[key]
		sort.Strings(names)
		for _, name := range names {
			if ts, ok := Normalise(attrs[name]); ok {
				return ts, true
			}
		}
	}
	return 0, false
}

// Normalise converts a single attribute value to Unix epoch seconds.
// Fractional values truncate towards zero. Numeric attributes are
// taken at face value; only numeric strings get the millisecond
// heuristic.
func Normalise(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float32:
		return int64(t), true
	case float64:
		return int64(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case string:
		return normaliseString(t)
	}
	return 0, false
}

func normaliseString(s string) (int64, bool) {
	// Fast path: the value may be purely numeric, possibly quoted
	// epoch milliseconds.
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		if f > 1e12 {
			f /= 1000.0
		}
		return int64(f), true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}

	return parseEastern(s)
}

// parseEastern handles "2006-01-02 15:04:05 EST" style values. A
// matched abbreviation with an unparseable remainder fails outright
// rather than falling through to other interpretations.
func parseEastern(s string) (int64, bool) {
	v := strings.TrimSpace(s)
	for _, z := range easternZones {
		if !strings.HasSuffix(v, z.suffix) {
			continue
		}

		cleaned := strings.TrimSpace(strings.TrimSuffix(v, z.suffix))
		layout := "2006-01-02 15:04:05"
		if strings.Contains(cleaned, "T") {
			layout = "2006-01-02T15:04:05"
		}

		t, err := time.ParseInLocation(layout, cleaned, time.FixedZone(z.name, z.offset))
		if err != nil {
			return 0, false
		}
		return t.Unix(), true
	}
	return 0, false
}
