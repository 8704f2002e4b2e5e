package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is a single item scanned from a source table, carrying the
// raw attributes alongside the values derived from them during fetch.
type Record struct {
	// Source is the name of the table the record came from.
	Source string

	// Attrs holds the item's attributes keyed by attribute name.
	Attrs map[string]any

	// Text is the extracted prompt text.
	Text string

	// Timestamp is the normalised event time as Unix seconds.
	Timestamp int64

	// HasTimestamp reports whether a usable event time was found.
	HasTimestamp bool
}

// DedupKey identifies a record for de-duplication within one fetch.
type DedupKey struct {
	// Kind is "url" or "id" depending on which attribute produced the key.
	Kind string

	// Value is the normalised key value.
	Value string
}

// Attribute names checked in order when deriving a dedup key, each
// name alongside its capitalised form ("url" then "Url").
var (
	urlKeys = []string{"url", "Url", "link", "Link", "source_url", "Source_url", "guid", "Guid"}
	idKeys  = []string{"id", "Id", "pk", "Pk", "record_id", "Record_id", "article_id", "Article_id"}
)

// DedupKey derives the identity key used to drop duplicates within a
// single fetch. URL-like attributes win over ID-like ones: the first
// non-empty string URL yields ("url", trimmed lowercase value), else
// the first non-nil ID yields ("id", stringified value). Records with
// no derivable key return ok=false and are never treated as duplicates.
func (r Record) DedupKey() (DedupKey, bool) {
	for _, k := range urlKeys {
		if v, present := r.Attrs[k]; present {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) != "" {
				return DedupKey{Kind: "url", Value: strings.ToLower(strings.TrimSpace(s))}, true
			}
		}
	}
	for _, k := range idKeys {
		if v, present := r.Attrs[k]; present && v != nil {
			return DedupKey{Kind: "id", Value: Stringify(v)}, true
		}
	}
	return DedupKey{}, false
}

// ID returns the record's literal "id" attribute stringified, with
// ok=false when the attribute is absent or nil. An empty string id is
// still an id.
func (r Record) ID() (string, bool) {
	v, present := r.Attrs["id"]
	if !present || v == nil {
		return "", false
	}
	return Stringify(v), true
}

// Stringify renders an attribute value the way it should appear in
// prompt text and request metadata. Numbers keep their source notation
// where possible.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
