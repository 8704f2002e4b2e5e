package batchout

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Parse errors. Callers decide whether a skipped line deserves a log
// line, so the reasons stay distinguishable.
var (
	// ErrNotJSON indicates the line is not valid JSON at all.
	ErrNotJSON = errors.New("line is not valid JSON")

	// ErrEnvelope indicates the line lacks the expected response
	// envelope or reports a non-success status code.
	ErrEnvelope = errors.New("unexpected envelope shape")
)

// Result is the outcome of parsing one output line.
type Result struct {
	// CustomID is the custom_id of the originating request, empty
	// when the envelope carries none.
	CustomID string

	// Rows holds the flattened answer objects with provenance
	// attached under _source_custom_id and _source_list_index.
	Rows []map[string]any

	// RawFallback is set when the answer could not be repaired into
	// JSON and the literal text was kept under "raw_content".
	RawFallback bool
}

var (
	commentRe       = regexp.MustCompile(`//[^\n\r]*([\n\r])`)
	plusNumberRe    = regexp.MustCompile(`:\s*\+([0-9.]+)`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	commaNumberRe   = regexp.MustCompile(`(:\s*)(-?\d{1,3}(?:,\d{3})+(?:\.\d+)?)([,}\]])`)
)

// Parse extracts the structured answer from one batch output line.
// Lines that are not JSON return ErrNotJSON; envelopes without a
// 200-status chat completion return ErrEnvelope. An answer that
// survives neither direct decoding nor repair is kept verbatim under
// "raw_content" rather than dropped.
func Parse(line []byte) (Result, error) {
	if !gjson.ValidBytes(line) {
		return Result{}, ErrNotJSON
	}
	envelope := gjson.ParseBytes(line)

	response := envelope.Get("response")
	if !response.IsObject() {
		return Result{}, ErrEnvelope
	}
	if sc := response.Get("status_code"); sc.Type != gjson.Number || sc.Int() != 200 {
		return Result{}, ErrEnvelope
	}

	body := response.Get("body")
	if !body.IsObject() {
		return Result{}, ErrEnvelope
	}
	choices := body.Get("choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return Result{}, ErrEnvelope
	}
	message := choices.Array()[0].Get("message")
	if !message.IsObject() {
		return Result{}, ErrEnvelope
	}
	content := message.Get("content")
	if content.Type != gjson.String {
		return Result{}, ErrEnvelope
	}

	customID := envelope.Get("custom_id")
	res := Result{CustomID: customID.String()}

	cleaned := StripFences(content.String())
	inner, ok := decode(cleaned)
	if !ok {
		inner, ok = decode(Repair(cleaned))
	}
	if !ok {
		inner = map[string]any{"raw_content": cleaned}
		res.RawFallback = true
	}

	res.Rows = flatten(inner, customID.Value())
	return res, nil
}

// StripFences removes a surrounding markdown code fence, including an
// optional language hint on the opening line.
func StripFences(content string) string {
	cleaned := strings.TrimSpace(content)
	if !strings.HasPrefix(cleaned, "```") || !strings.HasSuffix(cleaned, "```") {
		return cleaned
	}

	lines := strings.Split(cleaned, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Repair fixes the near-JSON constructs models habitually produce.
// This is not JSON5: only line comments, leading plus signs on
// numbers, trailing commas, and thousands separators are handled.
func Repair(s string) string {
	out := commentRe.ReplaceAllString(s, "$1")
	out = plusNumberRe.ReplaceAllString(out, ": $1")
	out = trailingCommaRe.ReplaceAllString(out, "$1")
	out = commaNumberRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := commaNumberRe.FindStringSubmatch(m)
		return parts[1] + strings.ReplaceAll(parts[2], ",", "") + parts[3]
	})
	return out
}

// decode parses s as a single JSON document, keeping numbers in their
// source notation.
func decode(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}

// flatten lifts the decoded answer into one row per object. Array
// elements additionally record their position so multi-object answers
// stay ordered after aggregation.
func flatten(inner any, customID any) []map[string]any {
	switch t := inner.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(t))
		for i, elem := range t {
			row, ok := elem.(map[string]any)
			if !ok {
				row = map[string]any{"raw_value": elem}
			}
			row["_source_list_index"] = i
			row["_source_custom_id"] = customID
			rows = append(rows, row)
		}
		return rows
	case map[string]any:
		t["_source_custom_id"] = customID
		return []map[string]any{t}
	default:
		return []map[string]any{{"raw_value": t, "_source_custom_id": customID}}
	}
}
