package domain

// DefaultSourceName is scanned when no sources are enabled in
// configuration and none are named on the command line.
const DefaultSourceName = "DailySourceReviews"

// DefaultSkipCutoff names sources whose records carry no usable event
// time. They bypass the recency cutoff and the watermark filter unless
// configuration says otherwise.
var DefaultSkipCutoff = []string{"GoogleTrendsHistorical"}

// Source is a configured input table.
type Source struct {
	// Name is the table name as known to the item store.
	Name string

	// SkipCutoff exempts the source from the recency cutoff and the
	// watermark filter. Set it for tables without event times.
	SkipCutoff bool

	// Prompt names the system prompt to use for this source. Empty
	// means the default prompt.
	Prompt string
}

// NewSource builds a Source with defaults applied: sources listed in
// DefaultSkipCutoff start exempt from the cutoff.
func NewSource(name string) Source {
	s := Source{Name: name}
	for _, n := range DefaultSkipCutoff {
		if n == name {
			s.SkipCutoff = true
			break
		}
	}
	return s
}
