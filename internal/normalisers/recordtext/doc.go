// Package recordtext extracts the text to analyse from a record's
// attributes. Tables name the interesting column differently
// ("summary", "headline", "trend_breakdown"), so extraction walks a
// generous candidate list instead of hard-coding a single field. The
// same list drives both the fetch usability check and the request
// formatting so the two stages never disagree about which records
// carry text.
package recordtext
