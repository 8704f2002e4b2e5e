package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
	"github.com/custodia-labs/tidemark/internal/logger"
	"github.com/custodia-labs/tidemark/internal/normalisers/recordtext"
	"github.com/custodia-labs/tidemark/internal/normalisers/timestamp"
)

// scanAttempts is how many times a failed source scan is restarted from
// the beginning before giving up.
const scanAttempts = 3

// Fetcher pulls recent records out of the item store, normalises their
// timestamps, drops records without usable text and deduplicates the
// remainder.
type Fetcher struct {
	store driven.ItemStore

	// now is the clock, overridable in tests.
	now func() time.Time
}

// NewFetcher creates a fetcher backed by the given item store.
func NewFetcher(store driven.ItemStore) *Fetcher {
	return &Fetcher{
		store: store,
		now:   time.Now,
	}
}

// Fetch returns the usable records from source within the look-back
// window of hours. A non-positive window short-circuits to an empty
// result without touching the store.
//
// A failed scan is retried from scratch: partial results and the dedup
// state accumulated so far are discarded so a retry can never produce
// duplicates or a mixed-generation result set.
func (f *Fetcher) Fetch(ctx context.Context, source domain.Source, hours int) ([]domain.Record, error) {
	if hours <= 0 {
		logger.Info("Hours <= 0 supplied: skipping %s scan and returning no records", source.Name)
		return []domain.Record{}, nil
	}

	cutoff := f.now().Unix() - int64(hours)*3600

	var (
		records []domain.Record
		lastErr error
	)
	for attempt := 1; attempt <= scanAttempts; attempt++ {
		records, lastErr = f.scanOnce(ctx, source, cutoff)
		if lastErr == nil {
			break
		}
		logger.Warn("Scan attempt %d for %s failed: %v", attempt, source.Name, lastErr)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrScanFailed, lastErr)
	}

	logger.Info("Fetched %d usable records from %s", len(records), source.Name)
	return records, nil
}

// scanOnce walks the full source scan and applies the cutoff, text and
// dedup filters. The seen set is local to the call.
func (f *Fetcher) scanOnce(ctx context.Context, source domain.Source, cutoff int64) ([]domain.Record, error) {
	records := []domain.Record{}
	seen := make(map[domain.DedupKey]bool)

	cursor := ""
	for {
		items, next, err := f.store.ScanPage(ctx, source.Name, cursor)
		if err != nil {
			return nil, err
		}

		for _, attrs := range items {
			ts, hasTS := timestamp.FromAttrs(attrs)

			if !source.SkipCutoff {
				if !hasTS || ts < cutoff {
					continue
				}
			}

			text, ok := recordtext.Extract(attrs)
			if !ok {
				continue
			}

			record := domain.Record{
				Source:       source.Name,
				Attrs:        attrs,
				Text:         text,
				Timestamp:    ts,
				HasTimestamp: hasTS,
			}

			if key, ok := record.DedupKey(); ok {
				if seen[key] {
					continue
				}
				seen[key] = true
			}

			records = append(records, record)
		}

		if next == "" {
			break
		}
		cursor = next
	}

	return records, nil
}
