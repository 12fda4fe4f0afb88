// Package scrape runs the full multi-source aggregation pass: adapters in
// priority order, cross-source deduplication, and the monthly budget gate
// for metered sources.
package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/source"
)

// QuotaSafetyMargin is the minimum remaining monthly budget required before
// a metered source is allowed to run.
const QuotaSafetyMargin = 5

// Budget reports the remaining monthly call budget for a source. Backed by
// the persistent usage counters.
type Budget interface {
	Remaining(ctx context.Context, src string) (int, error)
}

// Source is one entry in the scrape order. Metered sources are consulted
// against the budget and skipped entirely when it is nearly spent; that skip
// is a policy decision, not an error.
type Source struct {
	Adapter source.Adapter
	Metered bool
}

// Counts maps source name to the number of HTTP calls it made.
type Counts map[string]int

// Scraper invokes the configured adapters strictly sequentially, free
// sources first. It owns the cross-source seen-ids set and the call-count
// accumulator for the duration of one run.
type Scraper struct {
	sources []Source
	budget  Budget
	logger  *zap.Logger
}

func New(sources []Source, budget Budget, logger *zap.Logger) *Scraper {
	return &Scraper{
		sources: sources,
		budget:  budget,
		logger:  logger,
	}
}

// Run executes one scrape pass. No single source failing aborts the run;
// failures are logged and the next source is attempted. The returned counts
// include calls made by sources that later failed.
func (s *Scraper) Run(ctx context.Context, status *Status) (*jobs.Listings, Counts, error) {
	merged := &jobs.Listings{}
	seen := make(map[string]struct{})
	counts := make(Counts, len(s.sources))

	for _, src := range s.sources {
		name := src.Adapter.Name()
		counts[name] = 0

		if src.Metered {
			skip, err := s.overBudget(ctx, name)
			if err != nil {
				s.logger.Warn("budget check failed, skipping metered source",
					zap.String("source", name),
					zap.Error(err),
				)
				continue
			}
			if skip {
				s.logger.Info("skipping metered source",
					zap.String("source", name),
					zap.String("reason", "monthly budget nearly exhausted"),
				)
				status.Update(fmt.Sprintf("%s skipped: low budget", name))
				continue
			}
		}

		status.Update(fmt.Sprintf("fetching %s", name))

		list, calls, err := src.Adapter.Fetch(ctx)
		counts[name] = calls
		if err != nil {
			if ctx.Err() != nil {
				return merged, counts, ctx.Err()
			}
			s.logger.Warn("source failed",
				zap.String("source", name),
				zap.Error(err),
			)
			status.Update(fmt.Sprintf("%s failed: %v", name, err))
			continue
		}

		added := s.merge(merged, seen, list)
		s.logger.Info("source merged",
			zap.String("source", name),
			zap.Int("fetched", list.Len()),
			zap.Int("added", added),
			zap.Int("calls", calls),
		)
	}

	// Identical postings get re-listed under different source-specific
	// ids; a normalized title+company fingerprint catches those. Only the
	// removed count is reported.
	if removed := merged.DedupByFingerprint(); removed > 0 {
		s.logger.Info("cross-source dedup", zap.Int("removed", removed))
	}

	status.Update(fmt.Sprintf("%d unique jobs found", merged.Len()))
	s.logger.Info("scrape complete",
		zap.Int("jobs", merged.Len()),
		zap.Any("calls", counts),
	)

	return merged, counts, nil
}

func (s *Scraper) merge(merged *jobs.Listings, seen map[string]struct{}, list *jobs.Listings) int {
	added := 0
	for _, item := range list.Items {
		if item.JobID == "" {
			continue
		}
		if _, ok := seen[item.JobID]; ok {
			continue
		}
		seen[item.JobID] = struct{}{}
		merged.Append(item)
		added++
	}
	return added
}

func (s *Scraper) overBudget(ctx context.Context, name string) (bool, error) {
	if s.budget == nil {
		return false, nil
	}
	remaining, err := s.budget.Remaining(ctx, name)
	if err != nil {
		return false, err
	}
	return remaining < QuotaSafetyMargin, nil
}
