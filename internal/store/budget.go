package store

import "context"

// MonthlyBudget adapts the usage counters into the orchestrator's budget
// check. Sources without a configured limit are treated as unlimited.
type MonthlyBudget struct {
	Store  *Store
	Limits map[string]int
}

const unlimited = 1 << 30

// Remaining returns the calls left this month for src.
func (b *MonthlyBudget) Remaining(ctx context.Context, src string) (int, error) {
	limit, ok := b.Limits[src]
	if !ok || limit <= 0 {
		return unlimited, nil
	}

	used, err := b.Store.Usage(ctx, src)
	if err != nil {
		return 0, err
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
