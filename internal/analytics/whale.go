package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// minWhaleHistory is the minimum retained history for a stable average.
const minWhaleHistory = 50

// LargeTrades flags trades whose quantity is at least thresholdMultiplier
// times the average quantity over the whole history, sorted descending by
// quantity and truncated to limit. It returns nil when the history holds
// fewer than 50 trades; too little history is an expected condition.
func LargeTrades(history []domain.Trade, thresholdMultiplier decimal.Decimal, limit int) []domain.Trade {
	if len(history) < minWhaleHistory {
		return nil
	}

	total := decimal.Zero
	for _, t := range history {
		total = total.Add(t.Quantity)
	}
	avg := total.Div(decimal.NewFromInt(int64(len(history))))
	threshold := avg.Mul(thresholdMultiplier)

	var large []domain.Trade
	for _, t := range history {
		if t.Quantity.GreaterThanOrEqual(threshold) {
			large = append(large, t)
		}
	}

	sort.SliceStable(large, func(i, j int) bool {
		return large[i].Quantity.GreaterThan(large[j].Quantity)
	})
	if limit > 0 && len(large) > limit {
		large = large[:limit]
	}
	return large
}
