package tape

import "github.com/Fuuurma/FinanceHub-sub000/internal/domain"

// Default buffer capacities, matching the feed service defaults.
const (
	DefaultHistorySize = 1000
	DefaultDisplaySize = 100
)

// Tape is the bounded trade history for one symbol: a raw-history ring used
// by analytics (volume profile, whale detection, trade flow) and a smaller
// display ring for the time & sales view. Aggregated trades are also kept in
// their own ring.
type Tape struct {
	trades    *Ring[domain.Trade]
	aggTrades *Ring[domain.AggTrade]
	display   *Ring[domain.TapeEntry]
}

// New creates a tape with the given raw-history and display capacities.
// Non-positive capacities fall back to the defaults.
func New(historySize, displaySize int) *Tape {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	if displaySize <= 0 {
		displaySize = DefaultDisplaySize
	}
	return &Tape{
		trades:    NewRing[domain.Trade](historySize),
		aggTrades: NewRing[domain.AggTrade](historySize),
		display:   NewRing[domain.TapeEntry](displaySize),
	}
}

// Push records a raw trade into the history and display rings.
func (t *Tape) Push(tr domain.Trade) {
	t.trades.Push(tr)
	t.display.Push(domain.NewTapeEntry(tr))
}

// PushAgg records an aggregated trade. It also enters the raw history so
// statistics and analytics see aggregated feeds.
func (t *Tape) PushAgg(at domain.AggTrade) {
	t.aggTrades.Push(at)
	t.trades.Push(at.Trade)
	t.display.Push(domain.NewTapeEntry(at.Trade))
}

// Recent returns the most recent limit trades in chronological order.
func (t *Tape) Recent(limit int) []domain.Trade {
	return t.trades.Last(limit)
}

// Window returns the last n raw trades for flow analysis.
func (t *Tape) Window(n int) []domain.Trade {
	return t.trades.Last(n)
}

// History returns the full retained raw history in chronological order.
func (t *Tape) History() []domain.Trade {
	return t.trades.All()
}

// TimeAndSales returns the most recent limit display entries.
func (t *Tape) TimeAndSales(limit int) []domain.TapeEntry {
	return t.display.Last(limit)
}

// RecentAgg returns the most recent limit aggregated trades.
func (t *Tape) RecentAgg(limit int) []domain.AggTrade {
	return t.aggTrades.Last(limit)
}

// Len returns the number of raw trades currently retained.
func (t *Tape) Len() int {
	return t.trades.Len()
}
