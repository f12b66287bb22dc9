package book

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// DefaultImbalanceLevels is the depth used for imbalance readings when a
// caller does not specify one.
const DefaultImbalanceLevels = 10

// Snapshot is an immutable view of one symbol's order book. Bids are sorted
// descending by price, asks ascending. All query methods are pure and safe
// for concurrent use.
type Snapshot struct {
	Symbol       string
	Bids         []domain.PriceLevel
	Asks         []domain.PriceLevel
	LastUpdateID uint64
	Time         time.Time
	Stale        bool
	StaleReason  string
}

// BestBid returns the highest bid level.
func (s *Snapshot) BestBid() (domain.PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return domain.PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask level.
func (s *Snapshot) BestAsk() (domain.PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return domain.PriceLevel{}, false
	}
	return s.Asks[0], true
}

// Spread is best ask minus best bid; absent unless both sides are non-empty.
func (s *Snapshot) Spread() (decimal.Decimal, bool) {
	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	if !okB || !okA {
		return decimal.Decimal{}, false
	}
	return ask.Price.Sub(bid.Price), true
}

// SpreadPercent is the spread relative to the best bid, as a percentage.
func (s *Snapshot) SpreadPercent() (decimal.Decimal, bool) {
	bid, okB := s.BestBid()
	spread, ok := s.Spread()
	if !ok || !okB || bid.Price.IsZero() {
		return decimal.Decimal{}, false
	}
	return spread.Div(bid.Price).Mul(hundred), true
}

// MidPrice is the midpoint between best bid and best ask.
func (s *Snapshot) MidPrice() (decimal.Decimal, bool) {
	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	if !okB || !okA {
		return decimal.Decimal{}, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// TopBids returns at most n bid levels, highest price first.
func (s *Snapshot) TopBids(n int) []domain.PriceLevel {
	if n > len(s.Bids) {
		n = len(s.Bids)
	}
	if n < 0 {
		n = 0
	}
	return s.Bids[:n]
}

// TopAsks returns at most n ask levels, lowest price first.
func (s *Snapshot) TopAsks(n int) []domain.PriceLevel {
	if n > len(s.Asks) {
		n = len(s.Asks)
	}
	if n < 0 {
		n = 0
	}
	return s.Asks[:n]
}

// BidVolume sums quantity over every bid level.
func (s *Snapshot) BidVolume() decimal.Decimal {
	return sumQuantity(s.Bids)
}

// AskVolume sums quantity over every ask level.
func (s *Snapshot) AskVolume() decimal.Decimal {
	return sumQuantity(s.Asks)
}

func sumQuantity(lvls []domain.PriceLevel) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range lvls {
		total = total.Add(lvl.Quantity)
	}
	return total
}

// DepthAt returns the cumulative quantity at or better than price on the
// given side, scanning at most maxLevels levels best-price-first. For bids
// "at or better" means price >= the target, for asks price <= the target.
func (s *Snapshot) DepthAt(price decimal.Decimal, side domain.BookSide, maxLevels int) decimal.Decimal {
	lvls := s.Bids
	if side == domain.AskSide {
		lvls = s.Asks
	}
	total := decimal.Zero
	for i, lvl := range lvls {
		if maxLevels > 0 && i >= maxLevels {
			break
		}
		if side == domain.BidSide && lvl.Price.LessThan(price) {
			break
		}
		if side == domain.AskSide && lvl.Price.GreaterThan(price) {
			break
		}
		total = total.Add(lvl.Quantity)
	}
	return total
}

// Imbalance is the bid/ask volume ratio over the top N levels. Infinite is
// the sentinel for zero ask volume; callers omit the value entirely when a
// book side is empty.
type Imbalance struct {
	Ratio    decimal.Decimal
	Infinite bool
}

// String renders the ratio, or "inf" for the zero-ask-volume sentinel.
func (im Imbalance) String() string {
	if im.Infinite {
		return "inf"
	}
	return im.Ratio.String()
}

// BBOSample is one best-bid/best-ask reading taken at a book update.
type BBOSample struct {
	Bid  domain.PriceLevel `json:"bid"`
	Ask  domain.PriceLevel `json:"ask"`
	Time time.Time         `json:"time"`
}

// Imbalance computes bid volume / ask volume over the top n levels per side.
func (s *Snapshot) Imbalance(n int) Imbalance {
	bidVolume := sumQuantity(s.TopBids(n))
	askVolume := sumQuantity(s.TopAsks(n))
	if askVolume.IsZero() {
		return Imbalance{Infinite: true}
	}
	return Imbalance{Ratio: bidVolume.Div(askVolume)}
}

// PriceImpact walks the opposing side best-price-first, filling quantity, and
// returns the resulting slippage as a percentage of the best opposing price.
// Adverse movement is positive for both buy and sell. The result is absent
// when the book cannot fill the full quantity.
func (s *Snapshot) PriceImpact(quantity decimal.Decimal, side domain.Side) (decimal.Decimal, bool) {
	if quantity.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	lvls := s.Asks
	if side == domain.SideSell {
		lvls = s.Bids
	}
	if len(lvls) == 0 {
		return decimal.Decimal{}, false
	}

	remaining := quantity
	totalValue := decimal.Zero
	for _, lvl := range lvls {
		if remaining.Sign() <= 0 {
			break
		}
		fill := decimal.Min(remaining, lvl.Quantity)
		totalValue = totalValue.Add(lvl.Price.Mul(fill))
		remaining = remaining.Sub(fill)
	}
	if remaining.Sign() > 0 {
		return decimal.Decimal{}, false
	}

	avgPrice := totalValue.Div(quantity)
	best := lvls[0].Price
	if side == domain.SideSell {
		return best.Sub(avgPrice).Div(best).Mul(hundred), true
	}
	return avgPrice.Sub(best).Div(best).Mul(hundred), true
}

// Summary assembles the read-side book view with the top n levels per side.
func (s *Snapshot) Summary(n int) domain.BookSummary {
	sum := domain.BookSummary{
		Symbol:         s.Symbol,
		LastUpdateID:   s.LastUpdateID,
		LastUpdateTime: s.Time,
		Stale:          s.Stale,
		StaleReason:    s.StaleReason,
		Bids:           s.TopBids(n),
		Asks:           s.TopAsks(n),
	}
	if bid, ok := s.BestBid(); ok {
		b := bid
		sum.BestBid = &b
	}
	if ask, ok := s.BestAsk(); ok {
		a := ask
		sum.BestAsk = &a
	}
	if spread, ok := s.Spread(); ok {
		sum.Spread = &spread
	}
	if pct, ok := s.SpreadPercent(); ok {
		sum.SpreadPercent = &pct
	}
	if len(s.Bids) > 0 && len(s.Asks) > 0 {
		sum.Imbalance = s.Imbalance(DefaultImbalanceLevels).String()
	}
	return sum
}
