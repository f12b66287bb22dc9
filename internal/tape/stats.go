package tape

import (
	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// Stats is the monotonically accumulated per-symbol trade statistics. VWAPs
// and ratios are derived on read, never stored, so they cannot go stale.
type Stats struct {
	totalTrades  int64
	buyTrades    int64
	sellTrades   int64
	buyVolume    decimal.Decimal
	sellVolume   decimal.Decimal
	buyNotional  decimal.Decimal
	sellNotional decimal.Decimal
	priceHigh    decimal.Decimal
	priceLow     decimal.Decimal
	havePrice    bool
}

// NewStats creates empty statistics.
func NewStats() *Stats {
	return &Stats{
		buyVolume:    decimal.Zero,
		sellVolume:   decimal.Zero,
		buyNotional:  decimal.Zero,
		sellNotional: decimal.Zero,
	}
}

// Record folds one trade into the running aggregates. O(1), no history kept.
func (s *Stats) Record(t domain.Trade) {
	s.totalTrades++

	if t.Side() == domain.SideBuy {
		s.buyTrades++
		s.buyVolume = s.buyVolume.Add(t.Quantity)
		s.buyNotional = s.buyNotional.Add(t.Value())
	} else {
		s.sellTrades++
		s.sellVolume = s.sellVolume.Add(t.Quantity)
		s.sellNotional = s.sellNotional.Add(t.Value())
	}

	if !s.havePrice || t.Price.GreaterThan(s.priceHigh) {
		s.priceHigh = t.Price
	}
	if !s.havePrice || t.Price.LessThan(s.priceLow) {
		s.priceLow = t.Price
	}
	s.havePrice = true
}

// View computes the derived statistics. Every ratio/VWAP field is nil when
// its denominator is zero.
func (s *Stats) View() domain.TradeStatsView {
	totalVolume := s.buyVolume.Add(s.sellVolume)
	totalNotional := s.buyNotional.Add(s.sellNotional)

	v := domain.TradeStatsView{
		TotalTrades:  s.totalTrades,
		BuyTrades:    s.buyTrades,
		SellTrades:   s.sellTrades,
		BuyVolume:    s.buyVolume,
		SellVolume:   s.sellVolume,
		TotalVolume:  totalVolume,
		BuyNotional:  s.buyNotional,
		SellNotional: s.sellNotional,
	}

	if !totalVolume.IsZero() {
		vwapAll := totalNotional.Div(totalVolume)
		v.VWAPAll = &vwapAll
		buyRatio := s.buyVolume.Div(totalVolume)
		v.BuyRatio = &buyRatio
	}
	if !s.buyVolume.IsZero() {
		vwapBuy := s.buyNotional.Div(s.buyVolume)
		v.VWAPBuy = &vwapBuy
	}
	if !s.sellVolume.IsZero() {
		vwapSell := s.sellNotional.Div(s.sellVolume)
		v.VWAPSell = &vwapSell
	}
	if s.totalTrades > 0 {
		avgSize := totalVolume.Div(decimal.NewFromInt(s.totalTrades))
		v.AvgTradeSize = &avgSize
	}
	if s.havePrice {
		high, low := s.priceHigh, s.priceLow
		v.PriceHigh = &high
		v.PriceLow = &low
	}
	return v
}
