package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/analytics"
	"github.com/Fuuurma/FinanceHub-sub000/internal/book"
	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

func (s *Service) state(symbol string) (*symbolState, error) {
	symbol = strings.ToUpper(symbol)
	s.mu.RLock()
	st, ok := s.symbols[symbol]
	stopped := s.stopped
	s.mu.RUnlock()
	if !ok {
		if stopped {
			return nil, domain.ErrServiceStopped
		}
		return nil, fmt.Errorf("service: %s: %w", symbol, domain.ErrNotTracked)
	}
	return st, nil
}

// Snapshot returns the latest published book snapshot for a symbol. Before
// the initial depth snapshot has been processed the book is empty.
func (s *Service) Snapshot(symbol string) (*book.Snapshot, error) {
	st, err := s.state(symbol)
	if err != nil {
		return nil, err
	}
	snap := st.snap.Load()
	if snap == nil {
		return &book.Snapshot{Symbol: st.symbol}, nil
	}
	return snap, nil
}

// BookSummary returns the top-n book view with spread and imbalance.
func (s *Service) BookSummary(symbol string, levels int) (domain.BookSummary, error) {
	snap, err := s.Snapshot(symbol)
	if err != nil {
		return domain.BookSummary{}, err
	}
	return snap.Summary(levels), nil
}

// DepthSummary aggregates whole-book depth statistics including the
// liquidity score.
func (s *Service) DepthSummary(symbol string) (domain.DepthSummary, error) {
	snap, err := s.Snapshot(symbol)
	if err != nil {
		return domain.DepthSummary{}, err
	}
	sum := domain.DepthSummary{
		Symbol:         snap.Symbol,
		TotalBids:      len(snap.Bids),
		TotalAsks:      len(snap.Asks),
		BidVolume:      snap.BidVolume(),
		AskVolume:      snap.AskVolume(),
		LiquidityScore: book.LiquidityScore(snap),
		Stale:          snap.Stale,
	}
	if bid, ok := snap.BestBid(); ok {
		p := bid.Price
		sum.BestBid = &p
	}
	if ask, ok := snap.BestAsk(); ok {
		p := ask.Price
		sum.BestAsk = &p
	}
	if spread, ok := snap.Spread(); ok {
		sum.Spread = &spread
	}
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		sum.Imbalance = snap.Imbalance(book.DefaultImbalanceLevels).String()
	}
	return sum, nil
}

// DepthDistribution bins liquidity within one percent of the mid price.
// The second return is false when the book cannot produce a distribution.
func (s *Service) DepthDistribution(symbol string, binCount int) (*book.DepthDistribution, bool, error) {
	snap, err := s.Snapshot(symbol)
	if err != nil {
		return nil, false, err
	}
	dist, ok := book.BuildDepthDistribution(snap, binCount)
	return dist, ok, nil
}

// PriceImpact estimates the percentage slippage of a market order of the
// given size. The second return is false when the book cannot fill it.
func (s *Service) PriceImpact(symbol string, quantity decimal.Decimal, side domain.Side) (decimal.Decimal, bool, error) {
	snap, err := s.Snapshot(symbol)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	impact, ok := snap.PriceImpact(quantity, side)
	return impact, ok, nil
}

// PriceImpactCurve evaluates buy and sell impact across order sizes.
func (s *Service) PriceImpactCurve(symbol string, sizes []decimal.Decimal) ([]book.ImpactPoint, error) {
	snap, err := s.Snapshot(symbol)
	if err != nil {
		return nil, err
	}
	return book.PriceImpactCurve(snap, sizes), nil
}

// LiquidityScore returns the 0..100 composite liquidity score.
func (s *Service) LiquidityScore(symbol string) (float64, error) {
	snap, err := s.Snapshot(symbol)
	if err != nil {
		return 0, err
	}
	return book.LiquidityScore(snap), nil
}

// RecentTrades returns up to limit most recent raw trades, oldest first.
func (s *Service) RecentTrades(symbol string, limit int) ([]domain.Trade, error) {
	st, err := s.state(symbol)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.tape.Recent(limit), nil
}

// TimeAndSales returns the display-formatted recent tape.
func (s *Service) TimeAndSales(symbol string, limit int) ([]domain.TapeEntry, error) {
	st, err := s.state(symbol)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.tape.TimeAndSales(limit), nil
}

// TradeStats returns the running trade statistics view.
func (s *Service) TradeStats(symbol string) (domain.TradeStatsView, error) {
	st, err := s.state(symbol)
	if err != nil {
		return domain.TradeStatsView{}, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.stats.View(), nil
}

// TradeFlow classifies buy pressure over the last windowSize trades.
func (s *Service) TradeFlow(symbol string, windowSize int) (analytics.TradeFlow, error) {
	st, err := s.state(symbol)
	if err != nil {
		return analytics.TradeFlow{}, err
	}
	st.mu.RLock()
	window := st.tape.Window(windowSize)
	st.mu.RUnlock()
	return analytics.ClassifyFlow(window), nil
}

// LargeTrades returns outlier trades whose quantity is at least
// thresholdMultiplier times the tape average, largest first.
func (s *Service) LargeTrades(symbol string, thresholdMultiplier decimal.Decimal, limit int) ([]domain.Trade, error) {
	st, err := s.state(symbol)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	history := st.tape.History()
	st.mu.RUnlock()
	return analytics.LargeTrades(history, thresholdMultiplier, limit), nil
}

// VolumeProfile bins the tape history into equal-width price buckets.
// The second return is false when the tape is empty or the price range
// degenerate.
func (s *Service) VolumeProfile(symbol string, binCount int) (*analytics.VolumeProfile, bool, error) {
	st, err := s.state(symbol)
	if err != nil {
		return nil, false, err
	}
	st.mu.RLock()
	history := st.tape.History()
	st.mu.RUnlock()
	profile, ok := analytics.BuildProfile(history, binCount)
	return profile, ok, nil
}

// ImbalanceHistory returns up to limit recent imbalance readings taken at
// each book update, oldest first.
func (s *Service) ImbalanceHistory(symbol string, limit int) ([]book.Imbalance, error) {
	st, err := s.state(symbol)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.imbalance.Last(limit), nil
}

// BBOHistory returns up to limit recent best-bid/best-ask samples taken at
// each book update, oldest first.
func (s *Service) BBOHistory(symbol string, limit int) ([]book.BBOSample, error) {
	st, err := s.state(symbol)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.bbo.Last(limit), nil
}

// RecentAggTrades returns up to limit most recent aggregate trades.
func (s *Service) RecentAggTrades(symbol string, limit int) ([]domain.AggTrade, error) {
	st, err := s.state(symbol)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.tape.RecentAgg(limit), nil
}
