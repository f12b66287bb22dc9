package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Symbol: "BTCUSDT",
		Bids:   []domain.PriceLevel{lvl("100", "1"), lvl("99", "2"), lvl("98", "3")},
		Asks:   []domain.PriceLevel{lvl("101", "1"), lvl("102", "2"), lvl("103", "3")},
	}
}

func TestSpreadAndMid(t *testing.T) {
	s := testSnapshot()

	spread, ok := s.Spread()
	require.True(t, ok)
	assert.True(t, spread.Equal(decimal.NewFromInt(1)))

	mid, ok := s.MidPrice()
	require.True(t, ok)
	assert.True(t, mid.Equal(decimal.RequireFromString("100.5")))

	pct, ok := s.SpreadPercent()
	require.True(t, ok)
	assert.True(t, pct.Equal(decimal.NewFromInt(1)), "1 over a bid of 100 is 1%%, got %s", pct)
}

func TestSpreadAbsentWithEmptySide(t *testing.T) {
	s := &Snapshot{Symbol: "BTCUSDT", Bids: []domain.PriceLevel{lvl("100", "1")}}

	_, ok := s.Spread()
	assert.False(t, ok)
	_, ok = s.MidPrice()
	assert.False(t, ok)
	_, ok = s.BestAsk()
	assert.False(t, ok)
}

func TestTopLevelsClamped(t *testing.T) {
	s := testSnapshot()

	assert.Len(t, s.TopBids(2), 2)
	assert.Len(t, s.TopBids(10), 3)
	assert.Empty(t, s.TopAsks(0))
}

func TestVolumes(t *testing.T) {
	s := testSnapshot()

	assert.True(t, s.BidVolume().Equal(decimal.NewFromInt(6)))
	assert.True(t, s.AskVolume().Equal(decimal.NewFromInt(6)))
}

func TestImbalance(t *testing.T) {
	s := &Snapshot{
		Bids: []domain.PriceLevel{lvl("100", "6")},
		Asks: []domain.PriceLevel{lvl("101", "2")},
	}

	im := s.Imbalance(10)
	assert.False(t, im.Infinite)
	assert.True(t, im.Ratio.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "3", im.String())
}

func TestImbalanceInfinite(t *testing.T) {
	s := &Snapshot{Bids: []domain.PriceLevel{lvl("100", "6")}}

	im := s.Imbalance(10)
	assert.True(t, im.Infinite)
	assert.Equal(t, "inf", im.String())
}

func TestPriceImpactBuy(t *testing.T) {
	s := testSnapshot()

	// Buying 3 fills 1@101 and 2@102: avg 101.666..., best 101.
	impact, ok := s.PriceImpact(decimal.NewFromInt(3), domain.SideBuy)
	require.True(t, ok)
	assert.True(t, impact.Sign() > 0)

	// A size within the best level has zero impact.
	impact, ok = s.PriceImpact(decimal.NewFromInt(1), domain.SideBuy)
	require.True(t, ok)
	assert.True(t, impact.IsZero())
}

func TestPriceImpactSell(t *testing.T) {
	s := testSnapshot()

	// Selling 3 fills 1@100 and 2@99: avg 99.333..., best 100.
	impact, ok := s.PriceImpact(decimal.NewFromInt(3), domain.SideSell)
	require.True(t, ok)
	expected := decimal.NewFromInt(100).
		Sub(decimal.RequireFromString("298").Div(decimal.NewFromInt(3))).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(100))
	assert.True(t, impact.Equal(expected), "want %s, got %s", expected, impact)
}

func TestPriceImpactMonotonic(t *testing.T) {
	s := testSnapshot()

	small, ok := s.PriceImpact(decimal.NewFromInt(2), domain.SideBuy)
	require.True(t, ok)
	large, ok := s.PriceImpact(decimal.NewFromInt(5), domain.SideBuy)
	require.True(t, ok)
	assert.True(t, large.GreaterThan(small))
}

func TestPriceImpactUnfillable(t *testing.T) {
	s := testSnapshot()

	_, ok := s.PriceImpact(decimal.NewFromInt(100), domain.SideBuy)
	assert.False(t, ok)
	_, ok = s.PriceImpact(decimal.Zero, domain.SideBuy)
	assert.False(t, ok)
	_, ok = (&Snapshot{}).PriceImpact(decimal.NewFromInt(1), domain.SideSell)
	assert.False(t, ok)
}

func TestSummary(t *testing.T) {
	s := testSnapshot()
	s.Stale = true
	s.StaleReason = "sequence gap"

	sum := s.Summary(2)
	assert.Equal(t, "BTCUSDT", sum.Symbol)
	assert.Len(t, sum.Bids, 2)
	assert.Len(t, sum.Asks, 2)
	require.NotNil(t, sum.BestBid)
	require.NotNil(t, sum.Spread)
	assert.True(t, sum.Spread.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "1", sum.Imbalance)
	assert.True(t, sum.Stale)
	assert.Equal(t, "sequence gap", sum.StaleReason)
}

func TestSummaryOmitsAbsentFields(t *testing.T) {
	sum := (&Snapshot{Symbol: "ETHUSDT"}).Summary(5)

	assert.Nil(t, sum.BestBid)
	assert.Nil(t, sum.BestAsk)
	assert.Nil(t, sum.Spread)
	assert.Empty(t, sum.Imbalance)
}
