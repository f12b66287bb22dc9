package book

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// LiquidityScore rates a book's liquidity on a 0-100 scale as a weighted
// composite of total depth volume (40%), spread tightness (30%), and bid/ask
// balance (30%). It is 0 when either side of the book is empty.
func LiquidityScore(s *Snapshot) float64 {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return 0
	}

	totalVolume := s.BidVolume().Add(s.AskVolume())
	spread, _ := s.Spread()
	mid, _ := s.MidPrice()
	im := s.Imbalance(DefaultImbalanceLevels)

	volumeScore := math.Min(100, 20*math.Pow(totalVolume.InexactFloat64(), 0.3))

	spreadPct := spread.Div(mid).InexactFloat64() * 100
	spreadScore := math.Max(0, 100-spreadPct*100)

	balanceScore := 0.0
	if !im.Infinite {
		balanceScore = 100 * (1 - math.Abs(im.Ratio.InexactFloat64()-1)/2)
	}

	score := volumeScore*0.4 + spreadScore*0.3 + balanceScore*0.3
	return math.Min(100, math.Max(0, score))
}

// DepthBin is the aggregated quantity of one side's levels inside one price
// bin of the distribution band.
type DepthBin struct {
	Bin           int             `json:"bin"`
	Side          domain.BookSide `json:"side"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
}

// DepthDistribution is a histogram of book depth inside a ±1% band around
// the mid-price.
type DepthDistribution struct {
	Symbol     string          `json:"symbol"`
	MidPrice   decimal.Decimal `json:"mid_price"`
	PriceRange decimal.Decimal `json:"price_range"`
	BinCount   int             `json:"bin_count"`
	Bins       []DepthBin      `json:"distribution"`
}

// BuildDepthDistribution buckets the levels within 1% of mid-price into
// binCount equal-width price bins per side. The result is absent when the
// book lacks a mid-price or when no level on either side falls in the band.
func BuildDepthDistribution(s *Snapshot, binCount int) (*DepthDistribution, bool) {
	mid, ok := s.MidPrice()
	if !ok || binCount <= 0 {
		return nil, false
	}

	priceRange := mid.Div(hundred) // 1% of mid
	minPrice := mid.Sub(priceRange)
	maxPrice := mid.Add(priceRange)
	binWidth := maxPrice.Sub(minPrice).Div(decimal.NewFromInt(int64(binCount)))

	type acc struct {
		quantity decimal.Decimal
		priceSum decimal.Decimal
		count    int64
	}
	// Accumulators keyed by bin*2 (+1 for asks) so a single sort yields
	// bin-then-side ordering.
	accs := make(map[int]*acc)
	key := func(bin int, side domain.BookSide) int {
		k := bin * 2
		if side == domain.AskSide {
			k++
		}
		return k
	}

	add := func(lvl domain.PriceLevel, side domain.BookSide) {
		idx := int(lvl.Price.Sub(minPrice).Div(binWidth).IntPart())
		if idx < 0 {
			idx = 0
		}
		if idx >= binCount {
			idx = binCount - 1
		}
		k := key(idx, side)
		a, exists := accs[k]
		if !exists {
			a = &acc{quantity: decimal.Zero, priceSum: decimal.Zero}
			accs[k] = a
		}
		a.quantity = a.quantity.Add(lvl.Quantity)
		a.priceSum = a.priceSum.Add(lvl.Price)
		a.count++
	}

	// Bids in [mid-range, mid], asks in [mid, mid+range].
	for _, lvl := range s.Bids {
		if lvl.Price.GreaterThanOrEqual(minPrice) && lvl.Price.LessThanOrEqual(mid) {
			add(lvl, domain.BidSide)
		}
	}
	for _, lvl := range s.Asks {
		if lvl.Price.GreaterThanOrEqual(mid) && lvl.Price.LessThanOrEqual(maxPrice) {
			add(lvl, domain.AskSide)
		}
	}

	if len(accs) == 0 {
		return nil, false
	}

	keys := make([]int, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	dist := &DepthDistribution{
		Symbol:     s.Symbol,
		MidPrice:   mid,
		PriceRange: priceRange,
		BinCount:   binCount,
		Bins:       make([]DepthBin, 0, len(keys)),
	}
	for _, k := range keys {
		a := accs[k]
		side := domain.BidSide
		if k%2 == 1 {
			side = domain.AskSide
		}
		dist.Bins = append(dist.Bins, DepthBin{
			Bin:           k / 2,
			Side:          side,
			TotalQuantity: a.quantity,
			AvgPrice:      a.priceSum.Div(decimal.NewFromInt(a.count)),
		})
	}
	return dist, true
}

// ImpactPoint is the buy/sell price impact for one hypothetical order size.
// Impacts are nil when the book cannot fill the size on that side.
type ImpactPoint struct {
	Size       decimal.Decimal  `json:"size"`
	BuyImpact  *decimal.Decimal `json:"buy_impact_percent,omitempty"`
	SellImpact *decimal.Decimal `json:"sell_impact_percent,omitempty"`
	AvgImpact  *decimal.Decimal `json:"avg_impact_percent,omitempty"`
}

// PriceImpactCurve evaluates PriceImpact for buy and sell at each size.
func PriceImpactCurve(s *Snapshot, sizes []decimal.Decimal) []ImpactPoint {
	points := make([]ImpactPoint, 0, len(sizes))
	for _, size := range sizes {
		p := ImpactPoint{Size: size}
		if buy, ok := s.PriceImpact(size, domain.SideBuy); ok {
			p.BuyImpact = &buy
		}
		if sell, ok := s.PriceImpact(size, domain.SideSell); ok {
			p.SellImpact = &sell
		}
		if p.BuyImpact != nil && p.SellImpact != nil {
			avg := p.BuyImpact.Add(*p.SellImpact).Div(decimal.NewFromInt(2))
			p.AvgImpact = &avg
		}
		points = append(points, p)
	}
	return points
}
