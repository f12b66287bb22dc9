package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// ProfileBin is the buy/sell volume traded inside one price bin. PriceLevel
// is the bin midpoint. BuyRatio is nil when the bin has no volume.
type ProfileBin struct {
	PriceLevel  decimal.Decimal  `json:"price_level"`
	BuyVolume   decimal.Decimal  `json:"buy_volume"`
	SellVolume  decimal.Decimal  `json:"sell_volume"`
	TotalVolume decimal.Decimal  `json:"total_volume"`
	BuyRatio    *decimal.Decimal `json:"buy_ratio,omitempty"`
}

// VolumeProfile is a histogram of traded volume by price bucket over the
// retained history.
type VolumeProfile struct {
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	BinCount    int             `json:"bin_count"`
	TotalTrades int             `json:"total_trades"`
	Bins        []ProfileBin    `json:"volume_profile"`
}

// BuildProfile partitions [minPrice, maxPrice] into binCount equal-width
// bins and accumulates buy/sell volume per bin. Each trade lands in
// floor((price - min) / width), clamped into the last bin. The result is
// absent for an empty history or a degenerate price range.
func BuildProfile(history []domain.Trade, binCount int) (*VolumeProfile, bool) {
	if len(history) == 0 || binCount <= 0 {
		return nil, false
	}

	minPrice := history[0].Price
	maxPrice := history[0].Price
	for _, t := range history[1:] {
		if t.Price.LessThan(minPrice) {
			minPrice = t.Price
		}
		if t.Price.GreaterThan(maxPrice) {
			maxPrice = t.Price
		}
	}
	if !maxPrice.GreaterThan(minPrice) {
		return nil, false
	}

	binWidth := maxPrice.Sub(minPrice).Div(decimal.NewFromInt(int64(binCount)))

	buyVol := make([]decimal.Decimal, binCount)
	sellVol := make([]decimal.Decimal, binCount)
	for i := range buyVol {
		buyVol[i] = decimal.Zero
		sellVol[i] = decimal.Zero
	}

	for _, t := range history {
		idx := int(t.Price.Sub(minPrice).Div(binWidth).IntPart())
		if idx < 0 {
			idx = 0
		}
		if idx >= binCount {
			idx = binCount - 1
		}
		if t.Side() == domain.SideBuy {
			buyVol[idx] = buyVol[idx].Add(t.Quantity)
		} else {
			sellVol[idx] = sellVol[idx].Add(t.Quantity)
		}
	}

	two := decimal.NewFromInt(2)
	profile := &VolumeProfile{
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		BinCount:    binCount,
		TotalTrades: len(history),
		Bins:        make([]ProfileBin, binCount),
	}
	for i := 0; i < binCount; i++ {
		mid := minPrice.
			Add(binWidth.Mul(decimal.NewFromInt(int64(i)))).
			Add(binWidth.Div(two))
		bin := ProfileBin{
			PriceLevel:  mid,
			BuyVolume:   buyVol[i],
			SellVolume:  sellVol[i],
			TotalVolume: buyVol[i].Add(sellVol[i]),
		}
		if !bin.TotalVolume.IsZero() {
			ratio := bin.BuyVolume.Div(bin.TotalVolume)
			bin.BuyRatio = &ratio
		}
		profile.Bins[i] = bin
	}
	return profile, true
}
