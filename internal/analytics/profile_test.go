package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

func profileTrade(price, qty string, buy bool) domain.Trade {
	return domain.Trade{
		Price:        decimal.RequireFromString(price),
		Quantity:     decimal.RequireFromString(qty),
		IsBuyerMaker: !buy,
	}
}

func TestBuildProfile(t *testing.T) {
	history := []domain.Trade{
		profileTrade("100", "1", true),
		profileTrade("110", "2", false),
		profileTrade("120", "3", true),
	}

	profile, ok := BuildProfile(history, 2)
	require.True(t, ok)
	assert.True(t, profile.MinPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, profile.MaxPrice.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, 2, profile.BinCount)
	assert.Equal(t, 3, profile.TotalTrades)
	require.Len(t, profile.Bins, 2)

	// Bin width is 10: the 100 trade lands in bin 0, the 110 trade in bin 1,
	// and the max-price trade is clamped into the last bin.
	bin0 := profile.Bins[0]
	assert.True(t, bin0.PriceLevel.Equal(decimal.NewFromInt(105)))
	assert.True(t, bin0.BuyVolume.Equal(decimal.NewFromInt(1)))
	assert.True(t, bin0.SellVolume.IsZero())

	bin1 := profile.Bins[1]
	assert.True(t, bin1.PriceLevel.Equal(decimal.NewFromInt(115)))
	assert.True(t, bin1.BuyVolume.Equal(decimal.NewFromInt(3)))
	assert.True(t, bin1.SellVolume.Equal(decimal.NewFromInt(2)))
	assert.True(t, bin1.TotalVolume.Equal(decimal.NewFromInt(5)))
	require.NotNil(t, bin1.BuyRatio)
	assert.True(t, bin1.BuyRatio.Equal(decimal.RequireFromString("0.6")))
}

func TestBuildProfileEmptyBinHasNilRatio(t *testing.T) {
	history := []domain.Trade{
		profileTrade("100", "1", true),
		profileTrade("130", "1", true),
	}

	profile, ok := BuildProfile(history, 3)
	require.True(t, ok)
	require.Len(t, profile.Bins, 3)
	assert.True(t, profile.Bins[1].TotalVolume.IsZero())
	assert.Nil(t, profile.Bins[1].BuyRatio)
}

func TestBuildProfileAbsent(t *testing.T) {
	_, ok := BuildProfile(nil, 5)
	assert.False(t, ok, "empty history")

	_, ok = BuildProfile([]domain.Trade{profileTrade("100", "1", true)}, 0)
	assert.False(t, ok, "non-positive bin count")

	// Degenerate range: every trade at the same price.
	history := []domain.Trade{
		profileTrade("100", "1", true),
		profileTrade("100", "2", false),
	}
	_, ok = BuildProfile(history, 5)
	assert.False(t, ok)
}
