// Package analytics provides windowed and batch analytics over a symbol's
// retained trade history: trade-flow classification, large-trade detection,
// and volume profiling.
package analytics

import (
	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// FlowDirection classifies the buy/sell pressure of a trade window.
type FlowDirection string

const (
	FlowInsufficient FlowDirection = "insufficient"
	FlowStrongBuy    FlowDirection = "strong_buy"
	FlowBuy          FlowDirection = "buy"
	FlowNeutral      FlowDirection = "neutral"
	FlowSell         FlowDirection = "sell"
	FlowStrongSell   FlowDirection = "strong_sell"
)

// minFlowTrades is the minimum window size for a meaningful classification.
const minFlowTrades = 10

var (
	flowStrongBuy  = decimal.RequireFromString("0.60")
	flowBuy        = decimal.RequireFromString("0.52")
	flowNeutral    = decimal.RequireFromString("0.48")
	flowSell       = decimal.RequireFromString("0.40")
)

// TradeFlow is the result of classifying one trade window.
type TradeFlow struct {
	Direction      FlowDirection   `json:"direction"`
	TradeCount     int             `json:"trade_count"`
	BuyCount       int             `json:"buy_count"`
	SellCount      int             `json:"sell_count"`
	BuyRatioCount  decimal.Decimal `json:"buy_ratio_count"`
	BuyRatioVolume decimal.Decimal `json:"buy_ratio_volume"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
}

// ClassifyFlow computes the volume-weighted buy ratio over the window and
// maps it to a direction. Fewer than 10 trades is an expected condition, not
// an error: the direction is FlowInsufficient.
//
// Boundaries: a ratio of exactly 0.60 or 0.52 is Buy, exactly 0.48 is
// Neutral, exactly 0.40 is Sell.
func ClassifyFlow(window []domain.Trade) TradeFlow {
	flow := TradeFlow{
		Direction:   FlowInsufficient,
		TradeCount:  len(window),
		TotalVolume: decimal.Zero,
	}
	if len(window) < minFlowTrades {
		return flow
	}

	buyVolume := decimal.Zero
	sellVolume := decimal.Zero
	for _, t := range window {
		if t.Side() == domain.SideBuy {
			flow.BuyCount++
			buyVolume = buyVolume.Add(t.Quantity)
		} else {
			flow.SellCount++
			sellVolume = sellVolume.Add(t.Quantity)
		}
	}

	flow.TotalVolume = buyVolume.Add(sellVolume)
	flow.BuyRatioCount = decimal.NewFromInt(int64(flow.BuyCount)).
		Div(decimal.NewFromInt(int64(flow.TradeCount)))

	if flow.TotalVolume.IsZero() {
		flow.Direction = FlowNeutral
		return flow
	}
	ratio := buyVolume.Div(flow.TotalVolume)
	flow.BuyRatioVolume = ratio

	switch {
	case ratio.GreaterThan(flowStrongBuy):
		flow.Direction = FlowStrongBuy
	case ratio.GreaterThanOrEqual(flowBuy):
		flow.Direction = FlowBuy
	case ratio.GreaterThanOrEqual(flowNeutral):
		flow.Direction = FlowNeutral
	case ratio.GreaterThanOrEqual(flowSell):
		flow.Direction = FlowSell
	default:
		flow.Direction = FlowStrongSell
	}
	return flow
}
