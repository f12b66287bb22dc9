package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookSide selects one side of an order book.
type BookSide string

const (
	BidSide BookSide = "bid"
	AskSide BookSide = "ask"
)

// PriceLevel is a single price+quantity entry on one side of an order book.
// A level with zero quantity does not exist; an incoming zero-quantity update
// deletes the level.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// BookSummary is the read-side view of one symbol's order book.
type BookSummary struct {
	Symbol         string           `json:"symbol"`
	LastUpdateID   uint64           `json:"last_update_id"`
	LastUpdateTime time.Time        `json:"last_update_time"`
	BestBid        *PriceLevel      `json:"best_bid,omitempty"`
	BestAsk        *PriceLevel      `json:"best_ask,omitempty"`
	Spread         *decimal.Decimal `json:"spread,omitempty"`
	SpreadPercent  *decimal.Decimal `json:"spread_percent,omitempty"`
	Imbalance      string           `json:"imbalance,omitempty"`
	Stale          bool             `json:"stale"`
	StaleReason    string           `json:"stale_reason,omitempty"`
	Bids           []PriceLevel     `json:"bids"`
	Asks           []PriceLevel     `json:"asks"`
}

// DepthSummary aggregates whole-book statistics for one symbol.
type DepthSummary struct {
	Symbol         string           `json:"symbol"`
	BestBid        *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk        *decimal.Decimal `json:"best_ask,omitempty"`
	Spread         *decimal.Decimal `json:"spread,omitempty"`
	Imbalance      string           `json:"imbalance,omitempty"`
	TotalBids      int              `json:"total_bids"`
	TotalAsks      int              `json:"total_asks"`
	BidVolume      decimal.Decimal  `json:"bid_volume"`
	AskVolume      decimal.Decimal  `json:"ask_volume"`
	LiquidityScore float64          `json:"liquidity_score"`
	Stale          bool             `json:"stale"`
}

// TradeStatsView is the on-demand view over a symbol's running trade
// statistics. Derived fields are nil when their denominator is zero.
type TradeStatsView struct {
	TotalTrades  int64            `json:"total_trades"`
	BuyTrades    int64            `json:"buy_trades"`
	SellTrades   int64            `json:"sell_trades"`
	BuyVolume    decimal.Decimal  `json:"buy_volume"`
	SellVolume   decimal.Decimal  `json:"sell_volume"`
	TotalVolume  decimal.Decimal  `json:"total_volume"`
	BuyNotional  decimal.Decimal  `json:"buy_notional"`
	SellNotional decimal.Decimal  `json:"sell_notional"`
	VWAPAll      *decimal.Decimal `json:"vwap_all,omitempty"`
	VWAPBuy      *decimal.Decimal `json:"vwap_buy,omitempty"`
	VWAPSell     *decimal.Decimal `json:"vwap_sell,omitempty"`
	PriceHigh    *decimal.Decimal `json:"price_high,omitempty"`
	PriceLow     *decimal.Decimal `json:"price_low,omitempty"`
	AvgTradeSize *decimal.Decimal `json:"avg_trade_size,omitempty"`
	BuyRatio     *decimal.Decimal `json:"buy_ratio,omitempty"`
}
