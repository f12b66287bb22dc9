package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the aggressor (taker) side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a single fill as reported by the exchange feed.
type Trade struct {
	ID           int64
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	Time         time.Time
	IsBuyerMaker bool
}

// Value is the trade notional (price * quantity).
func (t Trade) Value() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// Side returns the aggressor side. When the buyer was the maker, the resting
// order was a buy, so the taker sold.
func (t Trade) Side() Side {
	if t.IsBuyerMaker {
		return SideSell
	}
	return SideBuy
}

// AggTrade is an exchange-aggregated trade: several fills at the same price
// and time merged into one record.
type AggTrade struct {
	Trade
	FirstTradeID int64
	LastTradeID  int64
}

// TradeCount is the number of raw fills merged into this record.
func (t AggTrade) TradeCount() int64 {
	return t.LastTradeID - t.FirstTradeID + 1
}

// TapeEntry is a display-formatted trade for the time & sales view.
type TapeEntry struct {
	ID       int64           `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
	Time     time.Time       `json:"time"`
	Side     Side            `json:"side"`
}

// NewTapeEntry formats a trade for display.
func NewTapeEntry(t Trade) TapeEntry {
	return TapeEntry{
		ID:       t.ID,
		Price:    t.Price,
		Quantity: t.Quantity,
		Value:    t.Value(),
		Time:     t.Time,
		Side:     t.Side(),
	}
}
