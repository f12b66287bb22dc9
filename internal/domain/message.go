package domain

import "time"

// Message is a typed market-data event consumed from the transport layer.
// Exactly one of the concrete types below flows through each per-symbol
// worker; dispatch is a type switch, never a string-keyed callback lookup.
type Message interface {
	messageKind() string
}

// DepthSnapshotMsg is a full order-book snapshot. Applying one replaces the
// book's entire state and resets any staleness.
type DepthSnapshotMsg struct {
	Bids         []PriceLevel
	Asks         []PriceLevel
	LastUpdateID uint64
}

// DepthDiffMsg is an incremental order-book update covering the exchange
// update-ID range [FirstUpdateID, LastUpdateID]. Zero-quantity levels are
// deletions.
type DepthDiffMsg struct {
	Bids          []PriceLevel
	Asks          []PriceLevel
	FirstUpdateID uint64
	LastUpdateID  uint64
	EventTime     time.Time
}

// TradeMsg carries a single executed trade.
type TradeMsg struct {
	Trade Trade
}

// AggTradeMsg carries an exchange-aggregated trade.
type AggTradeMsg struct {
	Trade AggTrade
}

func (DepthSnapshotMsg) messageKind() string { return "depth_snapshot" }
func (DepthDiffMsg) messageKind() string     { return "depth_diff" }
func (TradeMsg) messageKind() string         { return "trade" }
func (AggTradeMsg) messageKind() string      { return "agg_trade" }
