package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// Wire shapes for the Binance combined-stream endpoint. Every payload is
// wrapped in an envelope naming its stream; the inner event type is the
// "e" field of the data object.

type wsEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type eventProbe struct {
	Event string `json:"e"`
}

type depthUpdateEvent struct {
	Event         string      `json:"e"`
	EventTime     int64       `json:"E"`
	Symbol        string      `json:"s"`
	FirstUpdateID uint64      `json:"U"`
	LastUpdateID  uint64      `json:"u"`
	Bids          [][2]string `json:"b"`
	Asks          [][2]string `json:"a"`
}

type tradeEvent struct {
	Event        string `json:"e"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

type aggTradeEvent struct {
	Event        string `json:"e"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	FirstTradeID int64  `json:"f"`
	LastTradeID  int64  `json:"l"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// parseLevels converts raw [price, quantity] string pairs. Zero-quantity
// levels are kept as-is; applying them deletes the level from the book.
func parseLevels(raw [][2]string) ([]domain.PriceLevel, error) {
	lvls := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", pair[0], err)
		}
		qty, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", pair[1], err)
		}
		lvls = append(lvls, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return lvls, nil
}

// Decode parses one raw frame from the combined stream into a typed
// message plus the symbol it belongs to. Frames that are not market data
// (subscription acks, unknown event types) return a nil message and nil
// error. Parse failures wrap ErrMalformedMessage.
func Decode(raw []byte) (string, domain.Message, error) {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("feed: decode envelope: %w: %v", domain.ErrMalformedMessage, err)
	}
	payload := env.Data
	if payload == nil {
		// Raw (non-combined) stream frames carry the event at top level.
		payload = raw
	}

	var probe eventProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "", nil, fmt.Errorf("feed: decode event: %w: %v", domain.ErrMalformedMessage, err)
	}

	switch probe.Event {
	case "depthUpdate":
		return decodeDepthUpdate(payload)
	case "trade":
		return decodeTrade(payload)
	case "aggTrade":
		return decodeAggTrade(payload)
	default:
		// Subscription acks and unknown events are not errors.
		return "", nil, nil
	}
}

func decodeDepthUpdate(payload []byte) (string, domain.Message, error) {
	var ev depthUpdateEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", nil, fmt.Errorf("feed: depth update: %w: %v", domain.ErrMalformedMessage, err)
	}
	bids, err := parseLevels(ev.Bids)
	if err != nil {
		return "", nil, fmt.Errorf("feed: depth update bids: %w: %v", domain.ErrMalformedMessage, err)
	}
	asks, err := parseLevels(ev.Asks)
	if err != nil {
		return "", nil, fmt.Errorf("feed: depth update asks: %w: %v", domain.ErrMalformedMessage, err)
	}
	msg := domain.DepthDiffMsg{
		Bids:          bids,
		Asks:          asks,
		FirstUpdateID: ev.FirstUpdateID,
		LastUpdateID:  ev.LastUpdateID,
		EventTime:     time.UnixMilli(ev.EventTime).UTC(),
	}
	return ev.Symbol, msg, nil
}

func decodeTrade(payload []byte) (string, domain.Message, error) {
	var ev tradeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", nil, fmt.Errorf("feed: trade: %w: %v", domain.ErrMalformedMessage, err)
	}
	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return "", nil, fmt.Errorf("feed: trade price %q: %w", ev.Price, domain.ErrMalformedMessage)
	}
	qty, err := decimal.NewFromString(ev.Quantity)
	if err != nil {
		return "", nil, fmt.Errorf("feed: trade quantity %q: %w", ev.Quantity, domain.ErrMalformedMessage)
	}
	msg := domain.TradeMsg{Trade: domain.Trade{
		ID:           ev.TradeID,
		Price:        price,
		Quantity:     qty,
		Time:         time.UnixMilli(ev.TradeTime).UTC(),
		IsBuyerMaker: ev.IsBuyerMaker,
	}}
	return ev.Symbol, msg, nil
}

func decodeAggTrade(payload []byte) (string, domain.Message, error) {
	var ev aggTradeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", nil, fmt.Errorf("feed: agg trade: %w: %v", domain.ErrMalformedMessage, err)
	}
	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return "", nil, fmt.Errorf("feed: agg trade price %q: %w", ev.Price, domain.ErrMalformedMessage)
	}
	qty, err := decimal.NewFromString(ev.Quantity)
	if err != nil {
		return "", nil, fmt.Errorf("feed: agg trade quantity %q: %w", ev.Quantity, domain.ErrMalformedMessage)
	}
	msg := domain.AggTradeMsg{Trade: domain.AggTrade{
		Trade: domain.Trade{
			ID:           ev.AggTradeID,
			Price:        price,
			Quantity:     qty,
			Time:         time.UnixMilli(ev.TradeTime).UTC(),
			IsBuyerMaker: ev.IsBuyerMaker,
		},
		FirstTradeID: ev.FirstTradeID,
		LastTradeID:  ev.LastTradeID,
	}}
	return ev.Symbol, msg, nil
}
