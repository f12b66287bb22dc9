package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuuurma/FinanceHub-sub000/internal/analytics"
	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

type fakeTradesService struct{}

func (fakeTradesService) TimeAndSales(string, int) ([]domain.TapeEntry, error) { return nil, nil }
func (fakeTradesService) RecentAggTrades(string, int) ([]domain.AggTrade, error) {
	return nil, nil
}
func (fakeTradesService) TradeStats(string) (domain.TradeStatsView, error) {
	return domain.TradeStatsView{}, nil
}
func (fakeTradesService) TradeFlow(string, int) (analytics.TradeFlow, error) {
	return analytics.TradeFlow{}, nil
}
func (fakeTradesService) LargeTrades(string, decimal.Decimal, int) ([]domain.Trade, error) {
	return nil, nil
}
func (fakeTradesService) VolumeProfile(string, int) (*analytics.VolumeProfile, bool, error) {
	return nil, false, nil
}

type fakeTradeFetcher struct {
	trades []domain.Trade
	agg    []domain.AggTrade
	err    error
	calls  int
}

func (f *fakeTradeFetcher) RecentTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	f.calls++
	return f.trades, f.err
}

func (f *fakeTradeFetcher) AggTrades(ctx context.Context, symbol string, limit int) ([]domain.AggTrade, error) {
	f.calls++
	return f.agg, f.err
}

type fakeHistoryStore struct {
	trades []domain.Trade
}

func (f *fakeHistoryStore) InsertBatch(ctx context.Context, symbol string, trades []domain.Trade) error {
	return nil
}

func (f *fakeHistoryStore) ListBySymbol(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Trade, error) {
	return f.trades, nil
}

func (f *fakeHistoryStore) LastTradeID(ctx context.Context, symbol string) (int64, error) {
	return 0, nil
}

func histTrade(id int64) domain.Trade {
	return domain.Trade{
		ID:       id,
		Price:    decimal.NewFromInt(100),
		Quantity: decimal.NewFromInt(1),
		Time:     time.Unix(1700000000, 0).UTC(),
	}
}

func TestListHistoryPrefersStore(t *testing.T) {
	store := &fakeHistoryStore{trades: []domain.Trade{histTrade(1)}}
	exchange := &fakeTradeFetcher{}
	h := NewTradesHandler(fakeTradesService{}, exchange, store, nil, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.ListHistory(w, bookRequest(http.MethodGet, "/api/trades/BTCUSDT/history", "BTCUSDT"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, exchange.calls)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "store", got["source"])
}

func TestListHistoryFallsBackToExchange(t *testing.T) {
	exchange := &fakeTradeFetcher{trades: []domain.Trade{histTrade(7), histTrade(8)}}
	h := NewTradesHandler(fakeTradesService{}, exchange, nil, nil, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.ListHistory(w, bookRequest(http.MethodGet, "/api/trades/BTCUSDT/history", "BTCUSDT"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, exchange.calls)

	var got struct {
		Source string             `json:"source"`
		Trades []domain.TapeEntry `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "exchange", got.Source)
	require.Len(t, got.Trades, 2)
	assert.Equal(t, int64(7), got.Trades[0].ID)
}

func TestListHistoryNoSource(t *testing.T) {
	h := NewTradesHandler(fakeTradesService{}, nil, nil, nil, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.ListHistory(w, bookRequest(http.MethodGet, "/api/trades/BTCUSDT/history", "BTCUSDT"))

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestListHistoryRateLimited(t *testing.T) {
	exchange := &fakeTradeFetcher{err: domain.ErrRateLimited}
	h := NewTradesHandler(fakeTradesService{}, exchange, nil, nil, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.ListHistory(w, bookRequest(http.MethodGet, "/api/trades/BTCUSDT/history", "BTCUSDT"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestListAggHistory(t *testing.T) {
	exchange := &fakeTradeFetcher{agg: []domain.AggTrade{{
		Trade:        histTrade(5),
		FirstTradeID: 10,
		LastTradeID:  12,
	}}}
	h := NewTradesHandler(fakeTradesService{}, exchange, nil, nil, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.ListAggHistory(w, bookRequest(http.MethodGet, "/api/trades/ETHUSDT/agg-history", "ethusdt"))

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Symbol string `json:"symbol"`
		Trades []struct {
			ID         int64 `json:"id"`
			TradeCount int64 `json:"trade_count"`
		} `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ETHUSDT", got.Symbol)
	require.Len(t, got.Trades, 1)
	assert.Equal(t, int64(3), got.Trades[0].TradeCount)
}
