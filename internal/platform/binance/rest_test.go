package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

func TestFetchDepth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"lastUpdateId": 1027024,
			"bids": [["4.00000000", "431.00000000"]],
			"asks": [["4.00000200", "12.00000000"]]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	snap, err := client.FetchDepth(context.Background(), "btcusdt", 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(1027024), snap.LastUpdateID)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Price.Equal(decimal.RequireFromString("4")))
	assert.True(t, snap.Bids[0].Quantity.Equal(decimal.RequireFromString("431")))
	require.Len(t, snap.Asks, 1)
}

func TestRecentTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/trades", r.URL.Path)
		w.Write([]byte(`[
			{"id": 28457, "price": "4.00000100", "qty": "12.00000000", "time": 1499865549590, "isBuyerMaker": true}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	trades, err := client.RecentTrades(context.Background(), "BTCUSDT", 1)
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.Equal(t, int64(28457), trades[0].ID)
	assert.True(t, trades[0].IsBuyerMaker)
	assert.Equal(t, domain.SideSell, trades[0].Side())
	assert.Equal(t, time.UnixMilli(1499865549590).UTC(), trades[0].Time)
}

func TestAggTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/aggTrades", r.URL.Path)
		w.Write([]byte(`[
			{"a": 26129, "p": "0.01633102", "q": "4.70443515", "f": 27781, "l": 27783, "T": 1498793709153, "m": true}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	trades, err := client.AggTrades(context.Background(), "ETHBTC", 1)
	require.NoError(t, err)

	require.Len(t, trades, 1)
	assert.Equal(t, int64(26129), trades[0].ID)
	assert.Equal(t, int64(27781), trades[0].FirstTradeID)
	assert.Equal(t, int64(3), trades[0].TradeCount())
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusTeapot, domain.ErrRateLimited},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		client := NewClient(server.URL)
		_, err := client.FetchDepth(context.Background(), "BTCUSDT", 10)
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		server.Close()
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ping", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	assert.NoError(t, NewClient(server.URL).Ping(context.Background()))
}
