package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuuurma/FinanceHub-sub000/internal/book"
	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// fakeBookService returns canned values and records the last symbol asked for.
type fakeBookService struct {
	summary    domain.BookSummary
	bbo        []book.BBOSample
	err        error
	lastSymbol string
	tracked    []string
}

func (f *fakeBookService) Track(ctx context.Context, symbol string) error {
	if f.err != nil {
		return f.err
	}
	f.tracked = append(f.tracked, symbol)
	return nil
}

func (f *fakeBookService) Untrack(symbol string) error { return f.err }

func (f *fakeBookService) Symbols() []string { return []string{"BTCUSDT"} }

func (f *fakeBookService) BookSummary(symbol string, levels int) (domain.BookSummary, error) {
	f.lastSymbol = symbol
	return f.summary, f.err
}

func (f *fakeBookService) DepthSummary(symbol string) (domain.DepthSummary, error) {
	return domain.DepthSummary{}, f.err
}

func (f *fakeBookService) DepthDistribution(symbol string, binCount int) (*book.DepthDistribution, bool, error) {
	return nil, false, f.err
}

func (f *fakeBookService) PriceImpact(symbol string, quantity decimal.Decimal, side domain.Side) (decimal.Decimal, bool, error) {
	return decimal.RequireFromString("0.05"), true, f.err
}

func (f *fakeBookService) PriceImpactCurve(symbol string, sizes []decimal.Decimal) ([]book.ImpactPoint, error) {
	return nil, f.err
}

func (f *fakeBookService) LiquidityScore(symbol string) (float64, error) {
	return 72.5, f.err
}

func (f *fakeBookService) ImbalanceHistory(symbol string, limit int) ([]book.Imbalance, error) {
	return nil, f.err
}

func (f *fakeBookService) BBOHistory(symbol string, limit int) ([]book.BBOSample, error) {
	return f.bbo, f.err
}

func bookRequest(method, target, symbol string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.SetPathValue("symbol", symbol)
	return r
}

func TestGetBookNormalizesSymbol(t *testing.T) {
	svc := &fakeBookService{summary: domain.BookSummary{Symbol: "BTCUSDT", LastUpdateID: 42}}
	h := NewBookHandler(svc, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.GetBook(w, bookRequest(http.MethodGet, "/api/book/btcusdt", "btcusdt"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BTCUSDT", svc.lastSymbol)

	var got domain.BookSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, uint64(42), got.LastUpdateID)
}

func TestGetBookNotTracked(t *testing.T) {
	svc := &fakeBookService{err: domain.ErrNotTracked}
	h := NewBookHandler(svc, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.GetBook(w, bookRequest(http.MethodGet, "/api/book/XRPUSDT", "XRPUSDT"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "symbol not tracked")
}

func TestGetBookServiceStopped(t *testing.T) {
	svc := &fakeBookService{err: domain.ErrServiceStopped}
	h := NewBookHandler(svc, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.GetBook(w, bookRequest(http.MethodGet, "/api/book/BTCUSDT", "BTCUSDT"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetBookInternalError(t *testing.T) {
	svc := &fakeBookService{err: errors.New("boom")}
	h := NewBookHandler(svc, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.GetBook(w, bookRequest(http.MethodGet, "/api/book/BTCUSDT", "BTCUSDT"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom", "internal detail must not leak")
}

func TestTrackSymbol(t *testing.T) {
	svc := &fakeBookService{}
	h := NewBookHandler(svc, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.TrackSymbol(w, bookRequest(http.MethodPost, "/api/symbols/ethusdt/track", "ethusdt"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ETHUSDT"}, svc.tracked)
}

func TestTrackSymbolMissing(t *testing.T) {
	h := NewBookHandler(&fakeBookService{}, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.TrackSymbol(w, bookRequest(http.MethodPost, "/api/symbols//track", ""))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetImpactValidation(t *testing.T) {
	h := NewBookHandler(&fakeBookService{}, slog.New(slog.DiscardHandler))

	cases := []struct {
		name  string
		query string
	}{
		{"missing quantity", "side=buy"},
		{"negative quantity", "quantity=-1&side=buy"},
		{"bad side", "quantity=1&side=hold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.GetImpact(w, bookRequest(http.MethodGet, "/api/book/BTCUSDT/impact?"+tc.query, "BTCUSDT"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetImpactSuccess(t *testing.T) {
	h := NewBookHandler(&fakeBookService{}, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.GetImpact(w, bookRequest(http.MethodGet, "/api/book/BTCUSDT/impact?quantity=1.5&side=buy", "BTCUSDT"))

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "0.05", got["impact_percent"])
}

func TestGetBBOHistory(t *testing.T) {
	svc := &fakeBookService{bbo: []book.BBOSample{{
		Bid: domain.PriceLevel{Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)},
		Ask: domain.PriceLevel{Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(2)},
	}}}
	h := NewBookHandler(svc, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.GetBBOHistory(w, bookRequest(http.MethodGet, "/api/book/btcusdt/bbo-history", "btcusdt"))

	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Symbol string           `json:"symbol"`
		BBO    []book.BBOSample `json:"bbo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "BTCUSDT", got.Symbol)
	require.Len(t, got.BBO, 1)
	assert.True(t, got.BBO[0].Bid.Price.Equal(decimal.NewFromInt(100)))
}

func TestGetLiquidity(t *testing.T) {
	h := NewBookHandler(&fakeBookService{}, slog.New(slog.DiscardHandler))

	w := httptest.NewRecorder()
	h.GetLiquidity(w, bookRequest(http.MethodGet, "/api/book/BTCUSDT/liquidity", "BTCUSDT"))

	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 72.5, got["liquidity_score"])
}
