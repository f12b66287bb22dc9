package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/analytics"
	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// TradesService defines the tape and trade-analytics methods the handler
// requires from the service layer.
type TradesService interface {
	TimeAndSales(symbol string, limit int) ([]domain.TapeEntry, error)
	RecentAggTrades(symbol string, limit int) ([]domain.AggTrade, error)
	TradeStats(symbol string) (domain.TradeStatsView, error)
	TradeFlow(symbol string, windowSize int) (analytics.TradeFlow, error)
	LargeTrades(symbol string, thresholdMultiplier decimal.Decimal, limit int) ([]domain.Trade, error)
	VolumeProfile(symbol string, binCount int) (*analytics.VolumeProfile, bool, error)
}

// TradeFetcher fetches trade history straight from the exchange REST API.
type TradeFetcher interface {
	RecentTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error)
	AggTrades(ctx context.Context, symbol string, limit int) ([]domain.AggTrade, error)
}

// TradesHandler serves trade-tape HTTP endpoints. The store and alerts
// dependencies are optional; store-backed endpoints fall back to the
// exchange REST API when the process runs without Postgres, and return 501
// when neither source is available.
type TradesHandler struct {
	svc      TradesService
	exchange TradeFetcher
	store    domain.TradeStore
	alerts   domain.WhaleAlertStore
	logger   *slog.Logger
}

// NewTradesHandler creates a TradesHandler. exchange, store and alerts may
// each be nil.
func NewTradesHandler(svc TradesService, exchange TradeFetcher, store domain.TradeStore, alerts domain.WhaleAlertStore, logger *slog.Logger) *TradesHandler {
	return &TradesHandler{svc: svc, exchange: exchange, store: store, alerts: alerts, logger: logger}
}

func (h *TradesHandler) handleServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotTracked):
		writeError(w, http.StatusNotFound, "symbol not tracked")
	case errors.Is(err, domain.ErrServiceStopped):
		writeError(w, http.StatusServiceUnavailable, "service stopped")
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// ListTrades returns the display-formatted time & sales tape.
// GET /api/trades/{symbol}?limit=100
func (h *TradesHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	limit := queryInt(r, "limit", 100)

	entries, err := h.svc.TimeAndSales(symbol, limit)
	if err != nil {
		h.handleServiceError(w, r, "list trades", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"trades": entries,
	})
}

// ListAggTrades returns recent exchange-aggregated trades.
// GET /api/trades/{symbol}/agg?limit=100
func (h *TradesHandler) ListAggTrades(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	limit := queryInt(r, "limit", 100)

	trades, err := h.svc.RecentAggTrades(symbol, limit)
	if err != nil {
		h.handleServiceError(w, r, "list agg trades", err)
		return
	}

	out := make([]map[string]any, len(trades))
	for i, t := range trades {
		out[i] = map[string]any{
			"id":          t.ID,
			"price":       t.Price,
			"quantity":    t.Quantity,
			"value":       t.Value(),
			"side":        t.Side(),
			"time":        t.Time,
			"trade_count": t.TradeCount(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"trades": out,
	})
}

// GetStats returns running trade statistics (VWAP, volumes, buy ratio).
// GET /api/trades/{symbol}/stats
func (h *TradesHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	stats, err := h.svc.TradeStats(symbol)
	if err != nil {
		h.handleServiceError(w, r, "get trade stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetFlow classifies buy pressure over a recent window.
// GET /api/trades/{symbol}/flow?window=100
func (h *TradesHandler) GetFlow(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	window := queryInt(r, "window", 100)

	flow, err := h.svc.TradeFlow(symbol, window)
	if err != nil {
		h.handleServiceError(w, r, "get trade flow", err)
		return
	}
	writeJSON(w, http.StatusOK, flow)
}

// GetWhales returns outlier trades relative to the tape average.
// GET /api/trades/{symbol}/whales?multiplier=10&limit=20
func (h *TradesHandler) GetWhales(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	limit := queryInt(r, "limit", 20)

	multiplier := decimal.NewFromInt(10)
	if m, ok := queryDecimal(r, "multiplier"); ok && m.Sign() > 0 {
		multiplier = m
	}

	trades, err := h.svc.LargeTrades(symbol, multiplier, limit)
	if err != nil {
		h.handleServiceError(w, r, "get whales", err)
		return
	}

	entries := make([]domain.TapeEntry, len(trades))
	for i, t := range trades {
		entries[i] = domain.NewTapeEntry(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"whales": entries,
	})
}

// GetProfile returns the volume-by-price histogram over the tape history.
// GET /api/trades/{symbol}/profile?bins=10
func (h *TradesHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	bins := queryInt(r, "bins", 10)

	profile, ok, err := h.svc.VolumeProfile(symbol, bins)
	if err != nil {
		h.handleServiceError(w, r, "get volume profile", err)
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "volume profile unavailable for current tape")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListHistory returns persisted trades from the store with pagination.
// Without a store it falls back to the exchange REST API, which serves the
// most recent trades only (offset and time bounds are ignored).
// GET /api/trades/{symbol}/history?limit=50&offset=0&since=&until=
func (h *TradesHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	opts := parseListOpts(r)

	var (
		trades []domain.Trade
		err    error
		source = "store"
	)
	switch {
	case h.store != nil:
		trades, err = h.store.ListBySymbol(r.Context(), symbol, opts)
	case h.exchange != nil:
		source = "exchange"
		trades, err = h.exchange.RecentTrades(r.Context(), symbol, opts.Limit)
	default:
		writeError(w, http.StatusNotImplemented, "no trade history source configured")
		return
	}
	if err != nil {
		h.handleFetchError(w, r, "list trade history", symbol, err)
		return
	}

	entries := make([]domain.TapeEntry, len(trades))
	for i, t := range trades {
		entries[i] = domain.NewTapeEntry(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"source": source,
		"trades": entries,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// ListAggHistory returns exchange-aggregated trade history fetched from the
// exchange REST API.
// GET /api/trades/{symbol}/agg-history?limit=100
func (h *TradesHandler) ListAggHistory(w http.ResponseWriter, r *http.Request) {
	if h.exchange == nil {
		writeError(w, http.StatusNotImplemented, "exchange client not configured")
		return
	}
	symbol := symbolParam(r)
	limit := queryInt(r, "limit", 100)

	trades, err := h.exchange.AggTrades(r.Context(), symbol, limit)
	if err != nil {
		h.handleFetchError(w, r, "list agg history", symbol, err)
		return
	}

	out := make([]map[string]any, len(trades))
	for i, t := range trades {
		out[i] = map[string]any{
			"id":          t.ID,
			"price":       t.Price,
			"quantity":    t.Quantity,
			"value":       t.Value(),
			"side":        t.Side(),
			"time":        t.Time,
			"trade_count": t.TradeCount(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"trades": out,
	})
}

// handleFetchError maps store and exchange errors to HTTP responses.
func (h *TradesHandler) handleFetchError(w http.ResponseWriter, r *http.Request, op, symbol string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "symbol not found")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "exchange rate limit reached")
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// ListWhaleAlerts returns persisted whale alerts, newest first.
// GET /api/trades/{symbol}/whale-alerts?limit=50
func (h *TradesHandler) ListWhaleAlerts(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		writeError(w, http.StatusNotImplemented, "whale alert store not configured")
		return
	}
	symbol := symbolParam(r)
	limit := queryInt(r, "limit", 50)

	alerts, err := h.alerts.ListRecent(r.Context(), symbol, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list whale alerts failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list whale alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"alerts": alerts,
	})
}
