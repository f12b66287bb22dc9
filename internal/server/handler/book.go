package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/book"
	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// BookService defines the order-book methods the handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type BookService interface {
	Track(ctx context.Context, symbol string) error
	Untrack(symbol string) error
	Symbols() []string
	BookSummary(symbol string, levels int) (domain.BookSummary, error)
	DepthSummary(symbol string) (domain.DepthSummary, error)
	DepthDistribution(symbol string, binCount int) (*book.DepthDistribution, bool, error)
	PriceImpact(symbol string, quantity decimal.Decimal, side domain.Side) (decimal.Decimal, bool, error)
	PriceImpactCurve(symbol string, sizes []decimal.Decimal) ([]book.ImpactPoint, error)
	LiquidityScore(symbol string) (float64, error)
	ImbalanceHistory(symbol string, limit int) ([]book.Imbalance, error)
	BBOHistory(symbol string, limit int) ([]book.BBOSample, error)
}

// BookHandler serves order-book HTTP endpoints.
type BookHandler struct {
	svc    BookService
	logger *slog.Logger
}

// NewBookHandler creates a BookHandler with the given service and logger.
func NewBookHandler(svc BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{svc: svc, logger: logger}
}

// handleServiceError maps service errors to HTTP responses and returns true
// when a response was written.
func (h *BookHandler) handleServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
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

// ListSymbols returns the tracked symbols.
// GET /api/symbols
func (h *BookHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"symbols": h.svc.Symbols()})
}

// TrackSymbol begins tracking a symbol (or re-snapshots an already-tracked
// one, which is the recovery path for a stale book).
// POST /api/symbols/{symbol}/track
func (h *BookHandler) TrackSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	if err := h.svc.Track(r.Context(), symbol); err != nil {
		h.handleServiceError(w, r, "track symbol", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "status": "tracking"})
}

// UntrackSymbol stops tracking a symbol and discards its state.
// DELETE /api/symbols/{symbol}
func (h *BookHandler) UntrackSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	if err := h.svc.Untrack(symbol); err != nil {
		h.handleServiceError(w, r, "untrack symbol", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "status": "untracked"})
}

// GetBook returns the top-N book summary.
// GET /api/book/{symbol}?levels=10
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	levels := queryInt(r, "levels", book.DefaultImbalanceLevels)

	summary, err := h.svc.BookSummary(symbol, levels)
	if err != nil {
		h.handleServiceError(w, r, "get book", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetDepth returns whole-book depth statistics.
// GET /api/book/{symbol}/depth
func (h *BookHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	summary, err := h.svc.DepthSummary(symbol)
	if err != nil {
		h.handleServiceError(w, r, "get depth", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetDistribution returns binned liquidity within one percent of mid.
// GET /api/book/{symbol}/distribution?bins=10
func (h *BookHandler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	bins := queryInt(r, "bins", 10)

	dist, ok, err := h.svc.DepthDistribution(symbol, bins)
	if err != nil {
		h.handleServiceError(w, r, "get distribution", err)
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "distribution unavailable for current book")
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

// GetImpact estimates market-order slippage.
// GET /api/book/{symbol}/impact?quantity=1.5&side=buy
func (h *BookHandler) GetImpact(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	quantity, ok := queryDecimal(r, "quantity")
	if !ok || quantity.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be a positive decimal")
		return
	}
	side := domain.Side(r.URL.Query().Get("side"))
	if side != domain.SideBuy && side != domain.SideSell {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	impact, fillable, err := h.svc.PriceImpact(symbol, quantity, side)
	if err != nil {
		h.handleServiceError(w, r, "get impact", err)
		return
	}
	if !fillable {
		writeError(w, http.StatusConflict, "order size exceeds available depth")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":         symbol,
		"quantity":       quantity,
		"side":           side,
		"impact_percent": impact,
	})
}

// GetImpactCurve evaluates buy and sell impact across order sizes.
// GET /api/book/{symbol}/impact-curve?sizes=0.1,1,10
func (h *BookHandler) GetImpactCurve(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	sizes := defaultImpactSizes
	if raw := r.URL.Query().Get("sizes"); raw != "" {
		parsed, err := parseSizes(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "sizes must be comma-separated positive decimals")
			return
		}
		sizes = parsed
	}

	points, err := h.svc.PriceImpactCurve(symbol, sizes)
	if err != nil {
		h.handleServiceError(w, r, "get impact curve", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"curve":  points,
	})
}

// GetLiquidity returns the composite liquidity score.
// GET /api/book/{symbol}/liquidity
func (h *BookHandler) GetLiquidity(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)

	score, err := h.svc.LiquidityScore(symbol)
	if err != nil {
		h.handleServiceError(w, r, "get liquidity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":          symbol,
		"liquidity_score": score,
	})
}

// GetImbalanceHistory returns recent imbalance readings, oldest first.
// GET /api/book/{symbol}/imbalance-history?limit=100
func (h *BookHandler) GetImbalanceHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	limit := queryInt(r, "limit", 100)

	history, err := h.svc.ImbalanceHistory(symbol, limit)
	if err != nil {
		h.handleServiceError(w, r, "get imbalance history", err)
		return
	}

	out := make([]string, len(history))
	for i, imb := range history {
		out[i] = imb.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    symbol,
		"imbalance": out,
	})
}

// GetBBOHistory returns recent best-bid/best-ask samples, oldest first.
// GET /api/book/{symbol}/bbo-history?limit=100
func (h *BookHandler) GetBBOHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	limit := queryInt(r, "limit", 100)

	history, err := h.svc.BBOHistory(symbol, limit)
	if err != nil {
		h.handleServiceError(w, r, "get bbo history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"bbo":    history,
	})
}

var defaultImpactSizes = []decimal.Decimal{
	decimal.RequireFromString("0.1"),
	decimal.RequireFromString("0.5"),
	decimal.RequireFromString("1"),
	decimal.RequireFromString("5"),
	decimal.RequireFromString("10"),
}

func parseSizes(raw string) ([]decimal.Decimal, error) {
	var sizes []decimal.Decimal
	for _, part := range splitComma(raw) {
		d, err := decimal.NewFromString(part)
		if err != nil || d.Sign() <= 0 {
			return nil, errors.New("invalid size")
		}
		sizes = append(sizes, d)
	}
	if len(sizes) == 0 {
		return nil, errors.New("no sizes")
	}
	return sizes, nil
}
