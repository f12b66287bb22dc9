// Package binance is the REST client for the Binance spot market-data API.
// It covers the read-only endpoints the service needs: depth snapshots,
// recent trades and aggregate trades.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// DefaultBaseURL is the Binance spot REST root.
const DefaultBaseURL = "https://api.binance.com"

// Client is the Binance REST client. It implements domain.SnapshotFetcher.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST client. baseURL falls back to DefaultBaseURL
// when empty.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var _ domain.SnapshotFetcher = (*Client)(nil)

type apiDepth struct {
	LastUpdateID uint64      `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type apiTrade struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	Quantity     string `json:"qty"`
	Time         int64  `json:"time"`
	IsBuyerMaker bool   `json:"isBuyerMaker"`
}

type apiAggTrade struct {
	ID           int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	FirstTradeID int64  `json:"f"`
	LastTradeID  int64  `json:"l"`
	Time         int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// FetchDepth retrieves a full order-book snapshot. limit is clamped by the
// exchange; 1000 is the deepest single-request snapshot.
func (c *Client) FetchDepth(ctx context.Context, symbol string, limit int) (domain.DepthSnapshotMsg, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v3/depth", q)
	if err != nil {
		return domain.DepthSnapshotMsg{}, fmt.Errorf("binance: depth %s: %w", symbol, err)
	}

	var raw apiDepth
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.DepthSnapshotMsg{}, fmt.Errorf("binance: decode depth: %w", err)
	}

	bids, err := toLevels(raw.Bids)
	if err != nil {
		return domain.DepthSnapshotMsg{}, fmt.Errorf("binance: depth bids: %w", err)
	}
	asks, err := toLevels(raw.Asks)
	if err != nil {
		return domain.DepthSnapshotMsg{}, fmt.Errorf("binance: depth asks: %w", err)
	}

	return domain.DepthSnapshotMsg{
		Bids:         bids,
		Asks:         asks,
		LastUpdateID: raw.LastUpdateID,
	}, nil
}

// RecentTrades retrieves up to limit recent trades, oldest first.
func (c *Client) RecentTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v3/trades", q)
	if err != nil {
		return nil, fmt.Errorf("binance: trades %s: %w", symbol, err)
	}

	var raw []apiTrade
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance: decode trades: %w", err)
	}

	trades := make([]domain.Trade, 0, len(raw))
	for _, t := range raw {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, fmt.Errorf("binance: trade price %q: %w", t.Price, err)
		}
		qty, err := decimal.NewFromString(t.Quantity)
		if err != nil {
			return nil, fmt.Errorf("binance: trade quantity %q: %w", t.Quantity, err)
		}
		trades = append(trades, domain.Trade{
			ID:           t.ID,
			Price:        price,
			Quantity:     qty,
			Time:         time.UnixMilli(t.Time).UTC(),
			IsBuyerMaker: t.IsBuyerMaker,
		})
	}
	return trades, nil
}

// AggTrades retrieves up to limit recent aggregate trades, oldest first.
func (c *Client) AggTrades(ctx context.Context, symbol string, limit int) ([]domain.AggTrade, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.get(ctx, "/api/v3/aggTrades", q)
	if err != nil {
		return nil, fmt.Errorf("binance: agg trades %s: %w", symbol, err)
	}

	var raw []apiAggTrade
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance: decode agg trades: %w", err)
	}

	trades := make([]domain.AggTrade, 0, len(raw))
	for _, t := range raw {
		price, err := decimal.NewFromString(t.Price)
		if err != nil {
			return nil, fmt.Errorf("binance: agg trade price %q: %w", t.Price, err)
		}
		qty, err := decimal.NewFromString(t.Quantity)
		if err != nil {
			return nil, fmt.Errorf("binance: agg trade quantity %q: %w", t.Quantity, err)
		}
		trades = append(trades, domain.AggTrade{
			Trade: domain.Trade{
				ID:           t.ID,
				Price:        price,
				Quantity:     qty,
				Time:         time.UnixMilli(t.Time).UTC(),
				IsBuyerMaker: t.IsBuyerMaker,
			},
			FirstTradeID: t.FirstTradeID,
			LastTradeID:  t.LastTradeID,
		})
	}
	return trades, nil
}

// Ping checks connectivity to the API.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.get(ctx, "/api/v3/ping", nil); err != nil {
		return fmt.Errorf("binance: ping: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors. Binance uses
// 418 for auto-banned IPs; it is treated as rate limiting.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests, http.StatusTeapot:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

func toLevels(raw [][2]string) ([]domain.PriceLevel, error) {
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
