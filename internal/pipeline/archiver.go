// Package pipeline contains the background workers that move market data
// out of the in-memory core: the trade archiver (tape to Postgres and S3)
// and the whale watcher (outlier detection to alerts).
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

// TradeSource is the slice of the market service the archiver reads from.
type TradeSource interface {
	Symbols() []string
	RecentTrades(symbol string, limit int) ([]domain.Trade, error)
}

// ArchiverConfig tunes the archiver loop.
type ArchiverConfig struct {
	// Interval between drain runs.
	Interval time.Duration

	// BatchLimit caps how many tape trades are read per symbol per run. It
	// should be at least the tape history size so no trade rotates out
	// between runs.
	BatchLimit int
}

func (c ArchiverConfig) withDefaults() ArchiverConfig {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 1000
	}
	return c
}

// Archiver periodically drains each symbol's tape into the trade store and,
// when a blob writer is configured, uploads the same batch as JSONL to
// object storage. The store's highest persisted trade ID per symbol is the
// drain cursor, so restarts never duplicate rows.
type Archiver struct {
	source TradeSource
	store  domain.TradeStore
	blob   domain.BlobWriter // optional
	cfg    ArchiverConfig
	logger *slog.Logger
}

// NewArchiver creates an Archiver. blob may be nil to skip S3 uploads.
func NewArchiver(source TradeSource, store domain.TradeStore, blob domain.BlobWriter, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	return &Archiver{
		source: source,
		store:  store,
		blob:   blob,
		cfg:    cfg.withDefaults(),
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Run drains on the configured interval until ctx is cancelled. A final
// drain runs on shutdown so tail trades are not lost.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver started", slog.Duration("interval", a.cfg.Interval))

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			a.runOnce(drainCtx)
			cancel()
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

// RunOnce executes a single drain run. Exposed for the monitor mode and tests.
func (a *Archiver) RunOnce(ctx context.Context) {
	a.runOnce(ctx)
}

func (a *Archiver) runOnce(ctx context.Context) {
	for _, symbol := range a.source.Symbols() {
		if err := a.drainSymbol(ctx, symbol); err != nil {
			a.logger.Error("drain failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (a *Archiver) drainSymbol(ctx context.Context, symbol string) error {
	lastID, err := a.store.LastTradeID(ctx, symbol)
	if err != nil {
		return fmt.Errorf("last trade id: %w", err)
	}

	trades, err := a.source.RecentTrades(symbol, a.cfg.BatchLimit)
	if err != nil {
		return fmt.Errorf("read tape: %w", err)
	}

	fresh := trades[:0:0]
	for _, t := range trades {
		if t.ID > lastID {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := a.store.InsertBatch(ctx, symbol, fresh); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	if a.blob != nil {
		if err := a.upload(ctx, symbol, fresh); err != nil {
			return fmt.Errorf("upload batch: %w", err)
		}
	}

	a.logger.Debug("drained trades",
		slog.String("symbol", symbol),
		slog.Int("count", len(fresh)),
	)
	return nil
}

// archivedTrade is the JSONL record layout for S3 archives.
type archivedTrade struct {
	Symbol   string          `json:"symbol"`
	ID       int64           `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
	Side     domain.Side     `json:"side"`
	Time     time.Time       `json:"time"`
}

// upload writes one JSONL object per drained batch, partitioned by symbol
// and day:
//
//	archive/trades/BTCUSDT/2025/01/02/1735802096123456789.jsonl
func (a *Archiver) upload(ctx context.Context, symbol string, trades []domain.Trade) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, t := range trades {
		rec := archivedTrade{
			Symbol:   symbol,
			ID:       t.ID,
			Price:    t.Price,
			Quantity: t.Quantity,
			Value:    t.Value(),
			Side:     t.Side(),
			Time:     t.Time,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}

	now := time.Now().UTC()
	path := fmt.Sprintf("archive/trades/%s/%s/%d.jsonl", symbol, now.Format("2006/01/02"), now.UnixNano())
	return a.blob.Put(ctx, path, &buf, "application/x-ndjson")
}
