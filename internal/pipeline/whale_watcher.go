package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
	"github.com/Fuuurma/FinanceHub-sub000/internal/notify"
)

// seenCap bounds the per-symbol dedupe set. When exceeded the set resets;
// the store's ON CONFLICT guard catches any re-detections after a reset.
const seenCap = 8192

// WhaleSource is the slice of the market service the whale watcher polls.
type WhaleSource interface {
	Symbols() []string
	LargeTrades(symbol string, thresholdMultiplier decimal.Decimal, limit int) ([]domain.Trade, error)
}

// WhaleWatcherConfig tunes the detection loop.
type WhaleWatcherConfig struct {
	// Interval between detection runs.
	Interval time.Duration

	// Multiplier is the whale threshold relative to the tape's average
	// trade size.
	Multiplier decimal.Decimal

	// Limit caps detections per symbol per run.
	Limit int

	// Stream is the durable alert stream name. Empty disables stream
	// appends even when a bus is configured.
	Stream string
}

func (c WhaleWatcherConfig) withDefaults() WhaleWatcherConfig {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Multiplier.Sign() <= 0 {
		c.Multiplier = decimal.NewFromInt(10)
	}
	if c.Limit <= 0 {
		c.Limit = 20
	}
	return c
}

// WhaleWatcher polls the market service for outlier trades, persists each
// new detection as an alert and fans it out to operators and the signal
// bus. All sinks are optional.
type WhaleWatcher struct {
	source   WhaleSource
	store    domain.WhaleAlertStore
	notifier *notify.Notifier
	bus      domain.SignalBus
	cfg      WhaleWatcherConfig
	logger   *slog.Logger

	seen map[string]map[int64]struct{}
}

// NewWhaleWatcher creates a WhaleWatcher. store, notifier and bus may each
// be nil.
func NewWhaleWatcher(source WhaleSource, store domain.WhaleAlertStore, notifier *notify.Notifier, bus domain.SignalBus, cfg WhaleWatcherConfig, logger *slog.Logger) *WhaleWatcher {
	return &WhaleWatcher{
		source:   source,
		store:    store,
		notifier: notifier,
		bus:      bus,
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "whale_watcher")),
		seen:     make(map[string]map[int64]struct{}),
	}
}

// Run polls on the configured interval until ctx is cancelled.
func (w *WhaleWatcher) Run(ctx context.Context) error {
	w.logger.Info("whale watcher started",
		slog.Duration("interval", w.cfg.Interval),
		slog.String("multiplier", w.cfg.Multiplier.String()),
	)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("whale watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// RunOnce executes a single detection run. Exposed for the monitor mode
// and tests.
func (w *WhaleWatcher) RunOnce(ctx context.Context) {
	w.runOnce(ctx)
}

func (w *WhaleWatcher) runOnce(ctx context.Context) {
	for _, symbol := range w.source.Symbols() {
		trades, err := w.source.LargeTrades(symbol, w.cfg.Multiplier, w.cfg.Limit)
		if err != nil {
			w.logger.Error("large trade query failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, t := range trades {
			if w.alreadySeen(symbol, t.ID) {
				continue
			}
			w.emit(ctx, symbol, t)
		}
	}
}

func (w *WhaleWatcher) alreadySeen(symbol string, tradeID int64) bool {
	set, ok := w.seen[symbol]
	if !ok {
		set = make(map[int64]struct{})
		w.seen[symbol] = set
	}
	if _, dup := set[tradeID]; dup {
		return true
	}
	if len(set) >= seenCap {
		set = make(map[int64]struct{})
		w.seen[symbol] = set
	}
	set[tradeID] = struct{}{}
	return false
}

func (w *WhaleWatcher) emit(ctx context.Context, symbol string, t domain.Trade) {
	alert := domain.WhaleAlert{
		ID:         uuid.New(),
		Symbol:     symbol,
		TradeID:    t.ID,
		Price:      t.Price,
		Quantity:   t.Quantity,
		Value:      t.Value(),
		Side:       t.Side(),
		TradeTime:  t.Time,
		DetectedAt: time.Now().UTC(),
	}

	w.logger.Info("whale trade detected",
		slog.String("symbol", symbol),
		slog.Int64("trade_id", t.ID),
		slog.String("quantity", t.Quantity.String()),
		slog.String("value", alert.Value.String()),
	)

	if w.store != nil {
		if err := w.store.Insert(ctx, alert); err != nil {
			w.logger.Error("whale alert insert failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	if w.bus != nil && w.cfg.Stream != "" {
		payload, err := json.Marshal(alert)
		if err == nil {
			err = w.bus.StreamAppend(ctx, w.cfg.Stream, payload)
		}
		if err != nil {
			w.logger.Error("whale alert stream append failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	if w.notifier != nil {
		title := fmt.Sprintf("Whale trade %s", symbol)
		message := fmt.Sprintf("%s %s @ %s (%s quote)",
			alert.Side, alert.Quantity, alert.Price, alert.Value)
		if err := w.notifier.Notify(ctx, notify.EventWhaleTrade, title, message); err != nil {
			w.logger.Error("whale alert notify failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}
