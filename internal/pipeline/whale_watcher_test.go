package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

type fakeWhaleSource struct {
	symbols []string
	trades  map[string][]domain.Trade
	err     error
}

func (f *fakeWhaleSource) Symbols() []string { return f.symbols }

func (f *fakeWhaleSource) LargeTrades(symbol string, _ decimal.Decimal, limit int) ([]domain.Trade, error) {
	if f.err != nil {
		return nil, f.err
	}
	ts := f.trades[symbol]
	if len(ts) > limit {
		ts = ts[:limit]
	}
	return ts, nil
}

type fakeAlertStore struct {
	alerts []domain.WhaleAlert
	err    error
}

func (f *fakeAlertStore) Insert(ctx context.Context, alert domain.WhaleAlert) error {
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeAlertStore) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.WhaleAlert, error) {
	return f.alerts, nil
}

type fakeSignalBus struct {
	appends map[string][][]byte
}

func (f *fakeSignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return nil
}

func (f *fakeSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	if f.appends == nil {
		f.appends = make(map[string][][]byte)
	}
	f.appends[stream] = append(f.appends[stream], payload)
	return nil
}

func (f *fakeSignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func whaleTrade(id int64, qty string) domain.Trade {
	return domain.Trade{
		ID:       id,
		Price:    decimal.NewFromInt(50_000),
		Quantity: decimal.RequireFromString(qty),
		Time:     time.Unix(1700000000, 0).UTC(),
	}
}

func TestWhaleWatcherPersistsAlerts(t *testing.T) {
	source := &fakeWhaleSource{
		symbols: []string{"BTCUSDT"},
		trades: map[string][]domain.Trade{
			"BTCUSDT": {whaleTrade(1, "100"), whaleTrade(2, "80")},
		},
	}
	store := &fakeAlertStore{}

	w := NewWhaleWatcher(source, store, nil, nil, WhaleWatcherConfig{}, slog.New(slog.DiscardHandler))
	w.RunOnce(context.Background())

	require.Len(t, store.alerts, 2)
	alert := store.alerts[0]
	assert.Equal(t, "BTCUSDT", alert.Symbol)
	assert.Equal(t, int64(1), alert.TradeID)
	assert.True(t, alert.Value.Equal(decimal.NewFromInt(5_000_000)))
	assert.Equal(t, domain.SideBuy, alert.Side)
	assert.False(t, alert.DetectedAt.IsZero())
}

func TestWhaleWatcherDedupesAcrossRuns(t *testing.T) {
	source := &fakeWhaleSource{
		symbols: []string{"BTCUSDT"},
		trades: map[string][]domain.Trade{
			"BTCUSDT": {whaleTrade(1, "100")},
		},
	}
	store := &fakeAlertStore{}

	w := NewWhaleWatcher(source, store, nil, nil, WhaleWatcherConfig{}, slog.New(slog.DiscardHandler))
	w.RunOnce(context.Background())
	w.RunOnce(context.Background())

	assert.Len(t, store.alerts, 1, "same trade must not alert twice")

	// A new outlier on a later run still fires.
	source.trades["BTCUSDT"] = append(source.trades["BTCUSDT"], whaleTrade(2, "90"))
	w.RunOnce(context.Background())
	assert.Len(t, store.alerts, 2)
}

func TestWhaleWatcherAppendsToStream(t *testing.T) {
	source := &fakeWhaleSource{
		symbols: []string{"ETHUSDT"},
		trades: map[string][]domain.Trade{
			"ETHUSDT": {whaleTrade(9, "200")},
		},
	}
	bus := &fakeSignalBus{}

	w := NewWhaleWatcher(source, nil, nil, bus, WhaleWatcherConfig{Stream: "alerts:whales"}, slog.New(slog.DiscardHandler))
	w.RunOnce(context.Background())

	require.Len(t, bus.appends["alerts:whales"], 1)

	var alert domain.WhaleAlert
	require.NoError(t, json.Unmarshal(bus.appends["alerts:whales"][0], &alert))
	assert.Equal(t, int64(9), alert.TradeID)
	assert.Equal(t, "ETHUSDT", alert.Symbol)
}

func TestWhaleWatcherEmptyStreamNameSkipsBus(t *testing.T) {
	source := &fakeWhaleSource{
		symbols: []string{"BTCUSDT"},
		trades: map[string][]domain.Trade{
			"BTCUSDT": {whaleTrade(1, "100")},
		},
	}
	bus := &fakeSignalBus{}

	w := NewWhaleWatcher(source, nil, nil, bus, WhaleWatcherConfig{}, slog.New(slog.DiscardHandler))
	w.RunOnce(context.Background())

	assert.Empty(t, bus.appends)
}

func TestWhaleWatcherSourceErrorContinues(t *testing.T) {
	source := &fakeWhaleSource{
		symbols: []string{"BTCUSDT"},
		err:     errors.New("tape unavailable"),
	}
	store := &fakeAlertStore{}

	w := NewWhaleWatcher(source, store, nil, nil, WhaleWatcherConfig{}, slog.New(slog.DiscardHandler))
	w.RunOnce(context.Background())

	assert.Empty(t, store.alerts)
}

func TestWhaleWatcherConfigDefaults(t *testing.T) {
	cfg := WhaleWatcherConfig{}.withDefaults()
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.True(t, cfg.Multiplier.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 20, cfg.Limit)
}
