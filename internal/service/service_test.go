package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

func lvl(price, qty string) domain.PriceLevel {
	return domain.PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

// fakeFetcher serves a canned depth snapshot and records fetch calls.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	snap  domain.DepthSnapshotMsg
	err   error
}

func (f *fakeFetcher) FetchDepth(_ context.Context, _ string, _ int) (domain.DepthSnapshotMsg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

func (f *fakeFetcher) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T) (*Service, *fakeFetcher) {
	t.Helper()
	fetcher := &fakeFetcher{snap: domain.DepthSnapshotMsg{
		Bids:         []domain.PriceLevel{lvl("100", "1"), lvl("99", "2")},
		Asks:         []domain.PriceLevel{lvl("101", "1"), lvl("102", "2")},
		LastUpdateID: 10,
	}}
	svc := New(fetcher, Config{}, nil)
	t.Cleanup(svc.Stop)
	return svc, fetcher
}

func TestTrackPublishesSnapshot(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Track(context.Background(), "btcusdt"))
	assert.Equal(t, []string{"BTCUSDT"}, svc.Symbols(), "symbols are uppercased")

	require.Eventually(t, func() bool {
		snap, err := svc.Snapshot("BTCUSDT")
		return err == nil && snap.LastUpdateID == 10
	}, time.Second, 5*time.Millisecond)

	snap, err := svc.Snapshot("btcusdt")
	require.NoError(t, err)
	bid, ok := snap.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.NewFromInt(100)))
}

func TestTrackFetcherError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("boom")}
	svc := New(fetcher, Config{}, nil)
	defer svc.Stop()

	err := svc.Track(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Empty(t, svc.Symbols())
}

func TestApplyDiffInOrder(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))

	require.NoError(t, svc.Apply("BTCUSDT", domain.DepthDiffMsg{
		Bids:          []domain.PriceLevel{lvl("100.5", "3")},
		FirstUpdateID: 11,
		LastUpdateID:  11,
	}))

	require.Eventually(t, func() bool {
		snap, err := svc.Snapshot("BTCUSDT")
		if err != nil {
			return false
		}
		bid, ok := snap.BestBid()
		return ok && bid.Price.Equal(decimal.RequireFromString("100.5"))
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return svc.Stats().MessagesApplied == 2
	}, time.Second, 5*time.Millisecond, "snapshot plus diff")
	assert.Equal(t, 1, svc.Stats().TrackedSymbols)
}

func TestApplyUntrackedSymbol(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Apply("ETHUSDT", domain.TradeMsg{})
	assert.ErrorIs(t, err, domain.ErrNotTracked)
}

func TestTradesFeedTapeAndStats(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, svc.Apply("BTCUSDT", domain.TradeMsg{Trade: domain.Trade{
			ID:       i,
			Price:    decimal.NewFromInt(100 + i),
			Quantity: decimal.NewFromInt(1),
			Time:     time.Now().UTC(),
		}}))
	}

	require.Eventually(t, func() bool {
		entries, err := svc.TimeAndSales("BTCUSDT", 10)
		return err == nil && len(entries) == 3
	}, time.Second, 5*time.Millisecond)

	view, err := svc.TradeStats("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.TotalTrades)
	assert.Equal(t, int64(3), view.BuyTrades)

	trades, err := svc.RecentTrades("BTCUSDT", 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, int64(3), trades[1].ID)
}

func TestSequenceGapEmitsEvent(t *testing.T) {
	fetcher := &fakeFetcher{snap: domain.DepthSnapshotMsg{
		Bids:         []domain.PriceLevel{lvl("100", "1")},
		Asks:         []domain.PriceLevel{lvl("101", "1")},
		LastUpdateID: 10,
	}}
	svc := New(fetcher, Config{}, nil)
	defer svc.Stop()

	events := make(chan domain.BookEvent, 1)
	svc.SetEventHandler(func(ev domain.BookEvent) {
		select {
		case events <- ev:
		default:
		}
	})

	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))
	require.NoError(t, svc.Apply("BTCUSDT", domain.DepthDiffMsg{
		FirstUpdateID: 50,
		LastUpdateID:  51,
	}))

	select {
	case ev := <-events:
		assert.Equal(t, "BTCUSDT", ev.Symbol)
		assert.Equal(t, domain.BookEventSequenceGap, ev.Kind)
		assert.ErrorIs(t, ev.Err, domain.ErrStaleBook)
	case <-time.After(time.Second):
		t.Fatal("no book event emitted")
	}

	require.Eventually(t, func() bool {
		snap, err := svc.Snapshot("BTCUSDT")
		return err == nil && snap.Stale
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), svc.Stats().SequenceGaps)
}

func TestRetrackRecoversStaleBook(t *testing.T) {
	svc, fetcher := newTestService(t)
	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))

	require.NoError(t, svc.Apply("BTCUSDT", domain.DepthDiffMsg{
		FirstUpdateID: 50,
		LastUpdateID:  51,
	}))
	require.Eventually(t, func() bool {
		snap, err := svc.Snapshot("BTCUSDT")
		return err == nil && snap.Stale
	}, time.Second, 5*time.Millisecond)

	// Re-track fetches a fresh snapshot and clears staleness.
	fetcher.mu.Lock()
	fetcher.snap.LastUpdateID = 60
	fetcher.mu.Unlock()
	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))

	require.Eventually(t, func() bool {
		snap, err := svc.Snapshot("BTCUSDT")
		return err == nil && !snap.Stale && snap.LastUpdateID == 60
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, fetcher.fetchCalls())
}

func TestUntrack(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))

	require.NoError(t, svc.Untrack("BTCUSDT"))
	assert.Empty(t, svc.Symbols())

	err := svc.Apply("BTCUSDT", domain.TradeMsg{})
	assert.ErrorIs(t, err, domain.ErrNotTracked)
	assert.ErrorIs(t, svc.Untrack("BTCUSDT"), domain.ErrNotTracked)
}

func TestStopIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))

	svc.Stop()
	svc.Stop()

	assert.ErrorIs(t, svc.Apply("BTCUSDT", domain.TradeMsg{}), domain.ErrServiceStopped)
	assert.ErrorIs(t, svc.Track(context.Background(), "BTCUSDT"), domain.ErrServiceStopped)
	_, err := svc.Snapshot("BTCUSDT")
	assert.ErrorIs(t, err, domain.ErrServiceStopped)
}

func TestImbalanceHistoryGrows(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))

	require.Eventually(t, func() bool {
		history, err := svc.ImbalanceHistory("BTCUSDT", 10)
		return err == nil && len(history) == 1
	}, time.Second, 5*time.Millisecond)

	history, err := svc.ImbalanceHistory("BTCUSDT", 10)
	require.NoError(t, err)
	assert.False(t, history[0].Infinite)
	assert.True(t, history[0].Ratio.Equal(decimal.NewFromInt(1)))
}

func TestBBOHistoryGrows(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Track(context.Background(), "BTCUSDT"))

	require.Eventually(t, func() bool {
		history, err := svc.BBOHistory("BTCUSDT", 10)
		return err == nil && len(history) == 1
	}, time.Second, 5*time.Millisecond)

	// A diff that moves the best bid appends a second sample.
	require.NoError(t, svc.Apply("BTCUSDT", domain.DepthDiffMsg{
		Bids:          []domain.PriceLevel{lvl("100.5", "1")},
		FirstUpdateID: 11,
		LastUpdateID:  11,
	}))

	require.Eventually(t, func() bool {
		history, err := svc.BBOHistory("BTCUSDT", 10)
		return err == nil && len(history) == 2
	}, time.Second, 5*time.Millisecond)

	history, err := svc.BBOHistory("BTCUSDT", 10)
	require.NoError(t, err)
	assert.True(t, history[0].Bid.Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, history[1].Bid.Price.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, history[1].Ask.Price.Equal(decimal.NewFromInt(101)))
}
