package book

import (
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

func seedBook(t *testing.T) *Book {
	t.Helper()
	b := New("BTCUSDT")
	err := b.ApplySnapshot(domain.DepthSnapshotMsg{
		Bids:         []domain.PriceLevel{lvl("100", "1"), lvl("99", "2"), lvl("98", "3")},
		Asks:         []domain.PriceLevel{lvl("101", "1"), lvl("102", "2"), lvl("103", "3")},
		LastUpdateID: 10,
	}, time.Now())
	require.NoError(t, err)
	return b
}

func TestApplySnapshotSortsSides(t *testing.T) {
	b := New("BTCUSDT")
	err := b.ApplySnapshot(domain.DepthSnapshotMsg{
		Bids:         []domain.PriceLevel{lvl("98", "3"), lvl("100", "1"), lvl("99", "2")},
		Asks:         []domain.PriceLevel{lvl("103", "3"), lvl("101", "1"), lvl("102", "2")},
		LastUpdateID: 10,
	}, time.Now())
	require.NoError(t, err)

	s := b.Snapshot()
	bid, ok := s.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.RequireFromString("100")))
	ask, ok := s.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Price.Equal(decimal.RequireFromString("101")))
	assert.Equal(t, uint64(10), s.LastUpdateID)
	assert.False(t, s.Stale)
}

func TestApplyDiffUpsertsAndDeletes(t *testing.T) {
	b := seedBook(t)

	err := b.ApplyDiff(domain.DepthDiffMsg{
		Bids:          []domain.PriceLevel{lvl("100", "5"), lvl("99", "0"), lvl("97", "7")},
		Asks:          []domain.PriceLevel{lvl("101", "0")},
		FirstUpdateID: 11,
		LastUpdateID:  12,
	}, time.Now())
	require.NoError(t, err)

	s := b.Snapshot()
	bid, _ := s.BestBid()
	assert.True(t, bid.Quantity.Equal(decimal.RequireFromString("5")), "best bid quantity updated")
	ask, _ := s.BestAsk()
	assert.True(t, ask.Price.Equal(decimal.RequireFromString("102")), "101 ask deleted")

	prices := make([]string, 0, len(s.Bids))
	for _, l := range s.Bids {
		prices = append(prices, l.Price.String())
	}
	assert.Equal(t, []string{"100", "98", "97"}, prices, "99 deleted, 97 inserted in order")
	assert.Equal(t, uint64(12), b.LastUpdateID())
}

func TestApplyDiffDropsReplay(t *testing.T) {
	b := seedBook(t)

	// Entirely at or below the current update ID: dropped without effect.
	err := b.ApplyDiff(domain.DepthDiffMsg{
		Bids:          []domain.PriceLevel{lvl("100", "999")},
		FirstUpdateID: 5,
		LastUpdateID:  10,
	}, time.Now())
	require.NoError(t, err)

	s := b.Snapshot()
	bid, _ := s.BestBid()
	assert.True(t, bid.Quantity.Equal(decimal.RequireFromString("1")))
	assert.Equal(t, uint64(10), b.LastUpdateID())
	assert.False(t, b.Stale())
}

func TestApplyDiffGapMarksStale(t *testing.T) {
	b := seedBook(t)

	err := b.ApplyDiff(domain.DepthDiffMsg{
		Bids:          []domain.PriceLevel{lvl("100", "999")},
		FirstUpdateID: 20,
		LastUpdateID:  21,
	}, time.Now())
	require.ErrorIs(t, err, domain.ErrStaleBook)
	assert.True(t, b.Stale())

	// The gapped diff must not have been applied.
	s := b.Snapshot()
	bid, _ := s.BestBid()
	assert.True(t, bid.Quantity.Equal(decimal.RequireFromString("1")))
	assert.Equal(t, uint64(10), b.LastUpdateID())
	assert.True(t, s.Stale)
	assert.NotEmpty(t, s.StaleReason)
}

func TestSnapshotClearsStale(t *testing.T) {
	b := seedBook(t)

	err := b.ApplyDiff(domain.DepthDiffMsg{FirstUpdateID: 20, LastUpdateID: 21}, time.Now())
	require.ErrorIs(t, err, domain.ErrStaleBook)
	require.True(t, b.Stale())

	err = b.ApplySnapshot(domain.DepthSnapshotMsg{
		Bids:         []domain.PriceLevel{lvl("100", "4")},
		Asks:         []domain.PriceLevel{lvl("101", "4")},
		LastUpdateID: 30,
	}, time.Now())
	require.NoError(t, err)
	assert.False(t, b.Stale())
	assert.Equal(t, uint64(30), b.LastUpdateID())
	assert.Empty(t, b.Snapshot().StaleReason)
}

func TestCrossedBookIsCorruption(t *testing.T) {
	b := seedBook(t)

	// A bid at the best ask price crosses the book.
	err := b.ApplyDiff(domain.DepthDiffMsg{
		Bids:          []domain.PriceLevel{lvl("101", "1")},
		FirstUpdateID: 11,
		LastUpdateID:  11,
	}, time.Now())
	require.ErrorIs(t, err, domain.ErrBookCorruption)
	assert.True(t, b.Stale())

	// Reads keep working, flagged stale.
	s := b.Snapshot()
	assert.True(t, s.Stale)
	bid, ok := s.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(decimal.RequireFromString("101")))
}

func TestDiffOnEmptyBookAdoptsSequence(t *testing.T) {
	b := New("ETHUSDT")

	err := b.ApplyDiff(domain.DepthDiffMsg{
		Bids:          []domain.PriceLevel{lvl("50", "1")},
		Asks:          []domain.PriceLevel{lvl("51", "1")},
		FirstUpdateID: 100,
		LastUpdateID:  101,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(101), b.LastUpdateID())
	assert.False(t, b.Stale())
}
