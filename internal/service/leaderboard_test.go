package service

import (
	"context"
	"testing"
	"time"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/internal/repository"
	"helpboard_miniapp/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestLeaderboardService_WindowStart(t *testing.T) {
	// Thursday, 15:30 UTC.
	now := time.Date(2025, time.March, 13, 15, 30, 0, 0, time.UTC)

	t.Run("all-time has no lower bound", func(t *testing.T) {
		svc := NewLeaderboardService(new(mocks.MockLedgerRepository), DefaultLeaderboardConfig())
		assert.Nil(t, svc.WindowStart(model.TimeframeAllTime, now))
	})

	t.Run("rolling windows", func(t *testing.T) {
		svc := NewLeaderboardService(new(mocks.MockLedgerRepository), DefaultLeaderboardConfig())

		week := svc.WindowStart(model.TimeframeWeek, now)
		assert.Equal(t, now.Add(-7*24*time.Hour), *week)

		month := svc.WindowStart(model.TimeframeMonth, now)
		assert.Equal(t, now.Add(-30*24*time.Hour), *month)
	})

	t.Run("calendar aligned windows", func(t *testing.T) {
		cfg := DefaultLeaderboardConfig()
		cfg.CalendarAligned = true
		svc := NewLeaderboardService(new(mocks.MockLedgerRepository), cfg)

		week := svc.WindowStart(model.TimeframeWeek, now)
		assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), *week)

		month := svc.WindowStart(model.TimeframeMonth, now)
		assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), *month)
	})
}

func TestLeaderboardService_Get(t *testing.T) {
	ctx := context.Background()

	rows := []model.LeaderboardRow{
		{TelegramID: 3, Username: "first", Points: 300, FirstEntryAt: time.Now().Add(-3 * time.Hour)},
		{TelegramID: 1, Username: "second", Points: 200, FirstEntryAt: time.Now().Add(-2 * time.Hour)},
		{TelegramID: 2, Username: "third", Points: 200, FirstEntryAt: time.Now().Add(-1 * time.Hour)},
	}

	t.Run("unknown timeframe", func(t *testing.T) {
		svc := NewLeaderboardService(new(mocks.MockLedgerRepository), DefaultLeaderboardConfig())
		board, err := svc.Get(ctx, model.Timeframe("decade"), 10)
		assert.Error(t, err)
		assert.Nil(t, board)
	})

	t.Run("first read materializes, later reads hit the snapshot", func(t *testing.T) {
		ledger := new(mocks.MockLedgerRepository)
		ledger.On("LeaderboardRows", ctx, (*time.Time)(nil), uint64(100)).Return(rows, nil).Once()

		svc := NewLeaderboardService(ledger, DefaultLeaderboardConfig())

		board, err := svc.Get(ctx, model.TimeframeAllTime, 10)
		assert.NoError(t, err)
		assert.Len(t, board.Rows, 3)
		assert.False(t, board.UpdatedAt.IsZero())

		// Repository order is the ranking order; the service must not
		// reshuffle ties.
		assert.Equal(t, int64(3), board.Rows[0].TelegramID)
		assert.Equal(t, int64(1), board.Rows[1].TelegramID)
		assert.Equal(t, int64(2), board.Rows[2].TelegramID)

		again, err := svc.Get(ctx, model.TimeframeAllTime, 10)
		assert.NoError(t, err)
		assert.Equal(t, board.UpdatedAt, again.UpdatedAt)

		ledger.AssertExpectations(t)
	})

	t.Run("limit trims the snapshot page", func(t *testing.T) {
		ledger := new(mocks.MockLedgerRepository)
		ledger.On("LeaderboardRows", ctx, (*time.Time)(nil), uint64(100)).Return(rows, nil).Once()

		svc := NewLeaderboardService(ledger, DefaultLeaderboardConfig())

		board, err := svc.Get(ctx, model.TimeframeAllTime, 2)
		assert.NoError(t, err)
		assert.Len(t, board.Rows, 2)
		assert.Equal(t, int64(3), board.Rows[0].TelegramID)
	})

	t.Run("out-of-range limit falls back to the cap", func(t *testing.T) {
		ledger := new(mocks.MockLedgerRepository)
		ledger.On("LeaderboardRows", ctx, (*time.Time)(nil), uint64(100)).Return(rows, nil).Once()

		svc := NewLeaderboardService(ledger, DefaultLeaderboardConfig())

		board, err := svc.Get(ctx, model.TimeframeAllTime, -5)
		assert.NoError(t, err)
		assert.Len(t, board.Rows, 3)
	})
}

func TestLeaderboardService_RankOf(t *testing.T) {
	ctx := context.Background()

	t.Run("rank outside the cached page", func(t *testing.T) {
		ledger := new(mocks.MockLedgerRepository)
		ledger.On("UserRank", ctx, int64(42), (*time.Time)(nil)).Return(&model.UserRank{
			TelegramID: 42,
			Rank:       1247,
			Points:     15,
		}, nil)

		svc := NewLeaderboardService(ledger, DefaultLeaderboardConfig())

		rank, err := svc.RankOf(ctx, 42, model.TimeframeAllTime)
		assert.NoError(t, err)
		assert.Equal(t, 1247, rank.Rank)
		assert.Equal(t, model.TimeframeAllTime, rank.Timeframe)
	})

	t.Run("windowed rank passes the lower bound", func(t *testing.T) {
		ledger := new(mocks.MockLedgerRepository)
		ledger.On("UserRank", ctx, int64(42), mock.MatchedBy(func(since *time.Time) bool {
			return since != nil && time.Since(*since) > 6*24*time.Hour
		})).Return(&model.UserRank{TelegramID: 42, Rank: 3, Points: 90}, nil)

		svc := NewLeaderboardService(ledger, DefaultLeaderboardConfig())

		rank, err := svc.RankOf(ctx, 42, model.TimeframeWeek)
		assert.NoError(t, err)
		assert.Equal(t, model.TimeframeWeek, rank.Timeframe)
		ledger.AssertExpectations(t)
	})

	t.Run("no ledger entries in window", func(t *testing.T) {
		ledger := new(mocks.MockLedgerRepository)
		ledger.On("UserRank", ctx, int64(42), (*time.Time)(nil)).Return(nil, repository.ErrNotFound)

		svc := NewLeaderboardService(ledger, DefaultLeaderboardConfig())

		rank, err := svc.RankOf(ctx, 42, model.TimeframeAllTime)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Nil(t, rank)
	})
}

// Ties resolve by earliest first entry, then by user id, end to end through
// the in-memory ledger ordering.
func TestLeaderboard_TieBreak(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	base := time.Now().UTC().Add(-time.Hour)
	seed := func(userID int64, amount int, at time.Time) {
		err := store.AppendEntry(ctx, &model.LedgerEntry{
			ID:             uuid.New(),
			UserID:         userID,
			RequestID:      uuid.New(),
			Amount:         amount,
			Reason:         model.ReasonBaseCompletion,
			IdempotencyKey: uuid.NewString(),
			CreatedAt:      at,
		})
		assert.NoError(t, err)
	}

	seed(7, 100, base.Add(30*time.Minute)) // same points, later first entry
	seed(5, 100, base.Add(10*time.Minute)) // same points, earlier first entry
	seed(9, 250, base.Add(40*time.Minute)) // clear leader
	seed(6, 100, base.Add(30*time.Minute)) // ties with 7 on time, lower id wins

	svc := NewLeaderboardService(store, DefaultLeaderboardConfig())

	board, err := svc.Get(ctx, model.TimeframeAllTime, 10)
	assert.NoError(t, err)

	ids := make([]int64, 0, len(board.Rows))
	for _, row := range board.Rows {
		ids = append(ids, row.TelegramID)
	}
	assert.Equal(t, []int64{9, 5, 6, 7}, ids)

	rank, err := svc.RankOf(ctx, 7, model.TimeframeAllTime)
	assert.NoError(t, err)
	assert.Equal(t, 4, rank.Rank)
	assert.Equal(t, 100, rank.Points)
}
