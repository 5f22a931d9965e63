package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/internal/repository"
	"helpboard_miniapp/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type LeaderboardConfig struct {
	// MaxLimit caps the page size and the materialized snapshot depth.
	MaxLimit int `yaml:"maxLimit"`
	// RefreshInterval drives the background materializer.
	RefreshInterval time.Duration `yaml:"refreshInterval"`
	// CalendarAligned switches week/month windows from rolling (default)
	// to calendar boundaries.
	CalendarAligned bool `yaml:"calendarAligned"`
}

func DefaultLeaderboardConfig() LeaderboardConfig {
	return LeaderboardConfig{
		MaxLimit:        100,
		RefreshInterval: time.Minute,
	}
}

// LeaderboardService serves ranked views derived from the ledger. Reads go
// through a materialized snapshot per timeframe; the snapshot is only a cache
// and is rebuilt from the ledger alone, never written to directly.
type LeaderboardService struct {
	ledger LedgerRepository
	cfg    LeaderboardConfig

	mu        sync.RWMutex
	snapshots map[model.Timeframe]*model.Leaderboard

	scheduler gocron.Scheduler
}

func NewLeaderboardService(ledger LedgerRepository, cfg LeaderboardConfig) *LeaderboardService {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultLeaderboardConfig().MaxLimit
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultLeaderboardConfig().RefreshInterval
	}
	return &LeaderboardService{
		ledger:    ledger,
		cfg:       cfg,
		snapshots: make(map[model.Timeframe]*model.Leaderboard),
	}
}

// WindowStart returns the inclusive lower bound of a timeframe, nil for
// all-time. Week and month are rolling from now unless calendar alignment is
// configured.
func (s *LeaderboardService) WindowStart(timeframe model.Timeframe, now time.Time) *time.Time {
	switch timeframe {
	case model.TimeframeWeek:
		if s.cfg.CalendarAligned {
			start := now.UTC().Truncate(24 * time.Hour)
			weekday := (int(start.Weekday()) + 6) % 7 // Monday start
			start = start.AddDate(0, 0, -weekday)
			return &start
		}
		start := now.UTC().Add(-7 * 24 * time.Hour)
		return &start
	case model.TimeframeMonth:
		if s.cfg.CalendarAligned {
			start := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
			return &start
		}
		start := now.UTC().Add(-30 * 24 * time.Hour)
		return &start
	default:
		return nil
	}
}

func (s *LeaderboardService) Get(ctx context.Context, timeframe model.Timeframe, limit int) (*model.Leaderboard, error) {
	if !timeframe.Valid() {
		return nil, fmt.Errorf("unknown timeframe %q", timeframe)
	}
	if limit <= 0 || limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	s.mu.RLock()
	snapshot, ok := s.snapshots[timeframe]
	s.mu.RUnlock()

	if !ok {
		var err error
		snapshot, err = s.refreshTimeframe(ctx, timeframe)
		if err != nil {
			return nil, err
		}
	}

	rows := snapshot.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := &model.Leaderboard{
		Timeframe: timeframe,
		Rows:      make([]model.LeaderboardRow, len(rows)),
		UpdatedAt: snapshot.UpdatedAt,
	}
	copy(out.Rows, rows)

	return out, nil
}

// RankOf is always computed from the full ordering in the window, not the
// cached page, so a user far outside the top still gets a correct position.
func (s *LeaderboardService) RankOf(ctx context.Context, telegramID int64, timeframe model.Timeframe) (*model.UserRank, error) {
	if !timeframe.Valid() {
		return nil, fmt.Errorf("unknown timeframe %q", timeframe)
	}

	since := s.WindowStart(timeframe, time.Now())
	rank, err := s.ledger.UserRank(ctx, telegramID, since)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user rank: %w", err)
	}

	rank.Timeframe = timeframe
	return rank, nil
}

func (s *LeaderboardService) refreshTimeframe(ctx context.Context, timeframe model.Timeframe) (*model.Leaderboard, error) {
	now := time.Now()
	since := s.WindowStart(timeframe, now)

	rows, err := s.ledger.LeaderboardRows(ctx, since, uint64(s.cfg.MaxLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to materialize leaderboard: %w", err)
	}

	snapshot := &model.Leaderboard{
		Timeframe: timeframe,
		Rows:      rows,
		UpdatedAt: now.UTC(),
	}

	s.mu.Lock()
	s.snapshots[timeframe] = snapshot
	s.mu.Unlock()

	return snapshot, nil
}

// Refresh rebuilds every timeframe snapshot from the ledger.
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	for _, timeframe := range []model.Timeframe{
		model.TimeframeAllTime,
		model.TimeframeMonth,
		model.TimeframeWeek,
	} {
		if _, err := s.refreshTimeframe(ctx, timeframe); err != nil {
			return err
		}
	}
	return nil
}

// StartMaterializer refreshes the snapshots on the configured interval until
// Stop is called. Staleness between runs is acceptable; UpdatedAt tells the
// reader how stale.
func (s *LeaderboardService) StartMaterializer() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.RefreshInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := s.Refresh(ctx); err != nil {
				logger.Logger().Warn("leaderboard refresh failed", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return err
	}

	s.scheduler = sched
	sched.Start()

	return nil
}

func (s *LeaderboardService) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}
