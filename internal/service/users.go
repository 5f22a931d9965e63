package service

import (
	"context"
	"errors"
	"fmt"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/internal/repository"
	"helpboard_miniapp/pkg/logger"

	"go.uber.org/zap"
)

type UserService struct {
	repo   UserRepository
	ledger LedgerRepository
}

func NewUserService(repo UserRepository, ledger LedgerRepository) *UserService {
	return &UserService{
		repo:   repo,
		ledger: ledger,
	}
}

func (s *UserService) RegisterUser(ctx context.Context, user *model.User) error {
	err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	return nil
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by telegram ID: %w", err)
	}
	return user, nil
}

// GetUserStats assembles the profile view. Points come from the ledger sum,
// not the cached users.points column, so a discarded cache changes nothing.
func (s *UserService) GetUserStats(ctx context.Context, telegramID int64) (*model.UserStats, error) {
	user, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	points, err := s.ledger.SumForUser(ctx, telegramID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to sum user points: %w", err)
	}

	if user.Points != points {
		// Cached column drifted from the ledger; rebuild it in place. The
		// response already carries the ledger sum either way.
		if _, err := s.repo.RecomputeUserPoints(ctx, telegramID); err != nil {
			logger.Logger().Warn("failed to repair points cache",
				zap.Int64("telegram_id", telegramID), zap.Error(err))
		}
	}

	stats, err := s.ledger.HelperStats(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get helper stats: %w", err)
	}

	badges, err := s.repo.GetUserBadges(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user badges: %w", err)
	}

	return &model.UserStats{
		TelegramID: user.TelegramID,
		Username:   user.Username,
		Points:     points,
		Helper:     *stats,
		Badges:     badges,
	}, nil
}
