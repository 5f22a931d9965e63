package mocks

import (
	"context"
	"time"

	"helpboard_miniapp/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) CreateRequest(ctx context.Context, req *model.HelpRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*model.HelpRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HelpRequest), args.Error(1)
}

func (m *MockRequestRepository) ListOpenRequests(ctx context.Context, category string, limit int) ([]*model.HelpRequest, error) {
	args := m.Called(ctx, category, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.HelpRequest), args.Error(1)
}

func (m *MockRequestRepository) ListUserRequests(ctx context.Context, telegramID int64) ([]*model.HelpRequest, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.HelpRequest), args.Error(1)
}

func (m *MockRequestRepository) AcceptRequest(ctx context.Context, id uuid.UUID, helperID int64, expectedVersion int64) (*model.HelpRequest, error) {
	args := m.Called(ctx, id, helperID, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HelpRequest), args.Error(1)
}

func (m *MockRequestRepository) CompleteRequest(ctx context.Context, id uuid.UUID, expectedVersion int64, rating int, completedEarly bool, entries []*model.LedgerEntry) (*model.HelpRequest, error) {
	args := m.Called(ctx, id, expectedVersion, rating, completedEarly, entries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HelpRequest), args.Error(1)
}

func (m *MockRequestRepository) CancelRequest(ctx context.Context, id uuid.UUID, expectedVersion int64, reason string) (*model.HelpRequest, error) {
	args := m.Called(ctx, id, expectedVersion, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HelpRequest), args.Error(1)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) AppendEntry(ctx context.Context, entry *model.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) SumForUser(ctx context.Context, userID int64, since *time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerRepository) EntriesForUser(ctx context.Context, userID int64) ([]*model.LedgerEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) AwardBadge(ctx context.Context, userID int64, badgeID string, entry *model.LedgerEntry) (bool, error) {
	args := m.Called(ctx, userID, badgeID, entry)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) HelperStats(ctx context.Context, userID int64) (*model.HelperStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HelperStats), args.Error(1)
}

func (m *MockLedgerRepository) LeaderboardRows(ctx context.Context, since *time.Time, limit uint64) ([]model.LeaderboardRow, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LeaderboardRow), args.Error(1)
}

func (m *MockLedgerRepository) UserRank(ctx context.Context, userID int64, since *time.Time) (*model.UserRank, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserRank), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetUserBadges(ctx context.Context, telegramID int64) ([]model.Badge, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Badge), args.Error(1)
}

func (m *MockUserRepository) RecomputeUserPoints(ctx context.Context, telegramID int64) (int, error) {
	args := m.Called(ctx, telegramID)
	return args.Int(0), args.Error(1)
}
