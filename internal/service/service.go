package service

import (
	"context"
	"errors"
	"time"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("request not found")

	// ErrAlreadyAccepted is the expected outcome of losing the acceptance
	// race: the request was just taken by someone else.
	ErrAlreadyAccepted = errors.New("request already accepted by another helper")

	// ErrConflict means the request changed under a non-accept operation.
	// Re-fetch and retry.
	ErrConflict = errors.New("request was modified concurrently")

	ErrInvalidState  = errors.New("operation not allowed in current request state")
	ErrForbidden     = errors.New("user is not allowed to perform this operation")
	ErrSelfAccept    = errors.New("requester cannot accept own request")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrStoreUnavailable passes through from the repository: a transient
	// infrastructure failure the caller may retry with backoff.
	ErrStoreUnavailable = repository.ErrStoreUnavailable
)

type Service struct {
	*UserService
	*RequestService
	*LeaderboardService
}

func NewService(userService *UserService, requestService *RequestService, leaderboardService *LeaderboardService) *Service {
	return &Service{
		UserService:        userService,
		RequestService:     requestService,
		LeaderboardService: leaderboardService,
	}
}

type RequestServiceI interface {
	Create(ctx context.Context, in *CreateRequestInput) (*model.HelpRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*model.HelpRequest, error)
	ListOpen(ctx context.Context, category string, limit int) ([]*model.HelpRequest, error)
	ListForUser(ctx context.Context, telegramID int64) ([]*model.HelpRequest, error)
	Accept(ctx context.Context, id uuid.UUID, helperID int64) (*model.HelpRequest, error)
	ConfirmCompletion(ctx context.Context, id uuid.UUID, requesterID int64, rating int, completedEarly bool) (*model.HelpRequest, error)
	Cancel(ctx context.Context, id uuid.UUID, byUserID int64, reason string) (*model.HelpRequest, error)
}

type UserServiceI interface {
	RegisterUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetUserStats(ctx context.Context, telegramID int64) (*model.UserStats, error)
}

type LeaderboardServiceI interface {
	Get(ctx context.Context, timeframe model.Timeframe, limit int) (*model.Leaderboard, error)
	RankOf(ctx context.Context, telegramID int64, timeframe model.Timeframe) (*model.UserRank, error)
}

type RequestRepository interface {
	CreateRequest(ctx context.Context, req *model.HelpRequest) error
	GetRequestByID(ctx context.Context, id uuid.UUID) (*model.HelpRequest, error)
	ListOpenRequests(ctx context.Context, category string, limit int) ([]*model.HelpRequest, error)
	ListUserRequests(ctx context.Context, telegramID int64) ([]*model.HelpRequest, error)
	AcceptRequest(ctx context.Context, id uuid.UUID, helperID int64, expectedVersion int64) (*model.HelpRequest, error)
	CompleteRequest(ctx context.Context, id uuid.UUID, expectedVersion int64, rating int, completedEarly bool, entries []*model.LedgerEntry) (*model.HelpRequest, error)
	CancelRequest(ctx context.Context, id uuid.UUID, expectedVersion int64, reason string) (*model.HelpRequest, error)
}

type LedgerRepository interface {
	AppendEntry(ctx context.Context, entry *model.LedgerEntry) error
	SumForUser(ctx context.Context, userID int64, since *time.Time) (int, error)
	EntriesForUser(ctx context.Context, userID int64) ([]*model.LedgerEntry, error)
	AwardBadge(ctx context.Context, userID int64, badgeID string, entry *model.LedgerEntry) (bool, error)
	HelperStats(ctx context.Context, userID int64) (*model.HelperStats, error)
	LeaderboardRows(ctx context.Context, since *time.Time, limit uint64) ([]model.LeaderboardRow, error)
	UserRank(ctx context.Context, userID int64, since *time.Time) (*model.UserRank, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetUserBadges(ctx context.Context, telegramID int64) ([]model.Badge, error)
	RecomputeUserPoints(ctx context.Context, telegramID int64) (int, error)
}

// Notifier is the fire-and-forget notification sink. Implementations must
// never block the caller; a delivery failure never rolls back core state.
type Notifier interface {
	RequestAccepted(req *model.HelpRequest)
	RequestCompleted(req *model.HelpRequest, pointsAwarded int)
	BadgeAwarded(userID int64, badge model.Badge)
}
