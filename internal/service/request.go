package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/internal/repository"

	"github.com/google/uuid"
)

type RequestService struct {
	requests RequestRepository
	ledger   LedgerRepository
	users    UserRepository
	scoring  *ScoringEngine
	badges   []BadgeDefinition
	notifier Notifier
}

func NewRequestService(
	requests RequestRepository,
	ledger LedgerRepository,
	users UserRepository,
	scoring *ScoringEngine,
	badges []BadgeDefinition,
	notifier Notifier,
) *RequestService {
	return &RequestService{
		requests: requests,
		ledger:   ledger,
		users:    users,
		scoring:  scoring,
		badges:   badges,
		notifier: notifier,
	}
}

type CreateRequestInput struct {
	RequesterID  int64
	Category     string
	Urgency      model.Urgency
	Title        string
	Description  string
	DeadlineHint *time.Time
}

func (s *RequestService) Create(ctx context.Context, in *CreateRequestInput) (*model.HelpRequest, error) {
	if in.Category == "" {
		return nil, fmt.Errorf("category is required")
	}
	if !in.Urgency.Valid() {
		return nil, fmt.Errorf("unknown urgency %q", in.Urgency)
	}

	req := &model.HelpRequest{
		ID:           uuid.New(),
		RequesterID:  in.RequesterID,
		Status:       model.StatusOpen,
		Category:     in.Category,
		Urgency:      in.Urgency,
		Title:        in.Title,
		Description:  in.Description,
		CreatedAt:    time.Now().UTC(),
		DeadlineHint: in.DeadlineHint,
		Version:      0,
	}

	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create help request: %w", err)
	}

	return req, nil
}

func (s *RequestService) Get(ctx context.Context, id uuid.UUID) (*model.HelpRequest, error) {
	req, err := s.requests.GetRequestByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *RequestService) ListOpen(ctx context.Context, category string, limit int) ([]*model.HelpRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.requests.ListOpenRequests(ctx, category, limit)
}

func (s *RequestService) ListForUser(ctx context.Context, telegramID int64) ([]*model.HelpRequest, error) {
	return s.requests.ListUserRequests(ctx, telegramID)
}

// Accept assigns exactly one helper to an open request. Under concurrent
// attempts the repository's conditional write picks the single winner; every
// loser gets ErrAlreadyAccepted and should not blindly retry.
func (s *RequestService) Accept(ctx context.Context, id uuid.UUID, helperID int64) (*model.HelpRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.RequesterID == helperID {
		return nil, ErrSelfAccept
	}

	switch req.Status {
	case model.StatusOpen:
	case model.StatusInProgress:
		return nil, ErrAlreadyAccepted
	default:
		return nil, ErrInvalidState
	}

	accepted, err := s.requests.AcceptRequest(ctx, id, helperID, req.Version)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, ErrAlreadyAccepted
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to accept request: %w", err)
	}

	s.notifier.RequestAccepted(accepted)

	return accepted, nil
}

// ConfirmCompletion is requester-only and idempotent. The completed state and
// its scoring entries are committed in one transaction, so a completed request
// always has its entries. Calling it again on an already-completed request
// only re-runs the badge pass (a no-op for held badges) and returns the
// request unchanged.
func (s *RequestService) ConfirmCompletion(ctx context.Context, id uuid.UUID, requesterID int64, rating int, completedEarly bool) (*model.HelpRequest, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.RequesterID != requesterID {
		return nil, ErrForbidden
	}

	switch req.Status {
	case model.StatusInProgress:
	case model.StatusCompleted:
		// Retry after a crash between phases: finish the badge pass from
		// the stored terminal state, never from the caller's arguments.
		if err := s.applyBadges(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	default:
		return nil, ErrInvalidState
	}

	scored := *req
	scored.Rating = &rating
	scored.CompletedEarly = completedEarly
	entries := s.scoring.CompletionEntries(&scored, time.Now().UTC())

	completed, err := s.requests.CompleteRequest(ctx, id, req.Version, rating, completedEarly, entries)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			// Someone got there first; if the winner completed it the
			// call is an idempotent success.
			current, getErr := s.Get(ctx, id)
			if getErr == nil && current.Status == model.StatusCompleted {
				if err := s.applyBadges(ctx, current); err != nil {
					return nil, err
				}
				return current, nil
			}
			return nil, ErrConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to confirm completion: %w", err)
	}

	if err := s.applyBadges(ctx, completed); err != nil {
		return nil, err
	}

	awarded := 0
	for _, e := range entries {
		awarded += e.Amount
	}
	s.notifier.RequestCompleted(completed, awarded)

	return completed, nil
}

// applyBadges re-evaluates every badge predicate for the credited helper.
// Already-held badges are skipped by set membership; predicates are monotonic,
// so re-checking after a retry is cheap and safe.
func (s *RequestService) applyBadges(ctx context.Context, req *model.HelpRequest) error {
	if req.AcceptedBy == nil {
		return nil
	}
	helperID := *req.AcceptedBy

	user, err := s.users.GetUserByTelegramID(ctx, helperID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	held := make(map[string]struct{}, len(user.Badges))
	for _, id := range user.Badges {
		held[id] = struct{}{}
	}

	stats, err := s.ledger.HelperStats(ctx, helperID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, def := range s.badges {
		if _, ok := held[def.ID]; ok {
			continue
		}
		if !def.Unlocked(stats) {
			continue
		}

		entry := &model.LedgerEntry{
			ID:             uuid.New(),
			UserID:         helperID,
			RequestID:      req.ID,
			Amount:         def.BonusPoints,
			Reason:         model.ReasonBadgeAward,
			IdempotencyKey: model.BadgeKey(helperID, def.ID),
			CreatedAt:      now,
		}

		fresh, err := s.ledger.AwardBadge(ctx, helperID, def.ID, entry)
		if err != nil {
			return fmt.Errorf("failed to award badge %s: %w", def.ID, err)
		}
		if fresh {
			stats.TotalPoints += def.BonusPoints
			s.notifier.BadgeAwarded(helperID, model.Badge{
				ID:        def.ID,
				Name:      def.Name,
				AwardedAt: now,
			})
		}
	}

	return nil
}

// Cancel is allowed from open (requester only) and in_progress (requester or
// the accepted helper). Terminal states stay terminal. Cancelling an
// in-progress request releases the helper assignment.
func (s *RequestService) Cancel(ctx context.Context, id uuid.UUID, byUserID int64, reason string) (*model.HelpRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case model.StatusOpen:
		if byUserID != req.RequesterID {
			return nil, ErrForbidden
		}
	case model.StatusInProgress:
		isHelper := req.AcceptedBy != nil && byUserID == *req.AcceptedBy
		if byUserID != req.RequesterID && !isHelper {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrInvalidState
	}

	cancelled, err := s.requests.CancelRequest(ctx, id, req.Version, reason)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, ErrConflict
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to cancel request: %w", err)
	}

	return cancelled, nil
}
