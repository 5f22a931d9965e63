package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"helpboard_miniapp/internal/model"
	"helpboard_miniapp/internal/repository"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the Postgres repository with the same
// concurrency contract: conditional writes keyed on (status, version) and
// idempotent ledger inserts keyed on idempotency_key. Race and retry tests run
// against it so they exercise the real service logic end to end.
type memStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*model.HelpRequest
	entries  map[string]*model.LedgerEntry
	order    []string
	badges   map[int64]map[string]time.Time
	users    map[int64]*model.User
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[uuid.UUID]*model.HelpRequest),
		entries:  make(map[string]*model.LedgerEntry),
		badges:   make(map[int64]map[string]time.Time),
		users:    make(map[int64]*model.User),
	}
}

func (m *memStore) CreateRequest(_ context.Context, req *model.HelpRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *req
	m.requests[req.ID] = &clone
	return nil
}

func (m *memStore) GetRequestByID(_ context.Context, id uuid.UUID) (*model.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (m *memStore) ListOpenRequests(_ context.Context, category string, limit int) ([]*model.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.HelpRequest
	for _, req := range m.requests {
		if req.Status != model.StatusOpen {
			continue
		}
		if category != "" && req.Category != category {
			continue
		}
		clone := *req
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListUserRequests(_ context.Context, telegramID int64) ([]*model.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.HelpRequest
	for _, req := range m.requests {
		if req.RequesterID == telegramID || (req.AcceptedBy != nil && *req.AcceptedBy == telegramID) {
			clone := *req
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memStore) AcceptRequest(_ context.Context, id uuid.UUID, helperID int64, expectedVersion int64) (*model.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Status != model.StatusOpen || req.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}

	now := time.Now().UTC()
	req.Status = model.StatusInProgress
	req.AcceptedBy = &helperID
	req.AcceptedAt = &now
	req.Version++

	clone := *req
	return &clone, nil
}

func (m *memStore) CompleteRequest(_ context.Context, id uuid.UUID, expectedVersion int64, rating int, completedEarly bool, entries []*model.LedgerEntry) (*model.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Status != model.StatusInProgress || req.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}

	now := time.Now().UTC()
	req.Status = model.StatusCompleted
	req.Rating = &rating
	req.CompletedEarly = completedEarly
	req.CompletedAt = &now
	req.Version++

	for _, e := range entries {
		m.insertEntryLocked(e)
	}
	if len(entries) > 0 {
		m.refreshPointsLocked(entries[0].UserID)
	}

	clone := *req
	return &clone, nil
}

func (m *memStore) CancelRequest(_ context.Context, id uuid.UUID, expectedVersion int64, reason string) (*model.HelpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.Status.Terminal() || req.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}

	req.Status = model.StatusCancelled
	req.CancelReason = &reason
	req.AcceptedBy = nil
	req.AcceptedAt = nil
	req.Version++

	clone := *req
	return &clone, nil
}

func (m *memStore) insertEntryLocked(e *model.LedgerEntry) bool {
	if _, dup := m.entries[e.IdempotencyKey]; dup {
		return false
	}
	clone := *e
	m.entries[e.IdempotencyKey] = &clone
	m.order = append(m.order, e.IdempotencyKey)
	return true
}

func (m *memStore) refreshPointsLocked(userID int64) {
	if user, ok := m.users[userID]; ok {
		sum := 0
		for _, e := range m.entries {
			if e.UserID == userID {
				sum += e.Amount
			}
		}
		user.Points = sum
	}
}

func (m *memStore) AppendEntry(_ context.Context, entry *model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.insertEntryLocked(entry) {
		return repository.ErrDuplicateEntry
	}
	m.refreshPointsLocked(entry.UserID)
	return nil
}

func (m *memStore) SumForUser(_ context.Context, userID int64, since *time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := 0
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		if since != nil && e.CreatedAt.Before(*since) {
			continue
		}
		sum += e.Amount
	}
	return sum, nil
}

func (m *memStore) EntriesForUser(_ context.Context, userID int64) ([]*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.LedgerEntry
	for _, key := range m.order {
		if e := m.entries[key]; e.UserID == userID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memStore) AwardBadge(_ context.Context, userID int64, badgeID string, entry *model.LedgerEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	held, ok := m.badges[userID]
	if !ok {
		held = make(map[string]time.Time)
		m.badges[userID] = held
	}
	if _, dup := held[badgeID]; dup {
		return false, nil
	}

	held[badgeID] = entry.CreatedAt
	m.insertEntryLocked(entry)
	m.refreshPointsLocked(userID)
	return true, nil
}

func (m *memStore) HelperStats(_ context.Context, userID int64) (*model.HelperStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &model.HelperStats{TelegramID: userID}
	categories := make(map[string]struct{})

	for _, req := range m.requests {
		if req.Status != model.StatusCompleted || req.AcceptedBy == nil || *req.AcceptedBy != userID {
			continue
		}
		stats.CompletedRequests++
		if req.Rating != nil && *req.Rating == 5 {
			stats.FiveStarRatings++
		}
		if req.CompletedEarly {
			stats.EarlyCompletions++
		}
		if req.Urgency == model.UrgencyCritical {
			stats.CriticalCompletions++
		}
		categories[req.Category] = struct{}{}
	}
	stats.DistinctCategories = len(categories)

	for _, e := range m.entries {
		if e.UserID == userID {
			stats.TotalPoints += e.Amount
		}
	}
	return stats, nil
}

func (m *memStore) LeaderboardRows(_ context.Context, since *time.Time, limit uint64) ([]model.LeaderboardRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type agg struct {
		row model.LeaderboardRow
	}
	byUser := make(map[int64]*agg)

	for _, key := range m.order {
		e := m.entries[key]
		if since != nil && e.CreatedAt.Before(*since) {
			continue
		}
		a, ok := byUser[e.UserID]
		if !ok {
			a = &agg{row: model.LeaderboardRow{TelegramID: e.UserID, FirstEntryAt: e.CreatedAt}}
			if user, exists := m.users[e.UserID]; exists {
				a.row.Username = user.Username
			}
			byUser[e.UserID] = a
		}
		a.row.Points += e.Amount
		if e.CreatedAt.Before(a.row.FirstEntryAt) {
			a.row.FirstEntryAt = e.CreatedAt
		}
		if e.Reason == model.ReasonBaseCompletion {
			a.row.CompletedInWindow++
		}
	}

	rows := make([]model.LeaderboardRow, 0, len(byUser))
	for _, a := range byUser {
		rows = append(rows, a.row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		if !rows[i].FirstEntryAt.Equal(rows[j].FirstEntryAt) {
			return rows[i].FirstEntryAt.Before(rows[j].FirstEntryAt)
		}
		return rows[i].TelegramID < rows[j].TelegramID
	})
	if uint64(len(rows)) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *memStore) UserRank(ctx context.Context, userID int64, since *time.Time) (*model.UserRank, error) {
	rows, err := m.LeaderboardRows(ctx, since, ^uint64(0))
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if row.TelegramID == userID {
			return &model.UserRank{
				TelegramID: userID,
				Rank:       i + 1,
				Points:     row.Points,
			}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *user
	m.users[user.TelegramID] = &clone
	return nil
}

func (m *memStore) GetUserByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[telegramID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	clone := *user
	clone.Badges = nil
	for _, badge := range m.badgesSortedLocked(telegramID) {
		clone.Badges = append(clone.Badges, badge.ID)
	}
	return &clone, nil
}

func (m *memStore) GetUserBadges(_ context.Context, telegramID int64) ([]model.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.badgesSortedLocked(telegramID), nil
}

func (m *memStore) badgesSortedLocked(telegramID int64) []model.Badge {
	var out []model.Badge
	for id, awardedAt := range m.badges[telegramID] {
		out = append(out, model.Badge{ID: id, AwardedAt: awardedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].AwardedAt.Before(out[j].AwardedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memStore) RecomputeUserPoints(_ context.Context, telegramID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refreshPointsLocked(telegramID)
	user, ok := m.users[telegramID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return user.Points, nil
}

// recordingNotifier counts deliveries; safe under concurrent callers.
type recordingNotifier struct {
	mu        sync.Mutex
	accepted  int
	completed int
	badges    []string
}

func (n *recordingNotifier) RequestAccepted(_ *model.HelpRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accepted++
}

func (n *recordingNotifier) RequestCompleted(_ *model.HelpRequest, _ int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed++
}

func (n *recordingNotifier) BadgeAwarded(_ int64, badge model.Badge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badges = append(n.badges, badge.ID)
}
