package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"helpboard_miniapp/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ledgerEntry struct {
	ID             uuid.UUID `db:"id"`
	UserID         int64     `db:"user_id"`
	RequestID      uuid.UUID `db:"request_id"`
	Amount         int       `db:"amount"`
	Reason         string    `db:"reason"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

func (e *ledgerEntry) toModel() *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:             e.ID,
		UserID:         e.UserID,
		RequestID:      e.RequestID,
		Amount:         e.Amount,
		Reason:         model.LedgerReason(e.Reason),
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      e.CreatedAt,
	}
}

func appendEntryTx(ctx context.Context, tx *sqlx.Tx, entry *model.LedgerEntry) error {
	query, args, err := squirrel.
		Insert("points_ledger").
		SetMap(map[string]interface{}{
			"id":              entry.ID,
			"user_id":         entry.UserID,
			"request_id":      entry.RequestID,
			"amount":          entry.Amount,
			"reason":          string(entry.Reason),
			"idempotency_key": entry.IdempotencyKey,
			"created_at":      entry.CreatedAt,
		}).
		Suffix("ON CONFLICT (idempotency_key) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ledger insert query: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", storeErr(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDuplicateEntry
	}

	return nil
}

// refreshPointsTx reassigns the cached users.points column from the ledger
// sum. The cache is never incremented, only recomputed, so it cannot drift.
func refreshPointsTx(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET points = (
			SELECT COALESCE(SUM(amount), 0)
			FROM points_ledger
			WHERE user_id = $1
		)
		WHERE telegram_id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to refresh points cache: %w", storeErr(err))
	}
	return nil
}

// AppendEntry writes a single ledger entry. An idempotency-key hit returns
// ErrDuplicateEntry with no effect.
func (r *Repository) AppendEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := appendEntryTx(ctx, tx, entry); err != nil {
			return err
		}
		return refreshPointsTx(ctx, tx, entry.UserID)
	})
}

func (r *Repository) SumForUser(ctx context.Context, userID int64, since *time.Time) (int, error) {
	builder := squirrel.
		Select("COALESCE(SUM(amount), 0)").
		From("points_ledger").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	if since != nil {
		builder = builder.Where(squirrel.GtOrEq{"created_at": *since})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	var sum int
	err = r.db.GetContext(ctx, &sum, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger for user: %w", storeErr(err))
	}

	return sum, nil
}

func (r *Repository) EntriesForUser(ctx context.Context, userID int64) ([]*model.LedgerEntry, error) {
	query, args, err := squirrel.
		Select("*").
		From("points_ledger").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at ASC", "id ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []ledgerEntry
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", storeErr(err))
	}

	entries := make([]*model.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toModel()
	}

	return entries, nil
}

// AwardBadge grants a badge at most once per user. The membership check is the
// primary key on user_badges; only a fresh insert writes the bonus ledger
// entry, so retried completions cannot re-award.
func (r *Repository) AwardBadge(ctx context.Context, userID int64, badgeID string, entry *model.LedgerEntry) (bool, error) {
	awarded := false

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Insert("user_badges").
			SetMap(map[string]interface{}{
				"user_telegram_id": userID,
				"badge_id":         badgeID,
				"awarded_at":       entry.CreatedAt,
			}).
			Suffix("ON CONFLICT (user_telegram_id, badge_id) DO NOTHING").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert user badge: %w", storeErr(err))
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}

		awarded = true

		if err := appendEntryTx(ctx, tx, entry); err != nil && !errors.Is(err, ErrDuplicateEntry) {
			return err
		}

		return refreshPointsTx(ctx, tx, userID)
	})
	if err != nil {
		return false, err
	}

	return awarded, nil
}

func (r *Repository) HelperStats(ctx context.Context, userID int64) (*model.HelperStats, error) {
	stats := &model.HelperStats{TelegramID: userID}

	err := r.db.QueryRowxContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE rating = 5),
			COUNT(*) FILTER (WHERE completed_early),
			COUNT(*) FILTER (WHERE urgency = 'critical'),
			COUNT(DISTINCT category)
		FROM help_requests
		WHERE accepted_by = $1 AND status = 'completed'`,
		userID).Scan(
		&stats.CompletedRequests,
		&stats.FiveStarRatings,
		&stats.EarlyCompletions,
		&stats.CriticalCompletions,
		&stats.DistinctCategories,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get helper stats: %w", storeErr(err))
	}

	points, err := r.SumForUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	stats.TotalPoints = points

	return stats, nil
}

// LeaderboardRows aggregates the ledger inside the window. Ordering is points
// descending with ties broken by the earliest qualifying entry, so repeated
// queries over unchanged data return the same order.
func (r *Repository) LeaderboardRows(ctx context.Context, since *time.Time, limit uint64) ([]model.LeaderboardRow, error) {
	builder := squirrel.
		Select(
			"l.user_id",
			"u.username",
			"SUM(l.amount) AS points",
			"MIN(l.created_at) AS first_entry_at",
			"COUNT(*) FILTER (WHERE l.reason = 'base_completion') AS completed",
		).
		From("points_ledger l").
		Join("users u ON u.telegram_id = l.user_id").
		GroupBy("l.user_id", "u.username").
		OrderBy("points DESC", "first_entry_at ASC", "l.user_id ASC").
		Limit(limit).
		PlaceholderFormat(squirrel.Dollar)

	if since != nil {
		builder = builder.Where(squirrel.GtOrEq{"l.created_at": *since})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		UserID       int64     `db:"user_id"`
		Username     string    `db:"username"`
		Points       int       `db:"points"`
		FirstEntryAt time.Time `db:"first_entry_at"`
		Completed    int       `db:"completed"`
	}
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", storeErr(err))
	}

	out := make([]model.LeaderboardRow, len(rows))
	for i, row := range rows {
		out[i] = model.LeaderboardRow{
			TelegramID:        row.UserID,
			Username:          row.Username,
			Points:            row.Points,
			CompletedInWindow: row.Completed,
			FirstEntryAt:      row.FirstEntryAt,
		}
	}

	return out, nil
}

// UserRank positions the user inside the full ordering of the window, not the
// truncated page a leaderboard query returns.
func (r *Repository) UserRank(ctx context.Context, userID int64, since *time.Time) (*model.UserRank, error) {
	var row struct {
		Rank   int `db:"rank"`
		Points int `db:"points"`
	}

	err := r.db.GetContext(ctx, &row, `
		SELECT rank, points FROM (
			SELECT
				user_id,
				SUM(amount) AS points,
				ROW_NUMBER() OVER (
					ORDER BY SUM(amount) DESC, MIN(created_at) ASC, user_id ASC
				) AS rank
			FROM points_ledger
			WHERE $1::timestamptz IS NULL OR created_at >= $1
			GROUP BY user_id
		) ranked
		WHERE user_id = $2`,
		since, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user rank: %w", storeErr(err))
	}

	return &model.UserRank{
		TelegramID: userID,
		Rank:       row.Rank,
		Points:     row.Points,
	}, nil
}
