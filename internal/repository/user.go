package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"helpboard_miniapp/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type userRow struct {
	TelegramID       int64          `db:"telegram_id"`
	Handle           string         `db:"handle"`
	Username         string         `db:"username"`
	Points           int            `db:"points"`
	Badges           pq.StringArray `db:"badges"`
	RegistrationDate time.Time      `db:"registration_date"`
	AuthDate         time.Time      `db:"last_auth_date"`
}

func (u *userRow) toModel() *model.User {
	return &model.User{
		TelegramID:       u.TelegramID,
		Handle:           u.Handle,
		Username:         u.Username,
		Points:           u.Points,
		Badges:           []string(u.Badges),
		RegistrationDate: u.RegistrationDate,
		AuthDate:         u.AuthDate,
	}
}

func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query, args, err := squirrel.
		Insert("users").
		SetMap(map[string]interface{}{
			"telegram_id":       user.TelegramID,
			"handle":            user.Handle,
			"username":          user.Username,
			"points":            0,
			"registration_date": user.RegistrationDate,
			"last_auth_date":    user.AuthDate,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", storeErr(err))
	}

	return nil
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user userRow

	// Badges come back aggregated in unlock order, empty array when none.
	err := r.db.GetContext(ctx, &user, `
		SELECT
			u.telegram_id,
			u.handle,
			u.username,
			u.points,
			u.registration_date,
			u.last_auth_date,
			COALESCE(
				array_agg(b.badge_id ORDER BY b.awarded_at)
					FILTER (WHERE b.badge_id IS NOT NULL),
				'{}'
			) AS badges
		FROM users u
		LEFT JOIN user_badges b ON b.user_telegram_id = u.telegram_id
		WHERE u.telegram_id = $1
		GROUP BY u.telegram_id`,
		telegramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}

	return user.toModel(), nil
}

func (r *Repository) GetUserBadges(ctx context.Context, telegramID int64) ([]model.Badge, error) {
	query, args, err := squirrel.
		Select("badge_id", "awarded_at").
		From("user_badges").
		Where(squirrel.Eq{"user_telegram_id": telegramID}).
		OrderBy("awarded_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []struct {
		BadgeID   string    `db:"badge_id"`
		AwardedAt time.Time `db:"awarded_at"`
	}
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get user badges: %w", storeErr(err))
	}

	badges := make([]model.Badge, len(rows))
	for i, row := range rows {
		badges[i] = model.Badge{
			ID:        row.BadgeID,
			AwardedAt: row.AwardedAt,
		}
	}

	return badges, nil
}

// RecomputeUserPoints rebuilds the cached total from the ledger and returns
// it. Safe to call at any time; the ledger stays the source of truth.
func (r *Repository) RecomputeUserPoints(ctx context.Context, telegramID int64) (int, error) {
	var points int

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := refreshPointsTx(ctx, tx, telegramID); err != nil {
			return err
		}

		return tx.GetContext(ctx, &points,
			`SELECT points FROM users WHERE telegram_id = $1`, telegramID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}

	return points, nil
}
