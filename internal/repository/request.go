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

type helpRequest struct {
	ID             uuid.UUID  `db:"id"`
	RequesterID    int64      `db:"requester_id"`
	AcceptedBy     *int64     `db:"accepted_by"`
	Status         string     `db:"status"`
	Category       string     `db:"category"`
	Urgency        string     `db:"urgency"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	CreatedAt      time.Time  `db:"created_at"`
	AcceptedAt     *time.Time `db:"accepted_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	DeadlineHint   *time.Time `db:"deadline_hint"`
	Rating         *int       `db:"rating"`
	CompletedEarly bool       `db:"completed_early"`
	CancelReason   *string    `db:"cancel_reason"`
	Version        int64      `db:"version"`
}

func (h *helpRequest) toModel() *model.HelpRequest {
	return &model.HelpRequest{
		ID:             h.ID,
		RequesterID:    h.RequesterID,
		AcceptedBy:     h.AcceptedBy,
		Status:         model.RequestStatus(h.Status),
		Category:       h.Category,
		Urgency:        model.Urgency(h.Urgency),
		Title:          h.Title,
		Description:    h.Description,
		CreatedAt:      h.CreatedAt,
		AcceptedAt:     h.AcceptedAt,
		CompletedAt:    h.CompletedAt,
		DeadlineHint:   h.DeadlineHint,
		Rating:         h.Rating,
		CompletedEarly: h.CompletedEarly,
		CancelReason:   h.CancelReason,
		Version:        h.Version,
	}
}

func (r *Repository) CreateRequest(ctx context.Context, req *model.HelpRequest) error {
	query, args, err := squirrel.
		Insert("help_requests").
		SetMap(map[string]interface{}{
			"id":              req.ID,
			"requester_id":    req.RequesterID,
			"status":          string(req.Status),
			"category":        req.Category,
			"urgency":         string(req.Urgency),
			"title":           req.Title,
			"description":     req.Description,
			"created_at":      req.CreatedAt,
			"deadline_hint":   req.DeadlineHint,
			"completed_early": false,
			"version":         req.Version,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build request insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert help request: %w", storeErr(err))
	}

	return nil
}

func (r *Repository) GetRequestByID(ctx context.Context, id uuid.UUID) (*model.HelpRequest, error) {
	var req helpRequest
	query, args, err := squirrel.
		Select("*").
		From("help_requests").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &req, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}

	return req.toModel(), nil
}

func (r *Repository) getRequestWithTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.HelpRequest, error) {
	var req helpRequest
	query, args, err := squirrel.
		Select("*").
		From("help_requests").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &req, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}

	return req.toModel(), nil
}

func (r *Repository) ListOpenRequests(ctx context.Context, category string, limit int) ([]*model.HelpRequest, error) {
	builder := squirrel.
		Select("*").
		From("help_requests").
		Where(squirrel.Eq{"status": string(model.StatusOpen)}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	if category != "" {
		builder = builder.Where(squirrel.Eq{"category": category})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []helpRequest
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list open requests: %w", storeErr(err))
	}

	requests := make([]*model.HelpRequest, len(rows))
	for i := range rows {
		requests[i] = rows[i].toModel()
	}

	return requests, nil
}

func (r *Repository) ListUserRequests(ctx context.Context, telegramID int64) ([]*model.HelpRequest, error) {
	query, args, err := squirrel.
		Select("*").
		From("help_requests").
		Where(squirrel.Or{
			squirrel.Eq{"requester_id": telegramID},
			squirrel.Eq{"accepted_by": telegramID},
		}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []helpRequest
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list user requests: %w", storeErr(err))
	}

	requests := make([]*model.HelpRequest, len(rows))
	for i := range rows {
		requests[i] = rows[i].toModel()
	}

	return requests, nil
}

// AcceptRequest is the single contended write of the lifecycle. The update is
// conditioned on (status = open, version unchanged), so of any number of
// concurrent helpers exactly one moves the request to in_progress; the rest
// get ErrVersionConflict.
func (r *Repository) AcceptRequest(ctx context.Context, id uuid.UUID, helperID int64, expectedVersion int64) (*model.HelpRequest, error) {
	now := time.Now().UTC()

	query, args, err := squirrel.
		Update("help_requests").
		Set("status", string(model.StatusInProgress)).
		Set("accepted_by", helperID).
		Set("accepted_at", now).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{
			"id":      id,
			"status":  string(model.StatusOpen),
			"version": expectedVersion,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to accept request: %w", storeErr(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Distinguish an unknown id from a lost race.
		if _, err := r.GetRequestByID(ctx, id); errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}

	return r.GetRequestByID(ctx, id)
}

// CompleteRequest moves the request to its terminal completed state and writes
// the scoring entries in one transaction: a reader can never observe a
// completed request without its ledger entries. Entries whose idempotency key
// already exists are skipped, which keeps retries from double-counting.
func (r *Repository) CompleteRequest(ctx context.Context, id uuid.UUID, expectedVersion int64, rating int, completedEarly bool, entries []*model.LedgerEntry) (*model.HelpRequest, error) {
	var out *model.HelpRequest

	err := r.Transaction(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()

		query, args, err := squirrel.
			Update("help_requests").
			SetMap(map[string]interface{}{
				"status":          string(model.StatusCompleted),
				"completed_at":    now,
				"rating":          rating,
				"completed_early": completedEarly,
			}).
			Set("version", squirrel.Expr("version + 1")).
			Where(squirrel.Eq{
				"id":      id,
				"status":  string(model.StatusInProgress),
				"version": expectedVersion,
			}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to complete request: %w", storeErr(err))
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			if _, err := r.getRequestWithTx(ctx, tx, id); errors.Is(err, ErrNotFound) {
				return ErrNotFound
			}
			return ErrVersionConflict
		}

		for _, entry := range entries {
			if err := appendEntryTx(ctx, tx, entry); err != nil && !errors.Is(err, ErrDuplicateEntry) {
				return err
			}
		}

		if len(entries) > 0 {
			if err := refreshPointsTx(ctx, tx, entries[0].UserID); err != nil {
				return err
			}
		}

		out, err = r.getRequestWithTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// CancelRequest releases the helper assignment along with the status change:
// accepted_by is only ever populated while a request is in progress or
// completed, never on a cancelled record.
func (r *Repository) CancelRequest(ctx context.Context, id uuid.UUID, expectedVersion int64, reason string) (*model.HelpRequest, error) {
	query, args, err := squirrel.
		Update("help_requests").
		SetMap(map[string]interface{}{
			"status":        string(model.StatusCancelled),
			"cancel_reason": reason,
			"accepted_by":   nil,
			"accepted_at":   nil,
		}).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{
			"id":      id,
			"version": expectedVersion,
			"status":  []string{string(model.StatusOpen), string(model.StatusInProgress)},
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel request: %w", storeErr(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		if _, err := r.GetRequestByID(ctx, id); errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrVersionConflict
	}

	return r.GetRequestByID(ctx, id)
}
