package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type LedgerReason string

const (
	ReasonBaseCompletion LedgerReason = "base_completion"
	ReasonUrgencyBonus   LedgerReason = "urgency_bonus"
	ReasonQualityBonus   LedgerReason = "quality_bonus"
	ReasonEarlyBonus     LedgerReason = "early_bonus"
	ReasonBadgeAward     LedgerReason = "badge_award"
)

// LedgerEntry is immutable once written. The ledger is the only source of
// truth for point totals; users.points is a rebuildable cache of its sum.
type LedgerEntry struct {
	ID             uuid.UUID
	UserID         int64
	RequestID      uuid.UUID
	Amount         int
	Reason         LedgerReason
	IdempotencyKey string
	CreatedAt      time.Time
}

// CompletionKey derives the idempotency key for one scoring contribution of a
// completed request. Retried completions produce the same keys, so the unique
// index on the ledger turns re-application into a no-op per contribution.
func CompletionKey(requestID uuid.UUID, reason LedgerReason) string {
	return fmt.Sprintf("%s:%s", requestID, reason)
}

// BadgeKey derives the idempotency key for a badge award entry. A badge is
// granted at most once per user, so the key is user-scoped rather than
// request-scoped.
func BadgeKey(userID int64, badgeID string) string {
	return fmt.Sprintf("badge:%d:%s", userID, badgeID)
}
