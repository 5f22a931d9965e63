package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusOpen       RequestStatus = "open"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

type HelpRequest struct {
	ID             uuid.UUID
	RequesterID    int64
	AcceptedBy     *int64
	Status         RequestStatus
	Category       string
	Urgency        Urgency
	Title          string
	Description    string
	CreatedAt      time.Time
	AcceptedAt     *time.Time
	CompletedAt    *time.Time
	DeadlineHint   *time.Time
	Rating         *int
	CompletedEarly bool
	CancelReason   *string
	Version        int64
}
