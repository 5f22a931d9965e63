package model

import "time"

type User struct {
	TelegramID       int64
	Handle           string
	Username         string
	Points           int
	Badges           []string
	RegistrationDate time.Time
	AuthDate         time.Time
}

// UserStats is the profile view assembled from the ledger and request history.
// Points here is always the ledger sum, never the cached users.points column.
type UserStats struct {
	TelegramID int64
	Username   string
	Points     int
	Helper     HelperStats
	Badges     []Badge
}

// HelperStats aggregates a helper's completed-request history. Badge
// predicates are evaluated against it; every counter is monotonic.
type HelperStats struct {
	TelegramID          int64
	TotalPoints         int
	CompletedRequests   int
	FiveStarRatings     int
	EarlyCompletions    int
	CriticalCompletions int
	DistinctCategories  int
}
