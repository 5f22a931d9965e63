package model

import "time"

type Timeframe string

const (
	TimeframeAllTime Timeframe = "all"
	TimeframeMonth   Timeframe = "month"
	TimeframeWeek    Timeframe = "week"
)

func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeAllTime, TimeframeMonth, TimeframeWeek:
		return true
	}
	return false
}

type LeaderboardRow struct {
	TelegramID        int64
	Username          string
	Points            int
	CompletedInWindow int
	FirstEntryAt      time.Time
}

type Leaderboard struct {
	Timeframe Timeframe
	Rows      []LeaderboardRow
	UpdatedAt time.Time
}

type UserRank struct {
	TelegramID int64
	Timeframe  Timeframe
	Rank       int
	Points     int
}
