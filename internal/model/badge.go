package model

import "time"

type Badge struct {
	ID        string
	Name      string
	AwardedAt time.Time
}
