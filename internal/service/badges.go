package service

import "helpboard_miniapp/internal/model"

// BadgeDefinition is static configuration: an id, a display name, an optional
// point bonus and a predicate over the helper's history. Predicates must be
// monotonic (once true, always true) so re-evaluation after a retried
// completion is safe.
type BadgeDefinition struct {
	ID          string
	Name        string
	BonusPoints int
	Unlocked    func(stats *model.HelperStats) bool
}

func DefaultBadges() []BadgeDefinition {
	return []BadgeDefinition{
		{
			ID:   "first_helping_hand",
			Name: "First Helping Hand",
			Unlocked: func(s *model.HelperStats) bool {
				return s.CompletedRequests >= 1
			},
		},
		{
			ID:          "reliable_neighbor",
			Name:        "Reliable Neighbor",
			BonusPoints: 50,
			Unlocked: func(s *model.HelperStats) bool {
				return s.CompletedRequests >= 10
			},
		},
		{
			ID:          "community_pillar",
			Name:        "Community Pillar",
			BonusPoints: 100,
			Unlocked: func(s *model.HelperStats) bool {
				return s.CompletedRequests >= 50
			},
		},
		{
			ID:          "neighborhood_hero",
			Name:        "Neighborhood Hero",
			BonusPoints: 250,
			Unlocked: func(s *model.HelperStats) bool {
				return s.CompletedRequests >= 100
			},
		},
		{
			ID:          "five_star_helper",
			Name:        "Five Star Helper",
			BonusPoints: 50,
			Unlocked: func(s *model.HelperStats) bool {
				return s.FiveStarRatings >= 10
			},
		},
		{
			ID:          "early_bird",
			Name:        "Early Bird",
			BonusPoints: 30,
			Unlocked: func(s *model.HelperStats) bool {
				return s.EarlyCompletions >= 10
			},
		},
		{
			ID:          "crisis_responder",
			Name:        "Crisis Responder",
			BonusPoints: 75,
			Unlocked: func(s *model.HelperStats) bool {
				return s.CriticalCompletions >= 5
			},
		},
		{
			ID:          "jack_of_all_trades",
			Name:        "Jack of All Trades",
			BonusPoints: 40,
			Unlocked: func(s *model.HelperStats) bool {
				return s.DistinctCategories >= 5
			},
		},
		{
			ID:   "point_collector",
			Name: "Point Collector",
			Unlocked: func(s *model.HelperStats) bool {
				return s.TotalPoints >= 1000
			},
		},
	}
}
