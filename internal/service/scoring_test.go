package service

import (
	"testing"
	"time"

	"helpboard_miniapp/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func completedRequest(category string, urgency model.Urgency, rating int, early bool) *model.HelpRequest {
	helperID := int64(42)
	return &model.HelpRequest{
		ID:             uuid.New(),
		RequesterID:    1,
		AcceptedBy:     &helperID,
		Status:         model.StatusCompleted,
		Category:       category,
		Urgency:        urgency,
		Rating:         &rating,
		CompletedEarly: early,
	}
}

func sumEntries(entries []*model.LedgerEntry) int {
	sum := 0
	for _, e := range entries {
		sum += e.Amount
	}
	return sum
}

func TestScoringEngine_CompletionEntries(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name          string
		cfg           ScoringConfig
		request       *model.HelpRequest
		expectedSum   int
		expectedCount int
		checkEntries  func(t *testing.T, entries []*model.LedgerEntry)
	}{
		{
			name:          "high urgency technology with quality and early bonus",
			cfg:           DefaultScoringConfig(),
			request:       completedRequest("technology", model.UrgencyHigh, 5, true),
			expectedSum:   130, // floor(60*1.5) + 25 + 15
			expectedCount: 4,
			checkEntries: func(t *testing.T, entries []*model.LedgerEntry) {
				assert.Equal(t, 60, entries[0].Amount)
				assert.Equal(t, model.ReasonBaseCompletion, entries[0].Reason)
				assert.Equal(t, 30, entries[1].Amount)
				assert.Equal(t, model.ReasonUrgencyBonus, entries[1].Reason)
				assert.Equal(t, 25, entries[2].Amount)
				assert.Equal(t, model.ReasonQualityBonus, entries[2].Reason)
				assert.Equal(t, 15, entries[3].Amount)
				assert.Equal(t, model.ReasonEarlyBonus, entries[3].Reason)
			},
		},
		{
			name: "high urgency without quality or early bonus",
			cfg: ScoringConfig{
				CategoryBasePoints: map[string]int{"repairs": 80},
				DefaultBasePoints:  50,
				UrgencyMultipliers: map[string]float64{"high": 1.5},
				QualityBonus:       25,
				EarlyBonus:         15,
			},
			request:       completedRequest("repairs", model.UrgencyHigh, 3, false),
			expectedSum:   120, // floor(80*1.5), no bonuses
			expectedCount: 2,
		},
		{
			name:          "low urgency writes no urgency entry",
			cfg:           DefaultScoringConfig(),
			request:       completedRequest("errands", model.UrgencyLow, 4, false),
			expectedSum:   50,
			expectedCount: 1,
		},
		{
			name:          "medium urgency floors the multiplied total",
			cfg:           DefaultScoringConfig(),
			request:       completedRequest("household", model.UrgencyMedium, 4, false),
			expectedSum:   62, // floor(50*1.25)
			expectedCount: 2,
			checkEntries: func(t *testing.T, entries []*model.LedgerEntry) {
				assert.Equal(t, 12, entries[1].Amount)
			},
		},
		{
			name:          "unknown category falls back to default base",
			cfg:           DefaultScoringConfig(),
			request:       completedRequest("something_else", model.UrgencyLow, 4, false),
			expectedSum:   50,
			expectedCount: 1,
		},
		{
			name:          "critical urgency doubles the base",
			cfg:           DefaultScoringConfig(),
			request:       completedRequest("emergency", model.UrgencyCritical, 4, false),
			expectedSum:   200,
			expectedCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewScoringEngine(tt.cfg)
			entries := engine.CompletionEntries(tt.request, now)

			assert.Len(t, entries, tt.expectedCount)
			assert.Equal(t, tt.expectedSum, sumEntries(entries))

			helperID := *tt.request.AcceptedBy
			for _, e := range entries {
				assert.Equal(t, helperID, e.UserID)
				assert.Equal(t, tt.request.ID, e.RequestID)
				assert.GreaterOrEqual(t, e.Amount, 0)
			}

			if tt.checkEntries != nil {
				tt.checkEntries(t, entries)
			}
		})
	}
}

func TestScoringEngine_DeterministicKeys(t *testing.T) {
	engine := NewScoringEngine(DefaultScoringConfig())
	req := completedRequest("technology", model.UrgencyHigh, 5, true)

	first := engine.CompletionEntries(req, time.Now().UTC())
	second := engine.CompletionEntries(req, time.Now().UTC().Add(time.Hour))

	assert.Equal(t, len(first), len(second))
	for i := range first {
		// Same request, same keys: a retried completion cannot
		// double-count any component.
		assert.Equal(t, first[i].IdempotencyKey, second[i].IdempotencyKey)
	}
}

func TestScoringEngine_NoHelperNoEntries(t *testing.T) {
	engine := NewScoringEngine(DefaultScoringConfig())
	req := completedRequest("technology", model.UrgencyHigh, 5, true)
	req.AcceptedBy = nil

	assert.Empty(t, engine.CompletionEntries(req, time.Now().UTC()))
}
