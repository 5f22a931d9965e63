package service

import (
	"math"
	"time"

	"helpboard_miniapp/internal/model"

	"github.com/google/uuid"
)

// ScoringConfig re-expresses the point formulas as static configuration so
// the engine stays a pure function of (request, config). Thresholds and
// tables are adjustable from config.yaml without touching lifecycle logic.
type ScoringConfig struct {
	CategoryBasePoints map[string]int     `yaml:"categoryBasePoints"`
	DefaultBasePoints  int                `yaml:"defaultBasePoints"`
	UrgencyMultipliers map[string]float64 `yaml:"urgencyMultipliers"`
	QualityBonus       int                `yaml:"qualityBonus"`
	EarlyBonus         int                `yaml:"earlyBonus"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CategoryBasePoints: map[string]int{
			"errands":    50,
			"household":  50,
			"transport":  55,
			"food":       55,
			"technology": 60,
			"education":  65,
			"eldercare":  75,
			"medical":    90,
			"emergency":  100,
		},
		DefaultBasePoints: 50,
		UrgencyMultipliers: map[string]float64{
			string(model.UrgencyLow):      1.0,
			string(model.UrgencyMedium):   1.25,
			string(model.UrgencyHigh):     1.5,
			string(model.UrgencyCritical): 2.0,
		},
		QualityBonus: 25,
		EarlyBonus:   15,
	}
}

type ScoringEngine struct {
	cfg ScoringConfig
}

func NewScoringEngine(cfg ScoringConfig) *ScoringEngine {
	if cfg.DefaultBasePoints == 0 {
		cfg = DefaultScoringConfig()
	}
	return &ScoringEngine{cfg: cfg}
}

func (e *ScoringEngine) BasePoints(category string) int {
	if base, ok := e.cfg.CategoryBasePoints[category]; ok {
		return base
	}
	return e.cfg.DefaultBasePoints
}

// CompletionEntries computes the ledger entries a completed request earns for
// its helper. Each contribution is a separate entry with a deterministic
// idempotency key, so a retried write cannot double-count any component.
// Multiplier rounding always floors to keep the point supply auditable.
func (e *ScoringEngine) CompletionEntries(req *model.HelpRequest, now time.Time) []*model.LedgerEntry {
	if req.AcceptedBy == nil {
		return nil
	}
	helperID := *req.AcceptedBy

	entry := func(amount int, reason model.LedgerReason) *model.LedgerEntry {
		return &model.LedgerEntry{
			ID:             uuid.New(),
			UserID:         helperID,
			RequestID:      req.ID,
			Amount:         amount,
			Reason:         reason,
			IdempotencyKey: model.CompletionKey(req.ID, reason),
			CreatedAt:      now,
		}
	}

	base := e.BasePoints(req.Category)
	entries := []*model.LedgerEntry{entry(base, model.ReasonBaseCompletion)}

	multiplier, ok := e.cfg.UrgencyMultipliers[string(req.Urgency)]
	if !ok {
		multiplier = 1.0
	}
	urgencyBonus := int(math.Floor(float64(base)*multiplier)) - base
	if urgencyBonus > 0 {
		entries = append(entries, entry(urgencyBonus, model.ReasonUrgencyBonus))
	}

	if req.Rating != nil && *req.Rating == 5 {
		entries = append(entries, entry(e.cfg.QualityBonus, model.ReasonQualityBonus))
	}

	if req.CompletedEarly {
		entries = append(entries, entry(e.cfg.EarlyBonus, model.ReasonEarlyBonus))
	}

	return entries
}
