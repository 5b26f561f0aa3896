package services

import (
	"encoding/json"
	"math"
	"strings"

	"challenge-scoring-api/models"
	"challenge-scoring-api/utils"

	"gorm.io/datatypes"
)

// CriterionScore is the resolved score of one criterion.
type CriterionScore struct {
	CriteriaID     int                   `json:"criteria_id"`
	Name           string                `json:"name"`
	Category       string                `json:"category"`
	EvaluationType models.EvaluationType `json:"evaluation_type"`
	Score          float64               `json:"score"`
	MaxPoints      float64               `json:"max_points"`
	Level          *string               `json:"level,omitempty"`
	Source         string                `json:"source"`
	ScorerKey      string                `json:"scorer_key,omitempty"`
	Pending        bool                  `json:"pending"`
}

// ScoreResult is the outcome of scoring one application against one
// configuration.
type ScoreResult struct {
	ConfigurationID int              `json:"configuration_id"`
	PerCriterion    []CriterionScore `json:"per_criterion"`
	RawTotal        float64          `json:"raw_total"`
	TotalScore      float64          `json:"total_score"`
	IsPassing       bool             `json:"is_passing"`
	PendingManual   int              `json:"pending_manual"`
}

// ScoreSourcePending marks a criterion still waiting for a manual score.
const ScoreSourcePending = "pending"

// ScoringEngine computes weighted scores against a rubric.
type ScoringEngine struct {
	scorers *ScorerRegistry
}

func NewScoringEngine(scorers *ScorerRegistry) *ScoringEngine {
	if scorers == nil {
		scorers = NewScorerRegistry()
	}
	return &ScoringEngine{scorers: scorers}
}

// Scorers exposes the registry used for auto and hybrid criteria.
func (e *ScoringEngine) Scorers() *ScorerRegistry {
	return e.scorers
}

// Score resolves every criterion of cfg in sort order. A recorded manual
// score for the same configuration always wins; manual criteria without one
// score zero and count as pending; auto and hybrid criteria use the
// registered scorer.
func (e *ScoringEngine) Score(app models.Application, cfg *models.ScoringConfiguration, recorded []models.ApplicationScore) ScoreResult {
	res := ScoreResult{ConfigurationID: cfg.ID}

	manual := make(map[int]models.ApplicationScore, len(recorded))
	for _, s := range recorded {
		if s.ConfigurationID == cfg.ID && s.ApplicationID == app.ApplicationID && s.IsManual() {
			manual[s.CriteriaID] = s
		}
	}

	for _, c := range cfg.SortedCriteria() {
		cs := CriterionScore{
			CriteriaID:     c.ID,
			Name:           c.Name,
			Category:       c.Category,
			EvaluationType: c.EvaluationType,
			MaxPoints:      c.MaxPoints,
		}

		if s, ok := manual[c.ID]; ok {
			cs.Score = clampPoints(s.Score, c.MaxPoints)
			cs.Level = s.Level
			cs.Source = models.ScoreSourceManual
		} else if c.EvaluationType == models.EvaluationManual {
			cs.Source = ScoreSourcePending
			cs.Pending = true
		} else if key, fn, ok := e.scorers.Lookup(c); ok {
			cs.Score = roundPoints(clampPoints(clampFraction(fn(app))*c.MaxPoints, c.MaxPoints))
			cs.Source = models.ScoreSourceAuto
			cs.ScorerKey = key
		} else {
			// No deterministic scorer exists: wait for a human.
			cs.Source = ScoreSourcePending
			cs.Pending = true
		}

		if cs.Pending {
			res.PendingManual++
		}
		res.RawTotal += cs.Score
		res.PerCriterion = append(res.PerCriterion, cs)
	}

	res.RawTotal = roundPoints(res.RawTotal)
	res.TotalScore = math.Min(res.RawTotal, cfg.TotalMaxScore)
	res.IsPassing = res.TotalScore >= cfg.PassThreshold
	return res
}

// ZeroScore is the result used when the mandatory gate fails: every criterion
// scores zero and the scorers are not run.
func ZeroScore(cfg *models.ScoringConfiguration) ScoreResult {
	res := ScoreResult{ConfigurationID: cfg.ID}
	for _, c := range cfg.SortedCriteria() {
		res.PerCriterion = append(res.PerCriterion, CriterionScore{
			CriteriaID:     c.ID,
			Name:           c.Name,
			Category:       c.Category,
			EvaluationType: c.EvaluationType,
			MaxPoints:      c.MaxPoints,
			Source:         ScoreSourcePending,
		})
	}
	res.IsPassing = false
	return res
}

// AutoScores converts the auto-computed criteria into rows for persistence.
func (r ScoreResult) AutoScores(applicationID, evaluatedBy int) []models.ApplicationScore {
	var out []models.ApplicationScore
	for _, cs := range r.PerCriterion {
		if cs.Source != models.ScoreSourceAuto {
			continue
		}
		out = append(out, models.ApplicationScore{
			ApplicationID:   applicationID,
			CriteriaID:      cs.CriteriaID,
			ConfigurationID: r.ConfigurationID,
			Score:           cs.Score,
			MaxScore:        cs.MaxPoints,
			Source:          models.ScoreSourceAuto,
			EvaluatedBy:     evaluatedBy,
		})
	}
	return out
}

// ValidateManualScore checks a human-entered score against the criterion and
// returns the level label to record. When no label is given, the level whose
// points equal the score is used.
func ValidateManualScore(c models.ScoringCriteria, score float64, level *string) (*string, error) {
	if math.IsNaN(score) || score < 0 || score > c.MaxPoints {
		return nil, validationError("score", "must be between 0 and %g", c.MaxPoints)
	}
	levels, err := c.ScoringLevels()
	if err != nil {
		return nil, validationError("levels", "%v", err)
	}

	if level != nil && strings.TrimSpace(*level) != "" {
		want := strings.TrimSpace(*level)
		for _, l := range levels {
			if strings.EqualFold(l.Label, want) {
				if l.Points != score {
					return nil, validationError("level", "level %q is worth %g points, got %g", l.Label, l.Points, score)
				}
				label := l.Label
				return &label, nil
			}
		}
		return nil, validationError("level", "unknown level %q", want)
	}

	for _, l := range levels {
		if l.Points == score {
			label := l.Label
			return &label, nil
		}
	}
	return nil, nil
}

// legacyColumns maps normalized categories onto the fixed-category columns.
var legacyColumns = map[string]string{
	"market_potential":   "market_potential",
	"market":             "market_potential",
	"innovation":         "innovation",
	"climate_impact":     "climate_impact",
	"climate":            "climate_impact",
	"impact":             "climate_impact",
	"climate_adaptation": "climate_impact",
	"job_creation":       "job_creation",
	"employment":         "job_creation",
	"jobs":               "job_creation",
	"financial_health":   "financial_health",
	"financial":          "financial_health",
	"finance":            "financial_health",
}

// ProjectLegacyScores writes per-category sums onto the fixed-category
// columns and every other category into CustomScores.
func ProjectLegacyScores(res ScoreResult, target *models.EligibilityResult) {
	target.MarketPotentialScore = 0
	target.InnovationScore = 0
	target.ClimateImpactScore = 0
	target.JobCreationScore = 0
	target.FinancialHealthScore = 0

	custom := make(map[string]float64)
	for _, cs := range res.PerCriterion {
		category := utils.NormalizeKey(cs.Category)
		switch legacyColumns[category] {
		case "market_potential":
			target.MarketPotentialScore += cs.Score
		case "innovation":
			target.InnovationScore += cs.Score
		case "climate_impact":
			target.ClimateImpactScore += cs.Score
		case "job_creation":
			target.JobCreationScore += cs.Score
		case "financial_health":
			target.FinancialHealthScore += cs.Score
		default:
			if category == "" {
				category = "uncategorized"
			}
			custom[category] = roundPoints(custom[category] + cs.Score)
		}
	}

	target.CustomScores = nil
	if len(custom) > 0 {
		raw, _ := json.Marshal(custom)
		target.CustomScores = datatypes.JSON(raw)
	}
}

func clampPoints(v, max float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func clampFraction(f float64) float64 {
	return clampPoints(f, 1)
}

func roundPoints(v float64) float64 {
	return math.Round(v*100) / 100
}
