package services

import (
	"context"
	"time"

	"challenge-scoring-api/models"
)

// applyEvaluation scores app against cfg and writes the result row and the
// auto scores through tx. A nil cfg means no configuration is active: the
// gate alone decides eligibility and the score is zero. A failed gate keeps
// the score at zero without running the scorers.
func applyEvaluation(ctx context.Context, tx ResultStore, engine *ScoringEngine, app models.Application,
	cfg *models.ScoringConfiguration, gate GateResult, previous *models.EligibilityResult,
	evaluatedBy int, now time.Time) (*models.EligibilityResult, ScoreResult, error) {

	var score ScoreResult
	if cfg != nil {
		if gate.IsEligible {
			recorded, err := tx.ListApplicationScores(ctx, app.ApplicationID, cfg.ID)
			if err != nil {
				return nil, ScoreResult{}, err
			}
			score = engine.Score(app, cfg, recorded)
		} else {
			score = ZeroScore(cfg)
		}
	}

	result := &models.EligibilityResult{ApplicationID: app.ApplicationID}
	if previous != nil {
		result.ID = previous.ID
	}
	gate.applyTo(result)
	result.TotalScore = score.TotalScore
	result.IsEligible = gate.IsEligible
	if cfg != nil {
		configID := cfg.ID
		result.ScoringConfigID = &configID
		result.IsEligible = gate.IsEligible && score.IsPassing
	}
	ProjectLegacyScores(score, result)
	result.EvaluatedBy = evaluatedBy
	result.EvaluatedAt = now

	if err := tx.SaveEligibilityResult(ctx, result); err != nil {
		return nil, ScoreResult{}, err
	}

	if cfg != nil && gate.IsEligible {
		autos := score.AutoScores(app.ApplicationID, evaluatedBy)
		for i := range autos {
			autos[i].EvaluatedAt = now
		}
		if err := tx.SaveApplicationScores(ctx, autos); err != nil {
			return nil, ScoreResult{}, err
		}
	}
	return result, score, nil
}

// historyEntry records the move from previous to current. A missing
// previous result counts as score 0 and not eligible.
func historyEntry(changeType string, applicationID int, previous, current *models.EligibilityResult,
	evaluatedBy int, now time.Time) *models.EvaluationHistory {

	entry := &models.EvaluationHistory{
		ApplicationID: applicationID,
		ChangeType:    changeType,
		EvaluatedBy:   evaluatedBy,
		CreatedAt:     now,
	}
	if previous != nil {
		entry.PreviousConfigID = previous.ScoringConfigID
		entry.PreviousScore = previous.TotalScore
		entry.PreviousEligible = previous.IsEligible
	}
	if current != nil {
		entry.NewConfigID = current.ScoringConfigID
		entry.NewScore = current.TotalScore
		entry.NewEligible = current.IsEligible
	}
	return entry
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
