package services

import (
	"context"

	"challenge-scoring-api/config"
	"challenge-scoring-api/models"
	"challenge-scoring-api/utils"

	"go.uber.org/zap"
)

// ManualScoreInput is one evaluator decision for one criterion. A zero
// ConfigurationID means the active configuration.
type ManualScoreInput struct {
	ApplicationID   int     `json:"application_id"`
	CriteriaID      int     `json:"criteria_id"`
	ConfigurationID int     `json:"configuration_id"`
	Score           float64 `json:"score"`
	Level           *string `json:"level"`
	Comments        string  `json:"comments"`
}

// ManualScoreOutcome reports the recorded score and its effect.
type ManualScoreOutcome struct {
	Score               models.ApplicationScore `json:"score"`
	AssignmentCompleted bool                    `json:"assignment_completed"`
	Preview             ScoreResult             `json:"preview"`
}

// RecordManualScore stores an evaluator's score for a criterion. Evaluators
// may only score applications assigned to them. The eligibility result is
// refreshed by the next evaluation or re-evaluation; Preview shows what it
// would be.
func (s *EvaluationService) RecordManualScore(ctx context.Context, actor Actor, input ManualScoreInput) (*ManualScoreOutcome, error) {
	if err := requireRole(actor, "record_manual_score", models.RoleAdmin, models.RoleEvaluator); err != nil {
		return nil, err
	}

	app, err := s.records.GetApplication(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if utils.IsTerminalStatus(app.Status) {
		return nil, conflictError("status", "application %d is %s and can no longer be scored", app.ApplicationID, app.Status)
	}

	var cfg *models.ScoringConfiguration
	if input.ConfigurationID > 0 {
		cfg, err = s.configs.GetConfiguration(ctx, input.ConfigurationID)
	} else {
		cfg, err = s.configs.GetActiveConfiguration(ctx)
	}
	if err != nil {
		return nil, err
	}

	var criterion *models.ScoringCriteria
	for i := range cfg.Criteria {
		if cfg.Criteria[i].ID == input.CriteriaID {
			criterion = &cfg.Criteria[i]
			break
		}
	}
	if criterion == nil {
		return nil, notFoundError("scoring_criteria", input.CriteriaID)
	}

	level, err := ValidateManualScore(*criterion, input.Score, input.Level)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() {
		assignment, err := s.results.GetAssignment(ctx, app.ApplicationID, actor.UserID)
		if err != nil {
			return nil, err
		}
		if assignment == nil {
			return nil, authorizationError("record_manual_score")
		}
	}

	now := s.now()
	out := &ManualScoreOutcome{}
	err = s.results.Transact(ctx, func(tx ResultStore) error {
		score := models.ApplicationScore{
			ApplicationID:   app.ApplicationID,
			CriteriaID:      criterion.ID,
			ConfigurationID: cfg.ID,
			Score:           roundPoints(input.Score),
			MaxScore:        criterion.MaxPoints,
			Level:           level,
			Source:          models.ScoreSourceManual,
			Comments:        optionalString(utils.SanitizeInput(input.Comments)),
			EvaluatedBy:     actor.UserID,
			EvaluatedAt:     now,
		}
		if err := tx.SaveApplicationScores(ctx, []models.ApplicationScore{score}); err != nil {
			return err
		}
		out.Score = score

		recorded, err := tx.ListApplicationScores(ctx, app.ApplicationID, cfg.ID)
		if err != nil {
			return err
		}
		out.Preview = s.engine.Score(*app, cfg, recorded)

		if !manualCriteriaComplete(cfg, recorded) {
			return nil
		}
		assignment, err := tx.GetAssignment(ctx, app.ApplicationID, actor.UserID)
		if err != nil || assignment == nil || assignment.Status == models.AssignmentCompleted {
			return err
		}
		assignment.Status = models.AssignmentCompleted
		assignment.CompletedAt = &now
		if err := tx.SaveAssignment(ctx, assignment); err != nil {
			return err
		}
		out.AssignmentCompleted = true
		return nil
	})
	if err != nil {
		return nil, persistenceError("record manual score", err)
	}
	ManualScoresRecorded.WithLabelValues(string(criterion.EvaluationType)).Inc()

	config.Logger.Info("manual score recorded",
		zap.Int("application_id", app.ApplicationID),
		zap.Int("criteria_id", criterion.ID),
		zap.Float64("score", out.Score.Score),
		zap.Int("evaluated_by", actor.UserID),
		zap.Bool("assignment_completed", out.AssignmentCompleted),
	)
	return out, nil
}

// manualCriteriaComplete reports whether every manual and hybrid criterion
// of cfg has a manual score.
func manualCriteriaComplete(cfg *models.ScoringConfiguration, recorded []models.ApplicationScore) bool {
	scored := make(map[int]bool, len(recorded))
	for _, s := range recorded {
		if s.IsManual() {
			scored[s.CriteriaID] = true
		}
	}
	for _, c := range cfg.Criteria {
		if c.EvaluationType == models.EvaluationAuto {
			continue
		}
		if !scored[c.ID] {
			return false
		}
	}
	return true
}

// AssignEvaluator asks an evaluator to score an application. Assigning the
// same pair twice returns the existing assignment.
func (s *EvaluationService) AssignEvaluator(ctx context.Context, actor Actor, applicationID, evaluatorID int) (*models.EvaluatorAssignment, error) {
	if err := requireAdmin(actor, "assign_evaluator"); err != nil {
		return nil, err
	}
	if _, err := s.records.GetApplication(ctx, applicationID); err != nil {
		return nil, err
	}
	evaluator, err := s.records.GetUser(ctx, evaluatorID)
	if err != nil {
		return nil, err
	}
	if evaluator.RoleID != models.RoleEvaluator {
		return nil, validationError("evaluator_id", "user %d is not an evaluator", evaluatorID)
	}

	existing, err := s.results.GetAssignment(ctx, applicationID, evaluatorID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	assignment := &models.EvaluatorAssignment{
		ApplicationID: applicationID,
		EvaluatorID:   evaluatorID,
		Status:        models.AssignmentPending,
		AssignedBy:    actor.UserID,
		AssignedAt:    s.now(),
	}
	if err := s.results.SaveAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	assignment.Evaluator = evaluator

	if err := s.cache.Invalidate(ctx); err != nil {
		config.Logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
	config.Logger.Info("evaluator assigned",
		zap.Int("application_id", applicationID),
		zap.Int("evaluator_id", evaluatorID),
	)
	return assignment, nil
}
