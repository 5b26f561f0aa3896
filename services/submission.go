package services

import (
	"context"
	"errors"
	"time"

	"challenge-scoring-api/config"
	"challenge-scoring-api/models"
	"challenge-scoring-api/utils"

	"go.uber.org/zap"
)

// EvaluationService runs the per-application operations: submission
// evaluation, manual scoring, evaluator assignment and status moves.
type EvaluationService struct {
	records RecordStore
	configs ConfigurationStore
	results ResultStore
	engine  *ScoringEngine
	cache   AnalyticsCache
	now     func() time.Time
}

func NewEvaluationService(records RecordStore, configs ConfigurationStore, results ResultStore, engine *ScoringEngine, cache AnalyticsCache) *EvaluationService {
	if engine == nil {
		engine = NewScoringEngine(nil)
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &EvaluationService{
		records: records,
		configs: configs,
		results: results,
		engine:  engine,
		cache:   cache,
		now:     time.Now,
	}
}

// SubmissionInput names the already validated records of a new application.
type SubmissionInput struct {
	ApplicantID int `json:"applicant_id"`
	BusinessID  int `json:"business_id"`
}

// SubmissionEvaluation is the outcome of evaluating one submission.
type SubmissionEvaluation struct {
	Result       *models.EligibilityResult `json:"result"`
	Gate         GateResult                `json:"gate"`
	FailedChecks []string                  `json:"failed_checks,omitempty"`
	Score        *ScoreResult              `json:"score,omitempty"`
}

// SubmitApplication creates the application of an applicant and evaluates
// it against the active configuration.
func (s *EvaluationService) SubmitApplication(ctx context.Context, actor Actor, input SubmissionInput) (*SubmissionEvaluation, error) {
	if err := requireRole(actor, "submit_application", models.RoleAdmin, models.RoleApplicant); err != nil {
		return nil, err
	}
	if input.ApplicantID <= 0 {
		return nil, validationError("applicant_id", "is required")
	}
	if input.BusinessID <= 0 {
		return nil, validationError("business_id", "is required")
	}

	applicant, err := s.records.GetApplicant(ctx, input.ApplicantID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && applicant.UserID != actor.UserID {
		return nil, authorizationError("submit_application")
	}

	now := s.now()
	app := &models.Application{
		ApplicantID: input.ApplicantID,
		BusinessID:  input.BusinessID,
		Status:      models.StatusSubmitted,
		SubmittedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.records.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	config.Logger.Info("application submitted",
		zap.Int("application_id", app.ApplicationID),
		zap.Int("applicant_id", app.ApplicantID),
	)
	return s.EvaluateSubmission(ctx, actor, app.ApplicationID)
}

// EvaluateSubmission runs the gate and scores the application against the
// active configuration. The result replaces any previous one and a history
// row records the change.
func (s *EvaluationService) EvaluateSubmission(ctx context.Context, actor Actor, applicationID int) (*SubmissionEvaluation, error) {
	if err := requireRole(actor, "evaluate_submission", models.RoleAdmin, models.RoleApplicant); err != nil {
		return nil, err
	}
	app, err := s.records.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && app.Applicant.UserID != actor.UserID {
		return nil, authorizationError("evaluate_submission")
	}

	cfg, err := s.configs.GetActiveConfiguration(ctx)
	if errors.Is(err, ErrNotFound) {
		cfg = nil
	} else if err != nil {
		return nil, err
	}

	now := s.now()
	gate := EvaluateGate(app.Applicant, app.Business, now)

	out := &SubmissionEvaluation{Gate: gate, FailedChecks: gate.FailedChecks()}
	changeType := models.ChangeTypeInitial
	err = s.results.Transact(ctx, func(tx ResultStore) error {
		previous, err := tx.LockEligibilityResult(ctx, applicationID)
		if err != nil {
			return err
		}
		result, score, err := applyEvaluation(ctx, tx, s.engine, *app, cfg, gate, previous, actor.UserID, now)
		if err != nil {
			return err
		}

		if previous != nil {
			changeType = models.ChangeTypeReEvaluation
		}
		entry := historyEntry(changeType, applicationID, previous, result, actor.UserID, now)
		if previous != nil {
			entry.Reason = optionalString("submission evaluated again")
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}

		out.Result = result
		if cfg != nil {
			out.Score = &score
		}
		return nil
	})
	if err != nil {
		return nil, persistenceError("evaluate submission", err)
	}
	EvaluationsRecorded.WithLabelValues(changeType).Inc()

	if err := s.cache.Invalidate(ctx); err != nil {
		config.Logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
	config.Logger.Info("submission evaluated",
		zap.Int("application_id", applicationID),
		zap.Bool("gate_passed", gate.IsEligible),
		zap.Float64("total_score", out.Result.TotalScore),
		zap.Bool("is_eligible", out.Result.IsEligible),
	)
	return out, nil
}

// TransitionStatus moves an application along its lifecycle and audits the
// move. Score and eligibility are carried over unchanged.
func (s *EvaluationService) TransitionStatus(ctx context.Context, actor Actor, applicationID int, target, reason string) (*models.EvaluationHistory, error) {
	if err := requireAdmin(actor, "transition_status"); err != nil {
		return nil, err
	}
	status, err := utils.ParseStatus(target)
	if err != nil {
		return nil, validationError("status", "%v", err)
	}
	app, err := s.records.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureTransition(app.Status, status); err != nil {
		return nil, conflictError("status", "%v", err)
	}

	now := s.now()
	var entry *models.EvaluationHistory
	err = s.results.Transact(ctx, func(tx ResultStore) error {
		current, err := tx.LockEligibilityResult(ctx, applicationID)
		if err != nil {
			return err
		}
		if err := tx.UpdateApplicationStatus(ctx, applicationID, status); err != nil {
			return err
		}
		entry = historyEntry(models.ChangeTypeStatusChange, applicationID, current, current, actor.UserID, now)
		previousStatus := app.Status
		entry.PreviousStatus = &previousStatus
		entry.NewStatus = &status
		entry.Reason = optionalString(utils.SanitizeInput(reason))
		return tx.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, persistenceError("transition status", err)
	}
	EvaluationsRecorded.WithLabelValues(models.ChangeTypeStatusChange).Inc()

	if err := s.cache.Invalidate(ctx); err != nil {
		config.Logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
	config.Logger.Info("application status changed",
		zap.Int("application_id", applicationID),
		zap.String("from", string(app.Status)),
		zap.String("to", string(status)),
	)
	return entry, nil
}

// ListHistory returns the audit trail of an application, oldest first.
func (s *EvaluationService) ListHistory(ctx context.Context, actor Actor, applicationID int) ([]models.EvaluationHistory, error) {
	if err := requireRole(actor, "list_history", models.RoleAdmin, models.RoleEvaluator, models.RoleApplicant); err != nil {
		return nil, err
	}
	app, err := s.records.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if actor.RoleID == models.RoleApplicant && app.Applicant.UserID != actor.UserID {
		return nil, authorizationError("list_history")
	}
	return s.results.ListHistory(ctx, applicationID)
}
