package services

import (
	"context"
	"time"

	"challenge-scoring-api/models"
)

// ApplicationFilter narrows application listings. Zero values match all.
type ApplicationFilter struct {
	ApplicationIDs []int
	Statuses       []models.ApplicationStatus
	SubmittedFrom  *time.Time
	SubmittedTo    *time.Time
	SubmittedOnly  bool
}

// RecordStore reads applicant, business and application records.
type RecordStore interface {
	GetApplicant(ctx context.Context, applicantID int) (*models.Applicant, error)
	GetApplication(ctx context.Context, applicationID int) (*models.Application, error)
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error)
	ListApplicationIDs(ctx context.Context, filter ApplicationFilter) ([]int, error)
	// CreateApplication fails with a conflict when the applicant already
	// owns an application.
	CreateApplication(ctx context.Context, app *models.Application) error
	GetUser(ctx context.Context, userID int) (*models.User, error)
}

// ConfigurationStore persists rubrics and the active pointer.
type ConfigurationStore interface {
	GetConfiguration(ctx context.Context, id int) (*models.ScoringConfiguration, error)
	GetActiveConfiguration(ctx context.Context) (*models.ScoringConfiguration, error)
	ListConfigurations(ctx context.Context) ([]models.ScoringConfiguration, error)
	NextVersion(ctx context.Context, name string) (int, error)
	CreateConfiguration(ctx context.Context, cfg *models.ScoringConfiguration) error
	// ActivateConfiguration atomically makes id the only active rubric.
	ActivateConfiguration(ctx context.Context, id, activatedBy int, at time.Time) error
}

// ResultStore persists evaluation outcomes. Every write of one application
// evaluation happens inside one Transact call.
type ResultStore interface {
	Transact(ctx context.Context, fn func(tx ResultStore) error) error

	GetEligibilityResult(ctx context.Context, applicationID int) (*models.EligibilityResult, error)
	// LockEligibilityResult reads the result FOR UPDATE. A missing row is
	// reported as nil without error.
	LockEligibilityResult(ctx context.Context, applicationID int) (*models.EligibilityResult, error)
	SaveEligibilityResult(ctx context.Context, result *models.EligibilityResult) error

	ListApplicationScores(ctx context.Context, applicationID, configID int) ([]models.ApplicationScore, error)
	SaveApplicationScores(ctx context.Context, scores []models.ApplicationScore) error

	AppendHistory(ctx context.Context, entry *models.EvaluationHistory) error
	ListHistory(ctx context.Context, applicationID int) ([]models.EvaluationHistory, error)

	UpdateApplicationStatus(ctx context.Context, applicationID int, status models.ApplicationStatus) error

	// GetAssignment returns nil without error when none exists.
	GetAssignment(ctx context.Context, applicationID, evaluatorID int) (*models.EvaluatorAssignment, error)
	SaveAssignment(ctx context.Context, assignment *models.EvaluatorAssignment) error
}

// AnalyticsSnapshot is everything a report is built from, read at one point
// in time.
type AnalyticsSnapshot struct {
	Applications []models.Application
	Active       *models.ScoringConfiguration
	Scores       []models.ApplicationScore
	Assignments  []models.EvaluatorAssignment
	Evaluators   []models.User

	// Warnings name optional sections that could not be loaded.
	Warnings []string
}

// AnalyticsStore loads a consistent snapshot for reporting.
type AnalyticsStore interface {
	LoadAnalyticsSnapshot(ctx context.Context, filter ApplicationFilter) (*AnalyticsSnapshot, error)
}

// BatchLocker grants one re-evaluation batch at a time.
type BatchLocker interface {
	// TryLock returns ErrConflict when the lock is held elsewhere.
	TryLock(ctx context.Context, name string) (release func() error, err error)
}

// AnalyticsCache stores built reports until the next invalidation.
type AnalyticsCache interface {
	Get(ctx context.Context, filter AnalyticsFilter) (*AnalyticsReport, error)
	Put(ctx context.Context, filter AnalyticsFilter, report *AnalyticsReport) error
	Invalidate(ctx context.Context) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, AnalyticsFilter) (*AnalyticsReport, error) { return nil, nil }

func (noopCache) Put(context.Context, AnalyticsFilter, *AnalyticsReport) error { return nil }

func (noopCache) Invalidate(context.Context) error { return nil }

type noopLocker struct{}

func (noopLocker) TryLock(context.Context, string) (func() error, error) {
	return func() error { return nil }, nil
}
