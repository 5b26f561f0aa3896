package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"challenge-scoring-api/config"
	"challenge-scoring-api/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements every store interface on MySQL through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	if db == nil {
		db = config.DB
	}
	return &GormStore{db: db}
}

func orderedCriteria(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC, id ASC")
}

// ---- RecordStore ----

func (s *GormStore) GetApplicant(ctx context.Context, applicantID int) (*models.Applicant, error) {
	var applicant models.Applicant
	err := s.db.WithContext(ctx).Where("applicant_id = ?", applicantID).First(&applicant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("applicant", applicantID)
	}
	if err != nil {
		return nil, persistenceError("get applicant", err)
	}
	return &applicant, nil
}

func (s *GormStore) GetApplication(ctx context.Context, applicationID int) (*models.Application, error) {
	var app models.Application
	err := s.db.WithContext(ctx).
		Preload("Applicant").
		Preload("Business").
		Preload("EligibilityResult").
		Where("application_id = ?", applicationID).
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("application", applicationID)
	}
	if err != nil {
		return nil, persistenceError("get application", err)
	}
	return &app, nil
}

func (s *GormStore) applicationQuery(ctx context.Context, filter ApplicationFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Application{})
	if len(filter.ApplicationIDs) > 0 {
		query = query.Where("application_id IN ?", filter.ApplicationIDs)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.SubmittedOnly {
		query = query.Where("submitted_at IS NOT NULL")
	}
	if filter.SubmittedFrom != nil {
		query = query.Where("submitted_at >= ?", *filter.SubmittedFrom)
	}
	if filter.SubmittedTo != nil {
		query = query.Where("submitted_at <= ?", *filter.SubmittedTo)
	}
	return query.Order("application_id ASC")
}

func (s *GormStore) ListApplications(ctx context.Context, filter ApplicationFilter) ([]models.Application, error) {
	var apps []models.Application
	err := s.applicationQuery(ctx, filter).
		Preload("Applicant").
		Preload("Business").
		Preload("EligibilityResult").
		Find(&apps).Error
	if err != nil {
		return nil, persistenceError("list applications", err)
	}
	return apps, nil
}

func (s *GormStore) ListApplicationIDs(ctx context.Context, filter ApplicationFilter) ([]int, error) {
	var ids []int
	if err := s.applicationQuery(ctx, filter).Pluck("application_id", &ids).Error; err != nil {
		return nil, persistenceError("list application ids", err)
	}
	return ids, nil
}

func (s *GormStore) CreateApplication(ctx context.Context, app *models.Application) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Application{}).
			Where("applicant_id = ?", app.ApplicantID).
			Count(&existing).Error; err != nil {
			return persistenceError("create application", err)
		}
		if existing > 0 {
			return conflictError("applicant_id", "applicant %d already has an application", app.ApplicantID)
		}
		err := tx.Omit(clause.Associations).Create(app).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return conflictError("applicant_id", "applicant %d already has an application", app.ApplicantID)
		}
		return persistenceError("create application", err)
	})
}

func (s *GormStore) GetUser(ctx context.Context, userID int) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("user_id = ? AND delete_at IS NULL", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("user", userID)
	}
	if err != nil {
		return nil, persistenceError("get user", err)
	}
	return &user, nil
}

// ---- ConfigurationStore ----

func (s *GormStore) GetConfiguration(ctx context.Context, id int) (*models.ScoringConfiguration, error) {
	var cfg models.ScoringConfiguration
	err := s.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Where("id = ?", id).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("scoring_configuration", id)
	}
	if err != nil {
		return nil, persistenceError("get configuration", err)
	}
	return &cfg, nil
}

func (s *GormStore) GetActiveConfiguration(ctx context.Context) (*models.ScoringConfiguration, error) {
	var cfg models.ScoringConfiguration
	err := s.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Where("is_active = ?", true).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Error{Kind: KindNotFound, Field: "scoring_configuration", Message: "no active scoring configuration"}
	}
	if err != nil {
		return nil, persistenceError("get active configuration", err)
	}
	return &cfg, nil
}

func (s *GormStore) ListConfigurations(ctx context.Context) ([]models.ScoringConfiguration, error) {
	var cfgs []models.ScoringConfiguration
	err := s.db.WithContext(ctx).
		Preload("Criteria", orderedCriteria).
		Order("name ASC, version DESC").
		Find(&cfgs).Error
	if err != nil {
		return nil, persistenceError("list configurations", err)
	}
	return cfgs, nil
}

func (s *GormStore) NextVersion(ctx context.Context, name string) (int, error) {
	var current int
	err := s.db.WithContext(ctx).Model(&models.ScoringConfiguration{}).
		Select("COALESCE(MAX(version), 0)").
		Where("name = ?", name).
		Scan(&current).Error
	if err != nil {
		return 0, persistenceError("next configuration version", err)
	}
	return current + 1, nil
}

func (s *GormStore) CreateConfiguration(ctx context.Context, cfg *models.ScoringConfiguration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(cfg).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflictError("version", "configuration %q version %d already exists", cfg.Name, cfg.Version)
	}
	return persistenceError("create configuration", err)
}

func (s *GormStore) ActivateConfiguration(ctx context.Context, id, activatedBy int, at time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active models.ActiveScoringConfiguration
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", models.ActiveConfigurationRowID).
			First(&active).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			active = models.ActiveScoringConfiguration{ID: models.ActiveConfigurationRowID}
			if err := tx.Create(&active).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var target models.ScoringConfiguration
		err = tx.Select("id").Where("id = ?", id).First(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("scoring_configuration", id)
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.ScoringConfiguration{}).
			Where("is_active = ? AND id <> ?", true, id).
			Updates(map[string]interface{}{"is_active": false, "updated_at": at}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ScoringConfiguration{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"is_active": true, "updated_at": at}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ActiveScoringConfiguration{}).
			Where("id = ?", models.ActiveConfigurationRowID).
			Updates(map[string]interface{}{
				"configuration_id": id,
				"activated_by":     activatedBy,
				"activated_at":     at,
			}).Error
	})
	return persistenceError("activate configuration", err)
}

// ---- ResultStore ----

func (s *GormStore) Transact(ctx context.Context, fn func(tx ResultStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) GetEligibilityResult(ctx context.Context, applicationID int) (*models.EligibilityResult, error) {
	var result models.EligibilityResult
	err := s.db.WithContext(ctx).Where("application_id = ?", applicationID).Take(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("eligibility_result", applicationID)
	}
	if err != nil {
		return nil, persistenceError("get eligibility result", err)
	}
	return &result, nil
}

func (s *GormStore) LockEligibilityResult(ctx context.Context, applicationID int) (*models.EligibilityResult, error) {
	var result models.EligibilityResult
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("application_id = ?", applicationID).
		Take(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("lock eligibility result", err)
	}
	return &result, nil
}

func (s *GormStore) SaveEligibilityResult(ctx context.Context, result *models.EligibilityResult) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "application_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"age_eligible", "registration_eligible", "revenue_eligible",
			"business_plan_eligible", "impact_eligible", "is_eligible",
			"market_potential_score", "innovation_score", "climate_impact_score",
			"job_creation_score", "financial_health_score", "custom_scores",
			"total_score", "scoring_config_id", "evaluated_by", "evaluated_at",
		}),
	}).Create(result).Error
	return persistenceError("save eligibility result", err)
}

func (s *GormStore) ListApplicationScores(ctx context.Context, applicationID, configID int) ([]models.ApplicationScore, error) {
	var scores []models.ApplicationScore
	err := s.db.WithContext(ctx).
		Where("application_id = ? AND configuration_id = ?", applicationID, configID).
		Order("criteria_id ASC").
		Find(&scores).Error
	if err != nil {
		return nil, persistenceError("list application scores", err)
	}
	return scores, nil
}

func (s *GormStore) SaveApplicationScores(ctx context.Context, scores []models.ApplicationScore) error {
	if len(scores) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "application_id"}, {Name: "criteria_id"}, {Name: "configuration_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "max_score", "level", "source", "comments", "evaluated_by", "evaluated_at",
		}),
	}).Create(&scores).Error
	return persistenceError("save application scores", err)
}

func (s *GormStore) AppendHistory(ctx context.Context, entry *models.EvaluationHistory) error {
	return persistenceError("append evaluation history", s.db.WithContext(ctx).Create(entry).Error)
}

func (s *GormStore) ListHistory(ctx context.Context, applicationID int) ([]models.EvaluationHistory, error) {
	var entries []models.EvaluationHistory
	err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, persistenceError("list evaluation history", err)
	}
	return entries, nil
}

func (s *GormStore) UpdateApplicationStatus(ctx context.Context, applicationID int, status models.ApplicationStatus) error {
	err := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("application_id = ?", applicationID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
	return persistenceError("update application status", err)
}

func (s *GormStore) GetAssignment(ctx context.Context, applicationID, evaluatorID int) (*models.EvaluatorAssignment, error) {
	var assignment models.EvaluatorAssignment
	err := s.db.WithContext(ctx).
		Where("application_id = ? AND evaluator_id = ?", applicationID, evaluatorID).
		Take(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("get assignment", err)
	}
	return &assignment, nil
}

func (s *GormStore) SaveAssignment(ctx context.Context, assignment *models.EvaluatorAssignment) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}, {Name: "evaluator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "assigned_by", "assigned_at", "completed_at"}),
	}).Omit(clause.Associations).Create(assignment).Error
	return persistenceError("save assignment", err)
}

// ---- AnalyticsStore ----

// LoadAnalyticsSnapshot reads every section inside one read-only repeatable
// read transaction. Only the application listing is mandatory.
func (s *GormStore) LoadAnalyticsSnapshot(ctx context.Context, filter ApplicationFilter) (*AnalyticsSnapshot, error) {
	snap := &AnalyticsSnapshot{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &GormStore{db: tx}
		apps, err := inner.ListApplications(ctx, filter)
		if err != nil {
			return err
		}
		snap.Applications = apps

		var active models.ScoringConfiguration
		err = tx.Preload("Criteria", orderedCriteria).Where("is_active = ?", true).First(&active).Error
		switch {
		case err == nil:
			snap.Active = &active
		case !errors.Is(err, gorm.ErrRecordNotFound):
			config.Logger.Warn("analytics: active configuration unavailable", zap.Error(err))
			snap.Warnings = append(snap.Warnings, "active configuration unavailable")
		}

		if snap.Active != nil {
			if err := tx.Where("configuration_id = ?", snap.Active.ID).Find(&snap.Scores).Error; err != nil {
				config.Logger.Warn("analytics: scores unavailable", zap.Error(err))
				snap.Warnings = append(snap.Warnings, "criterion scores unavailable")
				snap.Scores = nil
			}
		}
		if err := tx.Order("id ASC").Find(&snap.Assignments).Error; err != nil {
			config.Logger.Warn("analytics: assignments unavailable", zap.Error(err))
			snap.Warnings = append(snap.Warnings, "evaluator assignments unavailable")
			snap.Assignments = nil
		}
		if err := tx.Where("role_id = ? AND delete_at IS NULL", models.RoleEvaluator).
			Order("user_id ASC").Find(&snap.Evaluators).Error; err != nil {
			config.Logger.Warn("analytics: evaluators unavailable", zap.Error(err))
			snap.Warnings = append(snap.Warnings, "evaluator directory unavailable")
			snap.Evaluators = nil
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, persistenceError("load analytics snapshot", err)
	}
	return snap, nil
}

// MySQLBatchLocker serialises re-evaluation batches with a named MySQL
// advisory lock held on a dedicated connection.
type MySQLBatchLocker struct {
	db *gorm.DB
}

func NewMySQLBatchLocker(db *gorm.DB) *MySQLBatchLocker {
	if db == nil {
		db = config.DB
	}
	return &MySQLBatchLocker{db: db}
}

func (l *MySQLBatchLocker) TryLock(ctx context.Context, name string) (func() error, error) {
	sqlDB, err := l.db.DB()
	if err != nil {
		return nil, persistenceError("batch lock", err)
	}
	// GET_LOCK is scoped to the session, so acquire and release on one conn.
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, persistenceError("batch lock", err)
	}

	var ok sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, persistenceError("batch lock", err)
	}
	if !ok.Valid || ok.Int64 != 1 {
		_ = conn.Close()
		return nil, conflictError("batch", "a re-evaluation batch is already running")
	}

	return func() error {
		defer conn.Close()
		var released sql.NullInt64
		return conn.QueryRowContext(context.Background(), "SELECT RELEASE_LOCK(?)", name).Scan(&released)
	}, nil
}
