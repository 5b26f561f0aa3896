package services

import (
	"time"

	"gorm.io/gorm"
)

// EngineOptions tunes NewEngine. Zero values select the defaults.
type EngineOptions struct {
	Cache               AnalyticsCache
	Scorers             *ScorerRegistry
	Locker              BatchLocker
	ReEvaluationWorkers int
	BatchLockName       string
	ItemTimeout         time.Duration
	TimelineMonths      int
}

// Engine groups the services of the eligibility and scoring engine over one
// database.
type Engine struct {
	Store          *GormStore
	Scoring        *ScoringEngine
	Configurations *ConfigurationService
	Evaluations    *EvaluationService
	ReEvaluations  *ReEvaluationService
	Analytics      *AnalyticsService
	Exports        *ExportService
}

func NewEngine(db *gorm.DB, opts EngineOptions) *Engine {
	store := NewGormStore(db)
	if opts.Cache == nil {
		opts.Cache = noopCache{}
	}
	if opts.Scorers == nil {
		opts.Scorers = NewScorerRegistry()
	}
	if opts.Locker == nil {
		opts.Locker = NewMySQLBatchLocker(store.db)
	}
	scoring := NewScoringEngine(opts.Scorers)

	return &Engine{
		Store:          store,
		Scoring:        scoring,
		Configurations: NewConfigurationService(store, opts.Cache, opts.Scorers),
		Evaluations:    NewEvaluationService(store, store, store, scoring, opts.Cache),
		ReEvaluations: NewReEvaluationService(store, store, store, scoring, opts.Locker, opts.Cache, ReEvaluationOptions{
			Workers:     opts.ReEvaluationWorkers,
			LockName:    opts.BatchLockName,
			ItemTimeout: opts.ItemTimeout,
		}),
		Analytics: NewAnalyticsService(store, opts.Cache, opts.TimelineMonths),
		Exports:   NewExportService(store),
	}
}
