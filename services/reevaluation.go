package services

import (
	"context"
	"sort"
	"time"

	"challenge-scoring-api/config"
	"challenge-scoring-api/models"
	"challenge-scoring-api/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReEvaluationWorkers = 4
	MaxReEvaluationWorkers     = 32
	DefaultBatchLockName       = "scoring_reevaluation_batch"
	DefaultItemTimeout         = 30 * time.Second
)

type ReEvaluationRequest struct {
	ConfigurationID int    `json:"configuration_id"`
	ApplicationIDs  []int  `json:"application_ids"`
	Reason          string `json:"reason"`
	Workers         int    `json:"workers"`
}

// Delta is the change of one application's outcome.
type Delta struct {
	ApplicationID      int     `json:"application_id"`
	PreviousScore      float64 `json:"previous_score"`
	NewScore           float64 `json:"new_score"`
	PreviousEligible   bool    `json:"previous_eligible"`
	NewEligible        bool    `json:"new_eligible"`
	ScoreChange        float64 `json:"score_change"`
	EligibilityChanged bool    `json:"eligibility_changed"`
}

// FailedItem names an application whose evaluation was not committed.
type FailedItem struct {
	ApplicationID int       `json:"application_id"`
	Kind          ErrorKind `json:"kind"`
	Message       string    `json:"message"`
}

type BatchSummary struct {
	TotalEvaluated       int     `json:"total_evaluated"`
	EligibilityChanges   int     `json:"eligibility_changes"`
	NewlyEligibleCount   int     `json:"newly_eligible_count"`
	LostEligibilityCount int     `json:"lost_eligibility_count"`
	AverageScoreChange   float64 `json:"average_score_change"`
	FailedCount          int     `json:"failed_count"`
	SkippedCount         int     `json:"skipped_count"`
}

// BatchResult reports every application of a batch exactly once: in Deltas
// when committed, in Failed when its transaction failed, or in Skipped when
// the batch was cancelled before it started.
type BatchResult struct {
	BatchID         string       `json:"batch_id"`
	ConfigurationID int          `json:"configuration_id"`
	Deltas          []Delta      `json:"deltas"`
	Failed          []FailedItem `json:"failed"`
	Skipped         []int        `json:"skipped"`
	Cancelled       bool         `json:"cancelled"`
	Summary         BatchSummary `json:"summary"`
}

type ReEvaluationOptions struct {
	Workers     int
	LockName    string
	ItemTimeout time.Duration
}

// ReEvaluationService re-scores applications under a configuration and
// records the audit trail.
type ReEvaluationService struct {
	records     RecordStore
	configs     ConfigurationStore
	results     ResultStore
	engine      *ScoringEngine
	locker      BatchLocker
	cache       AnalyticsCache
	workers     int
	lockName    string
	itemTimeout time.Duration
	now         func() time.Time
}

func NewReEvaluationService(records RecordStore, configs ConfigurationStore, results ResultStore, engine *ScoringEngine,
	locker BatchLocker, cache AnalyticsCache, opts ReEvaluationOptions) *ReEvaluationService {
	if engine == nil {
		engine = NewScoringEngine(nil)
	}
	if locker == nil {
		locker = noopLocker{}
	}
	if cache == nil {
		cache = noopCache{}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultReEvaluationWorkers
	}
	if opts.LockName == "" {
		opts.LockName = DefaultBatchLockName
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DefaultItemTimeout
	}
	return &ReEvaluationService{
		records:     records,
		configs:     configs,
		results:     results,
		engine:      engine,
		locker:      locker,
		cache:       cache,
		workers:     opts.Workers,
		lockName:    opts.LockName,
		itemTimeout: opts.ItemTimeout,
		now:         time.Now,
	}
}

type itemState int

const (
	itemSkipped itemState = iota
	itemDone
	itemFailed
)

type itemOutcome struct {
	state itemState
	delta Delta
	err   error
}

// ReEvaluate re-scores the requested applications, or all of them, against
// the configuration. Each application commits in its own transaction, so a
// failure or a cancellation never undoes work already committed.
func (s *ReEvaluationService) ReEvaluate(ctx context.Context, actor Actor, req ReEvaluationRequest) (*BatchResult, error) {
	if err := requireAdmin(actor, "re_evaluate"); err != nil {
		return nil, err
	}
	cfg, err := s.configs.GetConfiguration(ctx, req.ConfigurationID)
	if err != nil {
		return nil, err
	}

	ids, err := s.resolveApplications(ctx, req.ApplicationIDs)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.TryLock(ctx, s.lockName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if relErr := release(); relErr != nil {
			config.Logger.Warn("failed to release re-evaluation lock", zap.Error(relErr))
		}
	}()

	workers := s.workers
	if req.Workers > 0 {
		workers = req.Workers
	}
	if workers > MaxReEvaluationWorkers {
		workers = MaxReEvaluationWorkers
	}

	batchID := uuid.NewString()
	reason := utils.SanitizeInput(req.Reason)
	logger := config.Logger.With(
		zap.String("batch_id", batchID),
		zap.Int("configuration_id", cfg.ID),
	)
	logger.Info("re-evaluation started", zap.Int("applications", len(ids)), zap.Int("workers", workers))
	started := time.Now()

	outcomes := make([]itemOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		i, id := i, id
		g.Go(func() error {
			// g.Go may have waited for a free worker while the caller cancelled.
			if ctx.Err() != nil {
				return nil
			}
			// Started items finish even if the caller cancels.
			itemCtx, cancel := itemContext(ctx, s.itemTimeout)
			defer cancel()
			delta, err := s.reEvaluateOne(itemCtx, actor, cfg, id, batchID, reason)
			if err != nil {
				outcomes[i] = itemOutcome{state: itemFailed, err: err}
				return nil
			}
			outcomes[i] = itemOutcome{state: itemDone, delta: delta}
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{
		BatchID:         batchID,
		ConfigurationID: cfg.ID,
		Deltas:          []Delta{},
		Failed:          []FailedItem{},
		Skipped:         []int{},
	}
	totalChange := 0.0
	for i, out := range outcomes {
		switch out.state {
		case itemDone:
			d := out.delta
			res.Deltas = append(res.Deltas, d)
			totalChange += d.ScoreChange
			if d.EligibilityChanged {
				res.Summary.EligibilityChanges++
				if d.NewEligible {
					res.Summary.NewlyEligibleCount++
				} else {
					res.Summary.LostEligibilityCount++
				}
			}
		case itemFailed:
			res.Failed = append(res.Failed, FailedItem{
				ApplicationID: ids[i],
				Kind:          KindOf(out.err),
				Message:       out.err.Error(),
			})
			logger.Error("re-evaluation failed for application", zap.Int("application_id", ids[i]), zap.Error(out.err))
		default:
			res.Skipped = append(res.Skipped, ids[i])
		}
	}
	res.Summary.TotalEvaluated = len(res.Deltas)
	res.Summary.FailedCount = len(res.Failed)
	res.Summary.SkippedCount = len(res.Skipped)
	res.Cancelled = ctx.Err() != nil && len(res.Skipped) > 0
	if n := len(res.Deltas); n > 0 {
		res.Summary.AverageScoreChange = roundPoints(totalChange / float64(n))
	}

	ReEvaluationItems.WithLabelValues("evaluated").Add(float64(res.Summary.TotalEvaluated))
	ReEvaluationItems.WithLabelValues("failed").Add(float64(res.Summary.FailedCount))
	ReEvaluationItems.WithLabelValues("skipped").Add(float64(res.Summary.SkippedCount))
	ReEvaluationDuration.Observe(time.Since(started).Seconds())
	if res.Summary.TotalEvaluated > 0 {
		EvaluationsRecorded.WithLabelValues(models.ChangeTypeReEvaluation).Add(float64(res.Summary.TotalEvaluated))
	}

	if err := s.cache.Invalidate(persistentContext(ctx)); err != nil {
		logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
	logger.Info("re-evaluation finished",
		zap.Int("evaluated", res.Summary.TotalEvaluated),
		zap.Int("failed", res.Summary.FailedCount),
		zap.Int("skipped", res.Summary.SkippedCount),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

func (s *ReEvaluationService) resolveApplications(ctx context.Context, requested []int) ([]int, error) {
	if len(requested) == 0 {
		return s.records.ListApplicationIDs(ctx, ApplicationFilter{})
	}
	seen := make(map[int]struct{}, len(requested))
	ids := make([]int, 0, len(requested))
	for _, id := range requested {
		if id <= 0 {
			return nil, validationError("application_ids", "invalid application id %d", id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// reEvaluateOne runs the read-compute-write sequence of one application in
// a single transaction. The gate flags stored with the current result are
// kept; the gate runs only when the application was never evaluated.
func (s *ReEvaluationService) reEvaluateOne(ctx context.Context, actor Actor, cfg *models.ScoringConfiguration, applicationID int, batchID, reason string) (Delta, error) {
	app, err := s.records.GetApplication(ctx, applicationID)
	if err != nil {
		return Delta{}, err
	}

	var delta Delta
	err = s.results.Transact(ctx, func(tx ResultStore) error {
		now := s.now()
		previous, err := tx.LockEligibilityResult(ctx, applicationID)
		if err != nil {
			return err
		}
		gate := GateFromResult(previous)
		if previous == nil {
			gate = EvaluateGate(app.Applicant, app.Business, now)
		}

		result, _, err := applyEvaluation(ctx, tx, s.engine, *app, cfg, gate, previous, actor.UserID, now)
		if err != nil {
			return err
		}

		entry := historyEntry(models.ChangeTypeReEvaluation, applicationID, previous, result, actor.UserID, now)
		entry.BatchID = &batchID
		entry.Reason = optionalString(reason)
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}

		delta = Delta{
			ApplicationID:      applicationID,
			PreviousScore:      entry.PreviousScore,
			NewScore:           entry.NewScore,
			PreviousEligible:   entry.PreviousEligible,
			NewEligible:        entry.NewEligible,
			ScoreChange:        roundPoints(entry.NewScore - entry.PreviousScore),
			EligibilityChanged: entry.PreviousEligible != entry.NewEligible,
		}
		return nil
	})
	if err != nil {
		return Delta{}, persistenceError("re-evaluate application", err)
	}
	return delta, nil
}
