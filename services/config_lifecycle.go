package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"challenge-scoring-api/config"
	"challenge-scoring-api/models"
	"challenge-scoring-api/utils"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CriterionInput describes one criterion of a new configuration.
type CriterionInput struct {
	Category       string                `json:"category" yaml:"category"`
	Name           string                `json:"name" yaml:"name"`
	Description    string                `json:"description" yaml:"description"`
	MaxPoints      float64               `json:"max_points" yaml:"max_points"`
	Weightage      float64               `json:"weightage" yaml:"weightage"`
	EvaluationType models.EvaluationType `json:"evaluation_type" yaml:"evaluation_type"`
	ScorerKey      string                `json:"scorer_key" yaml:"scorer_key"`
	SortOrder      int                   `json:"sort_order" yaml:"sort_order"`
	Levels         []models.ScoringLevel `json:"levels" yaml:"levels"`
}

// ConfigurationInput describes a new scoring configuration.
type ConfigurationInput struct {
	Name          string           `json:"name" yaml:"name"`
	Description   string           `json:"description" yaml:"description"`
	TotalMaxScore float64          `json:"total_max_score" yaml:"total_max_score"`
	PassThreshold float64          `json:"pass_threshold" yaml:"pass_threshold"`
	IsDefault     bool             `json:"is_default" yaml:"is_default"`
	Criteria      []CriterionInput `json:"criteria" yaml:"criteria"`
}

// RubricFile is the YAML document accepted by ImportRubric.
type RubricFile struct {
	ConfigurationInput `yaml:",inline"`
	Activate           bool `yaml:"activate"`
}

// CreatedConfiguration is the outcome of Create.
type CreatedConfiguration struct {
	Configuration *models.ScoringConfiguration `json:"configuration"`
	Warnings      []string                     `json:"warnings,omitempty"`
}

// ConfigurationService owns the rubric lifecycle: authoring, versioning
// and activation.
type ConfigurationService struct {
	store   ConfigurationStore
	cache   AnalyticsCache
	scorers *ScorerRegistry
	now     func() time.Time

	// activateMu serialises activations in this process; the store locks
	// the singleton row for everyone else.
	activateMu sync.Mutex
}

func NewConfigurationService(store ConfigurationStore, cache AnalyticsCache, scorers *ScorerRegistry) *ConfigurationService {
	if cache == nil {
		cache = noopCache{}
	}
	if scorers == nil {
		scorers = NewScorerRegistry()
	}
	return &ConfigurationService{store: store, cache: cache, scorers: scorers, now: time.Now}
}

// Create validates and stores a new configuration version. It is created
// inactive.
func (s *ConfigurationService) Create(ctx context.Context, actor Actor, input ConfigurationInput) (*CreatedConfiguration, error) {
	if err := requireAdmin(actor, "create_configuration"); err != nil {
		return nil, err
	}

	cfg, warnings, err := s.buildConfiguration(input)
	if err != nil {
		return nil, err
	}

	version, err := s.store.NextVersion(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	now := s.now()
	cfg.Version = version
	cfg.CreatedBy = actor.UserID
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if err := s.store.CreateConfiguration(ctx, cfg); err != nil {
		return nil, err
	}

	logger := config.Logger.With(
		zap.Int("configuration_id", cfg.ID),
		zap.String("name", cfg.Name),
		zap.Int("version", cfg.Version),
	)
	for _, w := range warnings {
		logger.Warn("scoring configuration warning", zap.String("warning", w))
	}
	logger.Info("scoring configuration created", zap.Int("criteria", len(cfg.Criteria)))

	return &CreatedConfiguration{Configuration: cfg, Warnings: warnings}, nil
}

func (s *ConfigurationService) buildConfiguration(input ConfigurationInput) (*models.ScoringConfiguration, []string, error) {
	name := utils.SanitizeInput(input.Name)
	if name == "" {
		return nil, nil, validationError("name", "is required")
	}
	if input.TotalMaxScore <= 0 {
		return nil, nil, validationError("total_max_score", "must be greater than 0")
	}
	if input.PassThreshold < 0 || input.PassThreshold > input.TotalMaxScore {
		return nil, nil, validationError("pass_threshold", "must be between 0 and %g", input.TotalMaxScore)
	}
	if len(input.Criteria) == 0 {
		return nil, nil, validationError("criteria", "at least one criterion is required")
	}

	cfg := &models.ScoringConfiguration{
		Name:          name,
		TotalMaxScore: input.TotalMaxScore,
		PassThreshold: input.PassThreshold,
		IsDefault:     input.IsDefault,
	}
	if desc := utils.SanitizeInput(input.Description); desc != "" {
		cfg.Description = &desc
	}

	var warnings []string
	for i, in := range input.Criteria {
		field := fmt.Sprintf("criteria[%d]", i)
		c, warning, err := s.buildCriterion(field, in)
		if err != nil {
			return nil, nil, err
		}
		if c.SortOrder == 0 {
			c.SortOrder = i + 1
		}
		if warning != "" {
			warnings = append(warnings, warning)
		}
		cfg.Criteria = append(cfg.Criteria, *c)
	}

	if sum := cfg.CriteriaMaxPoints(); sum != cfg.TotalMaxScore {
		warnings = append(warnings, fmt.Sprintf(
			"criteria max points sum to %g but total_max_score is %g", sum, cfg.TotalMaxScore))
	}
	return cfg, warnings, nil
}

func (s *ConfigurationService) buildCriterion(field string, in CriterionInput) (*models.ScoringCriteria, string, error) {
	name := utils.SanitizeInput(in.Name)
	if name == "" {
		return nil, "", validationError(field+".name", "is required")
	}
	if in.MaxPoints <= 0 {
		return nil, "", validationError(field+".max_points", "must be greater than 0")
	}
	evalType := models.EvaluationType(strings.ToLower(strings.TrimSpace(string(in.EvaluationType))))
	if evalType == "" {
		evalType = models.EvaluationManual
	}
	if !evalType.Valid() {
		return nil, "", validationError(field+".evaluation_type", "unknown evaluation type %q", in.EvaluationType)
	}
	for j, level := range in.Levels {
		if strings.TrimSpace(level.Label) == "" {
			return nil, "", validationError(fmt.Sprintf("%s.levels[%d].label", field, j), "is required")
		}
		if level.Points < 0 || level.Points > in.MaxPoints {
			return nil, "", validationError(fmt.Sprintf("%s.levels[%d].points", field, j),
				"must be between 0 and %g", in.MaxPoints)
		}
	}

	category := utils.NormalizeKey(in.Category)
	if category == "" {
		category = utils.NormalizeKey(name)
	}
	c := &models.ScoringCriteria{
		Category:       category,
		Name:           name,
		MaxPoints:      in.MaxPoints,
		Weightage:      in.Weightage,
		EvaluationType: evalType,
		ScorerKey:      utils.NormalizeKey(in.ScorerKey),
		SortOrder:      in.SortOrder,
	}
	if desc := utils.SanitizeInput(in.Description); desc != "" {
		c.Description = &desc
	}
	if err := c.SetScoringLevels(in.Levels); err != nil {
		return nil, "", validationError(field+".levels", "%v", err)
	}

	var warning string
	if evalType != models.EvaluationManual && !s.hasScorer(*c) {
		warning = fmt.Sprintf("%s: no automatic scorer for %q, it will wait for a manual score", field, name)
	}
	return c, warning, nil
}

func (s *ConfigurationService) hasScorer(c models.ScoringCriteria) bool {
	_, _, ok := s.scorers.Lookup(c)
	return ok
}

// Activate makes the configuration the only active one.
func (s *ConfigurationService) Activate(ctx context.Context, actor Actor, id int) (*models.ScoringConfiguration, error) {
	if err := requireAdmin(actor, "activate_configuration"); err != nil {
		return nil, err
	}

	s.activateMu.Lock()
	err := s.store.ActivateConfiguration(ctx, id, actor.UserID, s.now())
	s.activateMu.Unlock()
	if err != nil {
		return nil, err
	}
	ConfigurationActivations.Inc()

	if err := s.cache.Invalidate(ctx); err != nil {
		config.Logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
	config.Logger.Info("scoring configuration activated",
		zap.Int("configuration_id", id),
		zap.Int("activated_by", actor.UserID),
	)
	return s.store.GetConfiguration(ctx, id)
}

// GetActive returns the active configuration or a not-found error.
func (s *ConfigurationService) GetActive(ctx context.Context) (*models.ScoringConfiguration, error) {
	return s.store.GetActiveConfiguration(ctx)
}

func (s *ConfigurationService) Get(ctx context.Context, id int) (*models.ScoringConfiguration, error) {
	return s.store.GetConfiguration(ctx, id)
}

func (s *ConfigurationService) List(ctx context.Context) ([]models.ScoringConfiguration, error) {
	return s.store.ListConfigurations(ctx)
}

// ImportRubric creates a configuration from a YAML rubric and activates it
// when the document asks for it.
func (s *ConfigurationService) ImportRubric(ctx context.Context, actor Actor, data []byte) (*CreatedConfiguration, error) {
	if err := requireAdmin(actor, "import_rubric"); err != nil {
		return nil, err
	}
	var file RubricFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, validationError("rubric", "invalid YAML: %v", err)
	}

	created, err := s.Create(ctx, actor, file.ConfigurationInput)
	if err != nil {
		return nil, err
	}
	if file.Activate {
		activated, err := s.Activate(ctx, actor, created.Configuration.ID)
		if err != nil {
			return nil, err
		}
		created.Configuration = activated
	}
	return created, nil
}
