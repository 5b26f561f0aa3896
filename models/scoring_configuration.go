package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// EvaluationType selects how a criterion gets its points.
type EvaluationType string

const (
	EvaluationManual EvaluationType = "manual"
	EvaluationAuto   EvaluationType = "auto"
	EvaluationHybrid EvaluationType = "hybrid"
)

// Valid reports whether t is one of the known evaluation types.
func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationManual, EvaluationAuto, EvaluationHybrid:
		return true
	}
	return false
}

// ScoringConfiguration is a named, versioned rubric. At most one row has
// IsActive set at any time.
type ScoringConfiguration struct {
	ID            int       `gorm:"primaryKey;column:id" json:"id"`
	Name          string    `gorm:"column:name" json:"name"`
	Version       int       `gorm:"column:version" json:"version"`
	Description   *string   `gorm:"column:description" json:"description,omitempty"`
	TotalMaxScore float64   `gorm:"column:total_max_score" json:"total_max_score"`
	PassThreshold float64   `gorm:"column:pass_threshold" json:"pass_threshold"`
	IsActive      bool      `gorm:"column:is_active" json:"is_active"`
	IsDefault     bool      `gorm:"column:is_default" json:"is_default"`
	CreatedBy     int       `gorm:"column:created_by" json:"created_by"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`

	Criteria []ScoringCriteria `gorm:"foreignKey:ConfigurationID;references:ID" json:"criteria"`
}

func (ScoringConfiguration) TableName() string {
	return "scoring_configurations"
}

// SortedCriteria returns the criteria in deterministic iteration order:
// sort order first, id second.
func (c ScoringConfiguration) SortedCriteria() []ScoringCriteria {
	out := make([]ScoringCriteria, len(c.Criteria))
	copy(out, c.Criteria)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CriteriaMaxPoints sums the point ceilings of all criteria.
func (c ScoringConfiguration) CriteriaMaxPoints() float64 {
	total := 0.0
	for _, cr := range c.Criteria {
		total += cr.MaxPoints
	}
	return total
}

// ScoringLevel is one discrete choice offered to a human evaluator.
type ScoringLevel struct {
	Label       string  `json:"label" yaml:"label"`
	Points      float64 `json:"points" yaml:"points"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// ScoringCriteria is one scored dimension of a configuration.
type ScoringCriteria struct {
	ID              int            `gorm:"primaryKey;column:id" json:"id"`
	ConfigurationID int            `gorm:"column:configuration_id" json:"configuration_id"`
	Category        string         `gorm:"column:category" json:"category"`
	Name            string         `gorm:"column:name" json:"name"`
	Description     *string        `gorm:"column:description" json:"description,omitempty"`
	MaxPoints       float64        `gorm:"column:max_points" json:"max_points"`
	Weightage       float64        `gorm:"column:weightage" json:"weightage"`
	Levels          datatypes.JSON `gorm:"column:levels;type:json" json:"levels,omitempty"`
	EvaluationType  EvaluationType `gorm:"column:evaluation_type" json:"evaluation_type"`
	ScorerKey       string         `gorm:"column:scorer_key" json:"scorer_key,omitempty"`
	SortOrder       int            `gorm:"column:sort_order" json:"sort_order"`
}

func (ScoringCriteria) TableName() string {
	return "scoring_criteria"
}

// ScoringLevels decodes the discrete levels.
func (c ScoringCriteria) ScoringLevels() ([]ScoringLevel, error) {
	if len(c.Levels) == 0 {
		return nil, nil
	}
	var levels []ScoringLevel
	if err := json.Unmarshal(c.Levels, &levels); err != nil {
		return nil, fmt.Errorf("decode levels of criteria %d: %w", c.ID, err)
	}
	return levels, nil
}

// SetScoringLevels encodes levels into the JSON column.
func (c *ScoringCriteria) SetScoringLevels(levels []ScoringLevel) error {
	if len(levels) == 0 {
		c.Levels = nil
		return nil
	}
	raw, err := json.Marshal(levels)
	if err != nil {
		return err
	}
	c.Levels = datatypes.JSON(raw)
	return nil
}

// ActiveScoringConfiguration is the single row naming the active rubric.
// Activation locks it to serialise concurrent requests.
type ActiveScoringConfiguration struct {
	ID              int        `gorm:"primaryKey;column:id" json:"id"`
	ConfigurationID *int       `gorm:"column:configuration_id" json:"configuration_id"`
	ActivatedBy     *int       `gorm:"column:activated_by" json:"activated_by,omitempty"`
	ActivatedAt     *time.Time `gorm:"column:activated_at" json:"activated_at,omitempty"`
}

func (ActiveScoringConfiguration) TableName() string {
	return "active_scoring_configuration"
}

// ActiveConfigurationRowID is the primary key of the singleton row.
const ActiveConfigurationRowID = 1
