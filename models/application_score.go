package models

import "time"

const (
	ScoreSourceManual = "manual"
	ScoreSourceAuto   = "auto"
)

// ApplicationScore is the score of one (application, criteria, configuration)
// triple.
type ApplicationScore struct {
	ID              int       `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID   int       `gorm:"column:application_id" json:"application_id"`
	CriteriaID      int       `gorm:"column:criteria_id" json:"criteria_id"`
	ConfigurationID int       `gorm:"column:configuration_id" json:"configuration_id"`
	Score           float64   `gorm:"column:score" json:"score"`
	MaxScore        float64   `gorm:"column:max_score" json:"max_score"`
	Level           *string   `gorm:"column:level" json:"level,omitempty"`
	Source          string    `gorm:"column:source" json:"source"`
	Comments        *string   `gorm:"column:comments" json:"comments,omitempty"`
	EvaluatedBy     int       `gorm:"column:evaluated_by" json:"evaluated_by"`
	EvaluatedAt     time.Time `gorm:"column:evaluated_at" json:"evaluated_at"`
}

func (ApplicationScore) TableName() string {
	return "application_scores"
}

// IsManual reports whether a human evaluator recorded the score.
func (s ApplicationScore) IsManual() bool {
	return s.Source == ScoreSourceManual
}
