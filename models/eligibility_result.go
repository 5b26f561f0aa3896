package models

import (
	"time"

	"gorm.io/datatypes"
)

// EligibilityResult is the current evaluation snapshot of an application.
// One row per application, updated in place.
type EligibilityResult struct {
	ID                   int  `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID        int  `gorm:"column:application_id;uniqueIndex" json:"application_id"`
	AgeEligible          bool `gorm:"column:age_eligible" json:"age_eligible"`
	RegistrationEligible bool `gorm:"column:registration_eligible" json:"registration_eligible"`
	RevenueEligible      bool `gorm:"column:revenue_eligible" json:"revenue_eligible"`
	BusinessPlanEligible bool `gorm:"column:business_plan_eligible" json:"business_plan_eligible"`
	ImpactEligible       bool `gorm:"column:impact_eligible" json:"impact_eligible"`
	IsEligible           bool `gorm:"column:is_eligible" json:"is_eligible"`

	// Fixed-category scores of the unweighted scheme, projected from the
	// normalized application scores.
	MarketPotentialScore float64 `gorm:"column:market_potential_score" json:"market_potential_score"`
	InnovationScore      float64 `gorm:"column:innovation_score" json:"innovation_score"`
	ClimateImpactScore   float64 `gorm:"column:climate_impact_score" json:"climate_impact_score"`
	JobCreationScore     float64 `gorm:"column:job_creation_score" json:"job_creation_score"`
	FinancialHealthScore float64 `gorm:"column:financial_health_score" json:"financial_health_score"`

	CustomScores    datatypes.JSON `gorm:"column:custom_scores;type:json" json:"custom_scores,omitempty"`
	TotalScore      float64        `gorm:"column:total_score" json:"total_score"`
	ScoringConfigID *int           `gorm:"column:scoring_config_id" json:"scoring_config_id,omitempty"`
	EvaluatedBy     int            `gorm:"column:evaluated_by" json:"evaluated_by"`
	EvaluatedAt     time.Time      `gorm:"column:evaluated_at" json:"evaluated_at"`
}

func (EligibilityResult) TableName() string {
	return "eligibility_results"
}

// GatePassed reports whether every mandatory flag holds.
func (r EligibilityResult) GatePassed() bool {
	return r.AgeEligible && r.RegistrationEligible && r.RevenueEligible &&
		r.BusinessPlanEligible && r.ImpactEligible
}
