package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Business holds the operational attributes of the applicant's venture.
type Business struct {
	BusinessID                    int             `gorm:"primaryKey;column:business_id" json:"business_id"`
	ApplicantID                   int             `gorm:"column:applicant_id" json:"applicant_id"`
	Name                          string          `gorm:"column:name" json:"name"`
	IsRegistered                  bool            `gorm:"column:is_registered" json:"is_registered"`
	RegistrationNumber            *string         `gorm:"column:registration_number" json:"registration_number,omitempty"`
	RevenueLastTwoYears           decimal.Decimal `gorm:"column:revenue_last_two_years;type:decimal(18,2)" json:"revenue_last_two_years"`
	FullTimeMale                  int             `gorm:"column:full_time_male" json:"full_time_male"`
	FullTimeFemale                int             `gorm:"column:full_time_female" json:"full_time_female"`
	PartTimeMale                  int             `gorm:"column:part_time_male" json:"part_time_male"`
	PartTimeFemale                int             `gorm:"column:part_time_female" json:"part_time_female"`
	Description                   string          `gorm:"column:description" json:"description"`
	ProblemSolved                 string          `gorm:"column:problem_solved" json:"problem_solved"`
	ClimateAdaptationContribution string          `gorm:"column:climate_adaptation_contribution" json:"climate_adaptation_contribution"`
	ClimateExtremeImpact          string          `gorm:"column:climate_extreme_impact" json:"climate_extreme_impact"`
	TargetCustomers               datatypes.JSON  `gorm:"column:target_customers;type:json" json:"target_customers,omitempty"`
	HasExternalFunding            bool            `gorm:"column:has_external_funding" json:"has_external_funding"`
	ExternalFundingAmount         decimal.Decimal `gorm:"column:external_funding_amount;type:decimal(18,2)" json:"external_funding_amount"`
	ExternalFundingSource         *string         `gorm:"column:external_funding_source" json:"external_funding_source,omitempty"`
	CreatedAt                     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt                     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Business) TableName() string {
	return "businesses"
}

// TotalEmployees sums full and part time staff of every gender.
func (b Business) TotalEmployees() int {
	return b.FullTimeMale + b.FullTimeFemale + b.PartTimeMale + b.PartTimeFemale
}

// FemaleEmployees sums full and part time female staff.
func (b Business) FemaleEmployees() int {
	return b.FullTimeFemale + b.PartTimeFemale
}

// CustomerSegments decodes the target customer list. Malformed JSON yields
// an empty list.
func (b Business) CustomerSegments() []string {
	if len(b.TargetCustomers) == 0 {
		return nil
	}
	var segments []string
	if err := json.Unmarshal(b.TargetCustomers, &segments); err != nil {
		return nil
	}
	return segments
}

// SetCustomerSegments encodes the target customer list.
func (b *Business) SetCustomerSegments(segments []string) {
	if len(segments) == 0 {
		b.TargetCustomers = nil
		return
	}
	raw, _ := json.Marshal(segments)
	b.TargetCustomers = datatypes.JSON(raw)
}
