package models

import "time"

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	StatusDraft        ApplicationStatus = "draft"
	StatusSubmitted    ApplicationStatus = "submitted"
	StatusUnderReview  ApplicationStatus = "under_review"
	StatusShortlisted  ApplicationStatus = "shortlisted"
	StatusScoringPhase ApplicationStatus = "scoring_phase"
	StatusDragonsDen   ApplicationStatus = "dragons_den"
	StatusFinalist     ApplicationStatus = "finalist"
	StatusApproved     ApplicationStatus = "approved"
	StatusRejected     ApplicationStatus = "rejected"
)

// Application is the unit of evaluation. One per applicant.
type Application struct {
	ApplicationID int               `gorm:"primaryKey;column:application_id" json:"application_id"`
	ApplicantID   int               `gorm:"column:applicant_id;uniqueIndex" json:"applicant_id"`
	BusinessID    int               `gorm:"column:business_id" json:"business_id"`
	Status        ApplicationStatus `gorm:"column:status" json:"status"`
	SubmittedAt   *time.Time        `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	CreatedAt     time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Applicant         Applicant          `gorm:"foreignKey:ApplicantID;references:ApplicantID" json:"applicant"`
	Business          Business           `gorm:"foreignKey:BusinessID;references:BusinessID" json:"business"`
	EligibilityResult *EligibilityResult `gorm:"foreignKey:ApplicationID;references:ApplicationID" json:"eligibility_result,omitempty"`
}

func (Application) TableName() string {
	return "applications"
}
