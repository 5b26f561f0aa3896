package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	ChangeTypeInitial      = "initial"
	ChangeTypeReEvaluation = "re_evaluation"
	ChangeTypeStatusChange = "status_change"
)

// ErrImmutableHistory is returned when something tries to rewrite the audit
// ledger.
var ErrImmutableHistory = errors.New("evaluation history is append-only")

// EvaluationHistory is one append-only audit entry.
type EvaluationHistory struct {
	ID               int                `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID    int                `gorm:"column:application_id" json:"application_id"`
	ChangeType       string             `gorm:"column:change_type" json:"change_type"`
	BatchID          *string            `gorm:"column:batch_id" json:"batch_id,omitempty"`
	PreviousConfigID *int               `gorm:"column:previous_config_id" json:"previous_config_id,omitempty"`
	NewConfigID      *int               `gorm:"column:new_config_id" json:"new_config_id,omitempty"`
	PreviousScore    float64            `gorm:"column:previous_score" json:"previous_score"`
	NewScore         float64            `gorm:"column:new_score" json:"new_score"`
	PreviousEligible bool               `gorm:"column:previous_eligible" json:"previous_eligible"`
	NewEligible      bool               `gorm:"column:new_eligible" json:"new_eligible"`
	PreviousStatus   *ApplicationStatus `gorm:"column:previous_status" json:"previous_status,omitempty"`
	NewStatus        *ApplicationStatus `gorm:"column:new_status" json:"new_status,omitempty"`
	Reason           *string            `gorm:"column:reason" json:"reason,omitempty"`
	EvaluatedBy      int                `gorm:"column:evaluated_by" json:"evaluated_by"`
	CreatedAt        time.Time          `gorm:"column:created_at" json:"created_at"`
}

func (EvaluationHistory) TableName() string {
	return "evaluation_history"
}

// BeforeUpdate rejects updates of existing audit rows.
func (EvaluationHistory) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableHistory
}

// BeforeDelete rejects deletion of audit rows.
func (EvaluationHistory) BeforeDelete(*gorm.DB) error {
	return ErrImmutableHistory
}
