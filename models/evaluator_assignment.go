package models

import "time"

const (
	AssignmentPending   = "pending"
	AssignmentCompleted = "completed"
)

// EvaluatorAssignment links an evaluator to an application they must score.
type EvaluatorAssignment struct {
	ID            int        `gorm:"primaryKey;column:id" json:"id"`
	ApplicationID int        `gorm:"column:application_id" json:"application_id"`
	EvaluatorID   int        `gorm:"column:evaluator_id" json:"evaluator_id"`
	Status        string     `gorm:"column:status" json:"status"`
	AssignedBy    int        `gorm:"column:assigned_by" json:"assigned_by"`
	AssignedAt    time.Time  `gorm:"column:assigned_at" json:"assigned_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Evaluator *User `gorm:"foreignKey:EvaluatorID;references:UserID" json:"evaluator,omitempty"`
}

func (EvaluatorAssignment) TableName() string {
	return "evaluator_assignments"
}
