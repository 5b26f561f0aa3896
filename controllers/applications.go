package controllers

import (
	"net/http"

	"challenge-scoring-api/services"

	"github.com/gin-gonic/gin"
)

// SubmitApplication creates an application and runs its initial evaluation
func SubmitApplication(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.SubmissionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", "Invalid request body")
		return
	}

	result, err := engine.Evaluations.SubmitApplication(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": result})
}

// EvaluateApplication re-runs the gate and the active configuration for one application
func EvaluateApplication(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := engine.Evaluations.EvaluateSubmission(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

type manualScoreRequest struct {
	CriteriaID      int     `json:"criteria_id" binding:"required"`
	ConfigurationID int     `json:"configuration_id"`
	Score           float64 `json:"score"`
	Level           *string `json:"level"`
	Comments        string  `json:"comments"`
}

// RecordManualScore stores an evaluator's score for one criterion
func RecordManualScore(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req manualScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "criteria_id", "Invalid request body")
		return
	}

	outcome, err := engine.Evaluations.RecordManualScore(c.Request.Context(), actor, services.ManualScoreInput{
		ApplicationID:   id,
		CriteriaID:      req.CriteriaID,
		ConfigurationID: req.ConfigurationID,
		Score:           req.Score,
		Level:           req.Level,
		Comments:        req.Comments,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": outcome})
}

// AssignEvaluator assigns an evaluator to an application
func AssignEvaluator(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		EvaluatorID int `json:"evaluator_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "evaluator_id", "evaluator_id is required")
		return
	}

	assignment, err := engine.Evaluations.AssignEvaluator(c.Request.Context(), actor, id, req.EvaluatorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": assignment})
}

// TransitionStatus moves an application along its lifecycle
func TransitionStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status", "status is required")
		return
	}

	entry, err := engine.Evaluations.TransitionStatus(c.Request.Context(), actor, id, req.Status, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entry})
}

// ListHistory returns the audit trail of an application, oldest first
func ListHistory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	entries, err := engine.Evaluations.ListHistory(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries, "total": len(entries)})
}
