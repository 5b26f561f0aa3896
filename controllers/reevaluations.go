package controllers

import (
	"net/http"

	"challenge-scoring-api/services"

	"github.com/gin-gonic/gin"
)

// ReEvaluate re-scores applications under a configuration and returns the
// per-application deltas. Items that failed are reported, not rolled back.
func ReEvaluate(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.ReEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", "Invalid request body")
		return
	}
	if req.ConfigurationID <= 0 {
		badRequest(c, "configuration_id", "configuration_id is required")
		return
	}

	result, err := engine.ReEvaluations.ReEvaluate(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": len(result.Failed) == 0 && !result.Cancelled,
		"data":    result,
	})
}
