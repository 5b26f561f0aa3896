package controllers

import (
	"io"
	"net/http"

	"challenge-scoring-api/services"

	"github.com/gin-gonic/gin"
)

const maxRubricSize = 1 << 20

// CreateScoringConfig stores a new, inactive scoring configuration
func CreateScoringConfig(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req services.ConfigurationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "", "Invalid request body")
		return
	}

	created, err := engine.Configurations.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"data":     created.Configuration,
		"warnings": created.Warnings,
	})
}

// ImportScoringRubric creates a configuration from a YAML rubric body
func ImportScoringRubric(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRubricSize))
	if err != nil || len(body) == 0 {
		badRequest(c, "rubric", "Rubric body is required")
		return
	}

	created, err := engine.Configurations.ImportRubric(c.Request.Context(), actor, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"data":     created.Configuration,
		"warnings": created.Warnings,
	})
}

// ListScoringConfigs returns every configuration version
func ListScoringConfigs(c *gin.Context) {
	configs, err := engine.Configurations.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": configs, "total": len(configs)})
}

// GetActiveScoringConfig returns the configuration new submissions are scored against
func GetActiveScoringConfig(c *gin.Context) {
	cfg, err := engine.Configurations.GetActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cfg})
}

func GetScoringConfig(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	cfg, err := engine.Configurations.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cfg})
}

// ActivateScoringConfig makes one configuration the only active one
func ActivateScoringConfig(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	cfg, err := engine.Configurations.Activate(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Scoring configuration activated",
		"data":    cfg,
	})
}
