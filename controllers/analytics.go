package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"challenge-scoring-api/services"

	"github.com/gin-gonic/gin"
)

// GetAnalytics returns the aggregated analytics report for the filter given
// in the query string
func GetAnalytics(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	filter, ok := analyticsFilterFromQuery(c)
	if !ok {
		return
	}

	report, err := engine.Analytics.GetAnalytics(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

func analyticsFilterFromQuery(c *gin.Context) (services.AnalyticsFilter, bool) {
	var filter services.AnalyticsFilter

	statuses, ok := parseStatusQuery(c, "status")
	if !ok {
		return filter, false
	}
	from, ok := parseDateQuery(c, "submitted_from", false)
	if !ok {
		return filter, false
	}
	to, ok := parseDateQuery(c, "submitted_to", true)
	if !ok {
		return filter, false
	}

	filter.Statuses = statuses
	filter.SubmittedFrom = from
	filter.SubmittedTo = to
	filter.Country = strings.TrimSpace(c.Query("country"))
	filter.Gender = strings.ToLower(strings.TrimSpace(c.Query("gender")))
	filter.AgeBucket = strings.TrimSpace(c.Query("age_bucket"))
	filter.EducationLevel = strings.TrimSpace(c.Query("education_level"))

	if raw := c.Query("timeline_months"); raw != "" {
		months, err := strconv.Atoi(raw)
		if err != nil || months <= 0 {
			badRequest(c, "timeline_months", "timeline_months must be a positive number")
			return filter, false
		}
		filter.TimelineMonths = months
	}
	return filter, true
}
