package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"challenge-scoring-api/services"

	"github.com/gin-gonic/gin"
)

// ExportEvaluations exports applications with their current evaluation as
// JSON (default) or CSV (format=csv)
func ExportEvaluations(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "csv" {
		badRequest(c, "format", "format must be json or csv")
		return
	}

	statuses, ok := parseStatusQuery(c, "status")
	if !ok {
		return
	}
	from, ok := parseDateQuery(c, "submitted_from", false)
	if !ok {
		return
	}
	to, ok := parseDateQuery(c, "submitted_to", true)
	if !ok {
		return
	}
	eligibleOnly, _ := strconv.ParseBool(c.Query("eligible_only"))

	rows, err := engine.Exports.ExportEvaluationData(c.Request.Context(), actor, services.ExportFilter{
		Statuses:      statuses,
		SubmittedFrom: from,
		SubmittedTo:   to,
		EligibleOnly:  eligibleOnly,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": rows, "total": len(rows)})
		return
	}

	var buf bytes.Buffer
	if err := services.WriteCSV(&buf, rows); err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("evaluations-%s.csv", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
