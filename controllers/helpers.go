package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"challenge-scoring-api/config"
	"challenge-scoring-api/middleware"
	"challenge-scoring-api/models"
	"challenge-scoring-api/services"
	"challenge-scoring-api/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var engine *services.Engine

// Init installs the engine used by every handler.
func Init(e *services.Engine) {
	engine = e
}

var kindStatus = map[services.ErrorKind]int{
	services.KindValidation:    http.StatusBadRequest,
	services.KindNotFound:      http.StatusNotFound,
	services.KindConflict:      http.StatusConflict,
	services.KindAuthorization: http.StatusForbidden,
	services.KindPersistence:   http.StatusInternalServerError,
}

// respondError writes the error taxonomy as JSON. Persistence details stay in
// the log.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := gin.H{"success": false, "kind": kind}
	var e *services.Error
	if errors.As(err, &e) && e.Field != "" {
		body["field"] = e.Field
	}
	if kind == services.KindPersistence {
		config.Logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		body["error"] = "Internal server error"
	} else {
		body["error"] = err.Error()
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

func badRequest(c *gin.Context, field, message string) {
	body := gin.H{"success": false, "kind": services.KindValidation, "error": message}
	if field != "" {
		body["field"] = field
	}
	c.JSON(http.StatusBadRequest, body)
}

// currentActor aborts with 401 when the request carries no actor.
func currentActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
		return services.Actor{}, false
	}
	return actor, true
}

func parseIDParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, name, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// parseDateQuery accepts YYYY-MM-DD or RFC3339. to marks an inclusive upper
// bound, so a bare date extends to the end of that day.
func parseDateQuery(c *gin.Context, key string, to bool) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		badRequest(c, key, "Invalid date, expected YYYY-MM-DD")
		return nil, false
	}
	if to {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

// parseStatusQuery reads repeated or comma separated status values.
func parseStatusQuery(c *gin.Context, key string) ([]models.ApplicationStatus, bool) {
	var values []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
	}
	if len(values) == 0 {
		return nil, true
	}
	statuses, err := utils.ParseStatuses(values)
	if err != nil {
		badRequest(c, key, err.Error())
		return nil, false
	}
	return statuses, true
}
