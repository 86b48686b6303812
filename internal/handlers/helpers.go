package handlers

import (
	"net/http"
	"strconv"
	"time"

	"timeline/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// Accepted timestamp layouts: full ISO-8601, and the minute-precision form
// emitted by datetime-local form inputs.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseTime(value, field string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, &models.ValidationError{Field: field, Reason: "invalid_date"}
}

func parseOptionalTime(value *string, field string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	parsed, err := parseTime(*value, field)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalUUID(value *string, field string) (*uuid.UUID, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	parsed, err := uuid.FromString(*value)
	if err != nil {
		return nil, &models.ValidationError{Field: field, Reason: "invalid_uuid"}
	}
	return &parsed, nil
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, defaultValue int) int {
	if value, err := strconv.Atoi(c.Query(name)); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
