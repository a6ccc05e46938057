package handler

import (
	"github.com/gin-gonic/gin"

	appintegration "github.com/erp/connector/internal/application/integration"
	"github.com/erp/connector/internal/domain/integration"
)

// ActivityReporter exposes recent sync and webhook activity
type ActivityReporter interface {
	Stats() integration.ActivityStats
}

// ActivityHandler serves the activity summary
type ActivityHandler struct {
	BaseHandler
	activity ActivityReporter
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activity ActivityReporter) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// GetActivity returns 24-hour and all-time statistics plus the most recent records
//
// GET /api/activity
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	h.Success(c, appintegration.ToActivityStatsResponse(h.activity.Stats()))
}
