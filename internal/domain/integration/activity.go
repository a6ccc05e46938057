package integration

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType classifies an activity record
type ActivityType string

const (
	ActivityTypeSync    ActivityType = "sync"
	ActivityTypeWebhook ActivityType = "webhook"
	ActivityTypeError   ActivityType = "error"
)

// IsValid returns true if the activity type is valid
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityTypeSync, ActivityTypeWebhook, ActivityTypeError:
		return true
	default:
		return false
	}
}

// ActivityRecord is one entry of the process-wide activity history
type ActivityRecord struct {
	ID              uuid.UUID
	Timestamp       time.Time
	Type            ActivityType
	Success         bool
	OrdersProcessed int
	OrdersFailed    int
	Duration        time.Duration
	Message         string
}

// ActivityStats aggregates the activity history
type ActivityStats struct {
	Last24Hours    WindowStats
	AllTime        AllTimeStats
	RecentActivity []ActivityRecord
}

// WindowStats covers sync records inside a time window
type WindowStats struct {
	TotalSyncs      int
	SuccessfulSyncs int
	FailedSyncs     int
	OrdersProcessed int
	OrdersFailed    int
	// LastSyncTime is nil when no sync ran inside the window
	LastSyncTime *time.Time
}

// AllTimeStats covers every sync since process start
type AllTimeStats struct {
	TotalSyncs      int
	OrdersProcessed int
	StartTime       time.Time
}
