package integration

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erp/connector/internal/domain/integration"
)

const (
	// DefaultActivityCapacity is the number of records kept in memory
	DefaultActivityCapacity = 100
	// recentActivityLimit is the number of records returned by Stats
	recentActivityLimit = 10
	statsWindow         = 24 * time.Hour
)

// SyncActivity is the input of ActivityTracker.RecordSync
type SyncActivity struct {
	Success         bool
	OrdersProcessed int
	OrdersFailed    int
	Duration        time.Duration
	Message         string
}

// ActivityTracker keeps a bounded, newest-first history of sync and webhook
// activity. State is process-local and resets on restart.
type ActivityTracker struct {
	mu       sync.RWMutex
	records  []integration.ActivityRecord
	capacity int

	startTime            time.Time
	totalSyncs           int
	totalOrdersProcessed int

	now func() time.Time
}

// NewActivityTracker creates a tracker holding at most capacity records
func NewActivityTracker(capacity int) *ActivityTracker {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityTracker{
		records:   make([]integration.ActivityRecord, 0, capacity),
		capacity:  capacity,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// RecordSync records a completed sync run
func (t *ActivityTracker) RecordSync(activity SyncActivity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalSyncs++
	t.totalOrdersProcessed += activity.OrdersProcessed
	t.push(integration.ActivityRecord{
		Type:            integration.ActivityTypeSync,
		Success:         activity.Success,
		OrdersProcessed: activity.OrdersProcessed,
		OrdersFailed:    activity.OrdersFailed,
		Duration:        activity.Duration,
		Message:         activity.Message,
	})
}

// RecordWebhook records one processed shipment event
func (t *ActivityTracker) RecordWebhook(success bool, message string) {
	record := integration.ActivityRecord{
		Type:    integration.ActivityTypeWebhook,
		Success: success,
		Message: message,
	}
	if success {
		record.OrdersProcessed = 1
	} else {
		record.OrdersFailed = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.push(record)
}

// RecordError records a run-level failure
func (t *ActivityTracker) RecordError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.push(integration.ActivityRecord{
		Type:    integration.ActivityTypeError,
		Message: message,
	})
}

// push prepends a record and evicts the oldest beyond capacity. Caller holds mu.
func (t *ActivityTracker) push(record integration.ActivityRecord) {
	record.ID = uuid.New()
	record.Timestamp = t.now()

	t.records = append(t.records, integration.ActivityRecord{})
	copy(t.records[1:], t.records)
	t.records[0] = record

	if len(t.records) > t.capacity {
		t.records = t.records[:t.capacity]
	}
}

// Stats aggregates the sync records of the last 24 hours and since start
func (t *ActivityTracker) Stats() integration.ActivityStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().Add(-statsWindow)
	var window integration.WindowStats
	for _, r := range t.records {
		if r.Type != integration.ActivityTypeSync || r.Timestamp.Before(cutoff) {
			continue
		}
		window.TotalSyncs++
		if r.Success {
			window.SuccessfulSyncs++
		} else {
			window.FailedSyncs++
		}
		window.OrdersProcessed += r.OrdersProcessed
		window.OrdersFailed += r.OrdersFailed
		if window.LastSyncTime == nil {
			ts := r.Timestamp
			window.LastSyncTime = &ts
		}
	}

	n := min(len(t.records), recentActivityLimit)
	recent := make([]integration.ActivityRecord, n)
	copy(recent, t.records[:n])

	return integration.ActivityStats{
		Last24Hours: window,
		AllTime: integration.AllTimeStats{
			TotalSyncs:      t.totalSyncs,
			OrdersProcessed: t.totalOrdersProcessed,
			StartTime:       t.startTime,
		},
		RecentActivity: recent,
	}
}

// Records returns a copy of the full history, newest first
func (t *ActivityTracker) Records() []integration.ActivityRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]integration.ActivityRecord, len(t.records))
	copy(out, t.records)
	return out
}
