package integration

import (
	"strings"
	"time"

	"github.com/erp/connector/internal/domain/integration"
)

// OrderPredicate decides whether a source order is eligible for sync
type OrderPredicate func(order integration.SourceOrder) bool

// NamedPredicate is an OrderPredicate with a label for logging
type NamedPredicate struct {
	Name      string
	Predicate OrderPredicate
}

// FilterCriteria configures the filter pipeline for one sync run
type FilterCriteria struct {
	// Statuses is the case-insensitive status allow-list
	Statuses []string
	// From is the inclusive lower bound of the sale date
	From time.Time
	// To is the inclusive upper bound of the sale date; zero means unbounded
	To time.Time
	// Channel is matched against the user-defined fields; empty disables the filter
	Channel string
}

// StatusFilter keeps orders whose status is in the allow-list, ignoring case.
// Orders with a blank status never match.
func StatusFilter(statuses []string) OrderPredicate {
	allowed := make(map[string]struct{}, len(statuses))
	for _, s := range statuses {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			allowed[s] = struct{}{}
		}
	}
	return func(order integration.SourceOrder) bool {
		status := strings.ToLower(strings.TrimSpace(order.Status))
		if status == "" {
			return false
		}
		_, ok := allowed[status]
		return ok
	}
}

// DateRangeFilter keeps orders sold on or after from and, when to is set, on or
// before to. Orders without a parseable sale date are dropped.
func DateRangeFilter(from, to time.Time) OrderPredicate {
	return func(order integration.SourceOrder) bool {
		sold, ok := order.ParsedOrderDate()
		if !ok {
			return false
		}
		if sold.Before(from) {
			return false
		}
		return to.IsZero() || !sold.After(to)
	}
}

// ChannelFilter keeps orders carrying the channel tag in any user-defined field
func ChannelFilter(channel string) OrderPredicate {
	want := strings.ToUpper(strings.TrimSpace(channel))
	return func(order integration.SourceOrder) bool {
		for _, field := range order.Raw.UserDefined {
			if strings.ToUpper(strings.TrimSpace(field)) == want {
				return true
			}
		}
		return false
	}
}

// Pipeline builds the predicates for the criteria in their fixed order:
// status, then date, then channel when one is configured.
func (c FilterCriteria) Pipeline() []NamedPredicate {
	pipeline := []NamedPredicate{
		{Name: "status", Predicate: StatusFilter(c.Statuses)},
		{Name: "date", Predicate: DateRangeFilter(c.From, c.To)},
	}
	if strings.TrimSpace(c.Channel) != "" {
		pipeline = append(pipeline, NamedPredicate{Name: "channel", Predicate: ChannelFilter(c.Channel)})
	}
	return pipeline
}

// ApplyFilter returns the orders matching the predicate, preserving order
func ApplyFilter(orders []integration.SourceOrder, keep OrderPredicate) []integration.SourceOrder {
	kept := make([]integration.SourceOrder, 0, len(orders))
	for _, order := range orders {
		if keep(order) {
			kept = append(kept, order)
		}
	}
	return kept
}

// DaysBackCutoff returns the start of the rolling window ending at now
func DaysBackCutoff(now time.Time, daysBack int) time.Time {
	return now.AddDate(0, 0, -daysBack)
}
