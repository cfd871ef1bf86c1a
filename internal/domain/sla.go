package domain

import "time"

// PriorityCategory buckets the urgency x impact score.
type PriorityCategory string

const (
	PriorityLow    PriorityCategory = "low"
	PriorityMedium PriorityCategory = "medium"
	PriorityHigh   PriorityCategory = "high"
	PriorityMajor  PriorityCategory = "major"
)

// PriorityResult is the outcome of classifying an urgency/impact pair.
type PriorityResult struct {
	Score    int
	Category PriorityCategory
}

// SLAPolicy maps (unit, priority) to a resolution budget in working hours.
// At most one policy exists per pair; writes use upsert semantics.
type SLAPolicy struct {
	ID              string
	UnitID          string
	Priority        PriorityCategory
	ResolutionHours int
	Description     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Deadline is a computed SLA due instant with its date and time components
// split out for storage.
type Deadline struct {
	Due        time.Time
	TargetDate string
	TargetTime string
}
