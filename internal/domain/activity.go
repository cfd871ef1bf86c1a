package domain

import "time"

// ActivityLog is an immutable audit entry appended on every mutating
// ticket transition. Entries are never updated or deleted.
type ActivityLog struct {
	ID          string
	TicketID    string
	UserID      *string
	Action      string
	Description string
	OldValue    *string
	NewValue    *string
	CreatedAt   time.Time
}

// NotificationSeverity classifies a notification for display.
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "info"
	SeverityWarning NotificationSeverity = "warning"
	SeverityError   NotificationSeverity = "error"
)

// Notification is an in-app alert delivered to a single user.
type Notification struct {
	ID              string
	UserID          string
	Title           string
	Message         string
	Severity        NotificationSeverity
	RelatedTicketID *string
	ReadAt          *time.Time
	CreatedAt       time.Time
}
