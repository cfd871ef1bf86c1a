package domain

import "time"

// ApprovalStatus is the state of a single approval step.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalStep is one level of a service request's approval workflow.
// Steps are ordered by Level; each approver role responds at most once.
type ApprovalStep struct {
	ID           string
	TicketID     string
	Level        int
	ApproverRole string
	ApproverID   *string
	Status       ApprovalStatus
	Notes        *string
	RespondedAt  *time.Time
	CreatedAt    time.Time
}

// CatalogItem is a service catalog entry. ApprovalLevels lists approver
// roles in workflow order for items that require approval.
type CatalogItem struct {
	ID               string
	ItemCode         string
	ItemName         string
	Description      string
	UnitID           *string
	ApprovalRequired bool
	ApprovalLevels   []string
	CreatedAt        time.Time
}
