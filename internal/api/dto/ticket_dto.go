package dto

import (
	"time"

	"github.com/siladan/servicedesk/internal/domain"
)

// CreateIncidentRequest is the payload for internal incident creation.
type CreateIncidentRequest struct {
	UnitID      string `json:"unit_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Urgency     int    `json:"urgency"`
	Impact      int    `json:"impact"`
}

// CreatePublicTicketRequest is the unauthenticated portal payload.
type CreatePublicTicketRequest struct {
	UnitID      string `json:"unit_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateServiceRequestRequest is the payload for catalog-based requests.
type CreateServiceRequestRequest struct {
	UnitID        string `json:"unit_id"`
	CatalogItemID string `json:"catalog_item_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
}

// AssignRequest names the technician to assign.
type AssignRequest struct {
	AssignedTo string `json:"assigned_to"`
}

// ClassifyRequest carries the urgency/impact pair.
type ClassifyRequest struct {
	Urgency int `json:"urgency"`
	Impact  int `json:"impact"`
}

// ProgressRequest carries a progress update.
type ProgressRequest struct {
	StatusChange string `json:"status_change"`
	Description  string `json:"description"`
}

// MergeRequest names the duplicates folded into the target ticket.
type MergeRequest struct {
	SourceTicketIDs []string `json:"source_ticket_ids"`
	Reason          string   `json:"reason"`
}

// ApprovalDecisionRequest carries approval/rejection notes.
type ApprovalDecisionRequest struct {
	Notes string `json:"notes"`
}

// TicketResponse is the list/summary shape.
type TicketResponse struct {
	ID            string                  `json:"id"`
	TicketNumber  string                  `json:"ticket_number"`
	Type          domain.TicketType       `json:"type"`
	Source        domain.TicketSource     `json:"source"`
	Title         string                  `json:"title"`
	Status        domain.TicketStatus     `json:"status"`
	Stage         domain.TicketStage      `json:"stage"`
	Priority      domain.PriorityCategory `json:"priority"`
	PriorityScore int                     `json:"priority_score"`
	UnitID        string                  `json:"unit_id"`
	AssignedTo    *string                 `json:"assigned_to,omitempty"`
	SLADue        *time.Time              `json:"sla_due,omitempty"`
	SLATargetDate *string                 `json:"sla_target_date,omitempty"`
	SLATargetTime *string                 `json:"sla_target_time,omitempty"`
	SLABreached   bool                    `json:"sla_breached"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// TicketDetailResponse adds description, lifecycle stamps and the audit
// trail.
type TicketDetailResponse struct {
	TicketResponse
	Description string                `json:"description"`
	Urgency     int                   `json:"urgency"`
	Impact      int                   `json:"impact"`
	ReporterID  *string               `json:"reporter_id,omitempty"`
	MergedInto  *string               `json:"merged_into,omitempty"`
	ResolvedAt  *time.Time            `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time            `json:"closed_at,omitempty"`
	Logs        []ActivityLogResponse `json:"logs"`
}

// ActivityLogResponse is one audit trail entry.
type ActivityLogResponse struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id,omitempty"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	OldValue    *string   `json:"old_value,omitempty"`
	NewValue    *string   `json:"new_value,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ApprovalStepResponse is one approval workflow level.
type ApprovalStepResponse struct {
	ID           string                `json:"id"`
	Level        int                   `json:"level"`
	ApproverRole string                `json:"approver_role"`
	ApproverID   *string               `json:"approver_id,omitempty"`
	Status       domain.ApprovalStatus `json:"status"`
	Notes        *string               `json:"notes,omitempty"`
	RespondedAt  *time.Time            `json:"responded_at,omitempty"`
}

// NotificationResponse is an in-app notification.
type NotificationResponse struct {
	ID              string                      `json:"id"`
	Title           string                      `json:"title"`
	Message         string                      `json:"message"`
	Severity        domain.NotificationSeverity `json:"severity"`
	RelatedTicketID *string                     `json:"related_ticket_id,omitempty"`
	ReadAt          *time.Time                  `json:"read_at,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
}

// CatalogItemResponse is a service catalog entry.
type CatalogItemResponse struct {
	ID               string   `json:"id"`
	ItemCode         string   `json:"item_code"`
	ItemName         string   `json:"item_name"`
	Description      string   `json:"description"`
	ApprovalRequired bool     `json:"approval_required"`
	ApprovalLevels   []string `json:"approval_levels,omitempty"`
}
