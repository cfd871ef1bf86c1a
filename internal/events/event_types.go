package events

import (
	"time"

	"github.com/siladan/servicedesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketClassified    EventType = "ticket_classified"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketMerged        EventType = "ticket_merged"
	EventApprovalResponded   EventType = "approval_responded"
)

// Event represents a domain event emitted by services. A nil ActorID means
// the system itself (e.g. the breach sweeper) acted.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                  `json:"ticket_number"`
	Type         domain.TicketType       `json:"type"`
	Source       domain.TicketSource     `json:"source"`
	UnitID       string                  `json:"unit_id"`
	Priority     domain.PriorityCategory `json:"priority"`
	Title        string                  `json:"title"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TicketNumber string  `json:"ticket_number"`
	AssignedTo   string  `json:"assigned_to"`
	Reassigned   bool    `json:"reassigned"`
	SLADue       *string `json:"sla_due,omitempty"`
}

// TicketClassifiedPayload payload.
type TicketClassifiedPayload struct {
	OldPriority domain.PriorityCategory `json:"old_priority"`
	NewPriority domain.PriorityCategory `json:"new_priority"`
	Urgency     int                     `json:"urgency"`
	Impact      int                     `json:"impact"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketNumber string              `json:"ticket_number"`
	OldStatus    domain.TicketStatus `json:"old_status"`
	NewStatus    domain.TicketStatus `json:"new_status"`
	ReporterID   *string             `json:"reporter_id,omitempty"`
	Comment      string              `json:"comment,omitempty"`
}

// TicketEscalatedPayload payload for SLA breach escalations.
type TicketEscalatedPayload struct {
	TicketNumber string  `json:"ticket_number"`
	UnitID       string  `json:"unit_id"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
}

// TicketMergedPayload payload.
type TicketMergedPayload struct {
	TargetTicketID string   `json:"target_ticket_id"`
	SourceTicketID []string `json:"source_ticket_ids"`
	Reason         string   `json:"reason"`
}

// ApprovalRespondedPayload payload.
type ApprovalRespondedPayload struct {
	ApproverRole string                `json:"approver_role"`
	Status       domain.ApprovalStatus `json:"status"`
	AllApproved  bool                  `json:"all_approved"`
}
