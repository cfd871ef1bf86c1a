package domain

import "time"

// TicketType distinguishes incidents from service requests.
type TicketType string

const (
	TicketTypeIncident TicketType = "incident"
	TicketTypeRequest  TicketType = "request"
)

// TicketStatus enumerates the authoritative lifecycle states.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "open"
	TicketStatusAssigned        TicketStatus = "assigned"
	TicketStatusInProgress      TicketStatus = "in_progress"
	TicketStatusPendingApproval TicketStatus = "pending_approval"
	TicketStatusResolved        TicketStatus = "resolved"
	TicketStatusClosed          TicketStatus = "closed"
	TicketStatusRejected        TicketStatus = "rejected"
)

// Terminal reports whether no further work is expected on the ticket.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed || s == TicketStatusRejected
}

// TicketStage is a display-only workflow marker. Status stays authoritative
// for SLA and reporting; stage may carry free-form values from approval flows.
type TicketStage string

const (
	StageTriase       TicketStage = "triase"
	StageVerification TicketStage = "verification"
	StageExecution    TicketStage = "execution"
	StageFinished     TicketStage = "finished"
	StageApproval     TicketStage = "approval_seksi"
)

// TicketSource records how the ticket entered the system. Public tickets
// start their SLA clock at creation; internal ones at first assignment.
type TicketSource string

const (
	TicketSourceInternal TicketSource = "internal"
	TicketSourcePublic   TicketSource = "public"
)

// Ticket is the aggregate for incidents and service requests.
type Ticket struct {
	ID            string
	TicketNumber  string
	Type          TicketType
	Source        TicketSource
	Title         string
	Description   string
	Status        TicketStatus
	Stage         TicketStage
	Priority      PriorityCategory
	PriorityScore int
	Urgency       int
	Impact        int
	UnitID        string
	ReporterID    *string
	AssignedTo    *string
	CatalogItemID *string
	MergedInto    *string

	// SLAStartBasis is the instant the running SLA window was anchored at:
	// assignment time for internal tickets, creation time for public ones.
	// Reclassification recomputes the deadline from this basis, never "now".
	SLAStartBasis *time.Time
	SLADue        *time.Time
	SLATargetDate *string
	SLATargetTime *string
	SLABreached   bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
	ClosedAt   *time.Time
}
