package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/events"
	"github.com/siladan/servicedesk/internal/repository"
	"github.com/siladan/servicedesk/internal/sla"
	apperrors "github.com/siladan/servicedesk/pkg/util"
)

// PermissionChecker answers role-permission queries. Satisfied by the
// auth permission cache.
type PermissionChecker interface {
	HasPermission(role, permission string) bool
}

// TicketService owns the ticket lifecycle: status, stage, priority and the
// SLA fields. The SLA calculator is pure; this service invokes it and
// persists the results.
type TicketService struct {
	tickets     repository.TicketRepository
	catalog     repository.CatalogRepository
	approvals   repository.ApprovalRepository
	activity    repository.ActivityLogRepository
	calculator  *sla.Calculator
	permissions PermissionChecker
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	CatalogRepo  repository.CatalogRepository
	ApprovalRepo repository.ApprovalRepository
	ActivityRepo repository.ActivityLogRepository
	Calculator   *sla.Calculator
	Permissions  PermissionChecker
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		catalog:     deps.CatalogRepo,
		approvals:   deps.ApprovalRepo,
		activity:    deps.ActivityRepo,
		calculator:  deps.Calculator,
		permissions: deps.Permissions,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// IncidentCreateInput describes internal incident creation.
type IncidentCreateInput struct {
	UnitID      string
	Title       string
	Description string
	Urgency     int
	Impact      int
}

// PublicTicketInput describes tickets submitted through the public portal.
type PublicTicketInput struct {
	UnitID      string
	Title       string
	Description string
}

// RequestCreateInput describes service request creation.
type RequestCreateInput struct {
	UnitID        string
	CatalogItemID string
	Title         string
	Description   string
}

// TicketListInput describes listing filters before role scoping.
type TicketListInput struct {
	Type       *domain.TicketType
	Statuses   []domain.TicketStatus
	Priorities []domain.PriorityCategory
	Limit      int
	Offset     int
}

// Status tokens accepted from callers, resolved against a fixed table.
// Unrecognized tokens are rejected rather than silently ignored.
var statusTokens = map[string]domain.TicketStatus{
	"resolved":         domain.TicketStatusResolved,
	"selesai":          domain.TicketStatusResolved,
	"ditutup":          domain.TicketStatusResolved,
	"in_progress":      domain.TicketStatusInProgress,
	"proses":           domain.TicketStatusInProgress,
	"dikerjakan":       domain.TicketStatusInProgress,
	"pending_approval": domain.TicketStatusPendingApproval,
	"menunggu":         domain.TicketStatusPendingApproval,
	"closed":           domain.TicketStatusClosed,
}

// CreateIncident creates an internally reported incident. The SLA clock
// does not start here; it starts when a technician is assigned.
func (s *TicketService) CreateIncident(ctx context.Context, reporter *domain.User, input IncidentCreateInput) (*domain.Ticket, error) {
	if reporter == nil {
		return nil, apperrors.NewUnauthorized("reporter required")
	}
	urgency, impact := input.Urgency, input.Impact
	if urgency <= 0 {
		urgency = 3
	}
	if impact <= 0 {
		impact = 3
	}
	result := sla.Classify(urgency, impact)

	ticket := &domain.Ticket{
		TicketNumber:  generateTicketNumber(domain.TicketTypeIncident),
		Type:          domain.TicketTypeIncident,
		Source:        domain.TicketSourceInternal,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Status:        domain.TicketStatusOpen,
		Stage:         domain.StageTriase,
		Priority:      result.Category,
		PriorityScore: result.Score,
		Urgency:       urgency,
		Impact:        impact,
		UnitID:        input.UnitID,
		ReporterID:    &reporter.ID,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logActivity(ctx, ticket.ID, &reporter.ID, "create",
		fmt.Sprintf("Incident created with priority %s", ticket.Priority), nil, nil)
	s.publishCreated(ctx, ticket, &reporter.ID)
	return ticket, nil
}

// CreatePublicTicket creates a ticket submitted from the public portal.
// Its SLA clock starts immediately at creation; a failed deadline
// computation never blocks creation.
func (s *TicketService) CreatePublicTicket(ctx context.Context, input PublicTicketInput) (*domain.Ticket, error) {
	now := time.Now()
	result := sla.Classify(3, 3)

	ticket := &domain.Ticket{
		TicketNumber:  generateTicketNumber(domain.TicketTypeIncident),
		Type:          domain.TicketTypeIncident,
		Source:        domain.TicketSourcePublic,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Status:        domain.TicketStatusOpen,
		Stage:         domain.StageTriase,
		Priority:      result.Category,
		PriorityScore: result.Score,
		Urgency:       3,
		Impact:        3,
		UnitID:        input.UnitID,
		SLAStartBasis: &now,
	}

	deadline, err := s.calculator.ComputeDeadline(ctx, input.UnitID, ticket.Priority, now)
	if err != nil {
		s.logger.Warn("sla computation failed on public ticket creation",
			zap.String("unit_id", input.UnitID), zap.Error(err))
		deadline = nil
	}
	if deadline == nil {
		s.logger.Warn("public ticket created without sla deadline",
			zap.String("unit_id", input.UnitID), zap.String("priority", string(ticket.Priority)))
	}
	applyDeadline(ticket, deadline)

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logActivity(ctx, ticket.ID, nil, "create", "Ticket submitted via public portal", nil, nil)
	s.publishCreated(ctx, ticket, nil)
	return ticket, nil
}

// CreateServiceRequest creates a service request from a catalog item.
// Items requiring approval start locked in pending_approval with one
// workflow step per configured approver role.
func (s *TicketService) CreateServiceRequest(ctx context.Context, reporter *domain.User, input RequestCreateInput) (*domain.Ticket, error) {
	if reporter == nil {
		return nil, apperrors.NewUnauthorized("reporter required")
	}
	item, err := s.catalog.GetByID(ctx, input.CatalogItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("catalog item", map[string]any{"catalog_item_id": input.CatalogItemID})
		}
		return nil, apperrors.MapError(err)
	}

	status := domain.TicketStatusOpen
	stage := domain.StageTriase
	if item.ApprovalRequired {
		status = domain.TicketStatusPendingApproval
		stage = domain.StageApproval
	}
	result := sla.Classify(3, 3)

	ticket := &domain.Ticket{
		TicketNumber:  generateTicketNumber(domain.TicketTypeRequest),
		Type:          domain.TicketTypeRequest,
		Source:        domain.TicketSourceInternal,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Status:        status,
		Stage:         stage,
		Priority:      result.Category,
		PriorityScore: result.Score,
		Urgency:       3,
		Impact:        3,
		UnitID:        input.UnitID,
		ReporterID:    &reporter.ID,
		CatalogItemID: &item.ID,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if item.ApprovalRequired && len(item.ApprovalLevels) > 0 {
		steps := make([]domain.ApprovalStep, 0, len(item.ApprovalLevels))
		for i, role := range item.ApprovalLevels {
			steps = append(steps, domain.ApprovalStep{
				TicketID:     ticket.ID,
				Level:        i + 1,
				ApproverRole: role,
			})
		}
		if err := s.approvals.CreateSteps(ctx, steps); err != nil {
			// No cross-call transaction here; compensate by force-closing
			// the half-created request.
			s.logger.Error("failed to create approval workflow; closing request",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			now := time.Now()
			ticket.Status = domain.TicketStatusClosed
			ticket.ClosedAt = &now
			if closeErr := s.tickets.Update(ctx, ticket); closeErr != nil {
				s.logger.Error("compensating close failed", zap.String("ticket_id", ticket.ID), zap.Error(closeErr))
			}
			return nil, apperrors.NewInternalError(err)
		}
	}

	s.logActivity(ctx, ticket.ID, &reporter.ID, "create",
		fmt.Sprintf("Service request created from catalog item %s", item.ItemCode), nil, nil)
	s.publishCreated(ctx, ticket, &reporter.ID)
	return ticket, nil
}

// Assign assigns or reassigns a technician. The SLA clock restarts at the
// assignment instant using the ticket's current priority; a failed
// deadline computation is non-fatal. First assignment requires the
// "tickets.assign" grant, later ones "tickets.reassign".
func (s *TicketService) Assign(ctx context.Context, actor *domain.User, ticketID, technicianID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	isReassign := ticket.AssignedTo != nil
	permission := "tickets.assign"
	if isReassign {
		permission = "tickets.reassign"
	}
	if !s.permissions.HasPermission(actor.Role, permission) {
		return nil, apperrors.NewForbidden("missing permission: " + permission)
	}

	now := time.Now()
	deadline, err := s.calculator.ComputeDeadline(ctx, ticket.UnitID, ticket.Priority, now)
	if err != nil || deadline == nil {
		if err != nil {
			s.logger.Warn("sla computation failed on assignment",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		} else {
			s.logger.Warn("assignment without sla deadline",
				zap.String("ticket_id", ticket.ID),
				zap.String("unit_id", ticket.UnitID),
				zap.String("priority", string(ticket.Priority)))
		}
		deadline = nil
	}

	ticket.AssignedTo = &technicianID
	ticket.Status = domain.TicketStatusAssigned
	ticket.SLAStartBasis = &now
	applyDeadline(ticket, deadline)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	action := "assign"
	description := fmt.Sprintf("Technician assigned to user %s. SLA timer started.", technicianID)
	if isReassign {
		action = "reassign"
		description = fmt.Sprintf("Technician changed to user %s. SLA timer restarted.", technicianID)
	}
	s.logActivity(ctx, ticket.ID, &actor.ID, action, description, nil, nil)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketAssignedPayload{
			TicketNumber: ticket.TicketNumber,
			AssignedTo:   technicianID,
			Reassigned:   isReassign,
			SLADue:       ticket.SLATargetTime,
		},
	})
	return ticket, nil
}

// Classify reclassifies a ticket's urgency/impact and recomputes the SLA
// deadline from the original start basis (assignment time for internal
// tickets, creation time for public ones) — never from "now".
func (s *TicketService) Classify(ctx context.Context, actor *domain.User, ticketID string, urgency, impact int) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if urgency <= 0 || impact <= 0 {
		return nil, apperrors.NewValidationError("urgency and impact are required", nil)
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldPriority := ticket.Priority
	result := sla.Classify(urgency, impact)

	basis := ticket.CreatedAt
	if ticket.SLAStartBasis != nil {
		basis = *ticket.SLAStartBasis
	}
	deadline, err := s.calculator.ComputeDeadline(ctx, ticket.UnitID, result.Category, basis)
	if err != nil {
		s.logger.Warn("sla computation failed on reclassification",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		deadline = nil
	}

	ticket.Urgency = urgency
	ticket.Impact = impact
	ticket.Priority = result.Category
	ticket.PriorityScore = result.Score
	applyDeadline(ticket, deadline)

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	oldValue := string(oldPriority)
	newValue := string(ticket.Priority)
	s.logActivity(ctx, ticket.ID, &actor.ID, "classify",
		fmt.Sprintf("Ticket classified. New priority: %s (U: %d, I: %d)", result.Category, urgency, impact),
		&oldValue, &newValue)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClassified,
		TicketID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketClassifiedPayload{
			OldPriority: oldPriority,
			NewPriority: ticket.Priority,
			Urgency:     urgency,
			Impact:      impact,
		},
	})
	return ticket, nil
}

// UpdateProgress applies a progress update whose status token is resolved
// through the fixed token table. Reaching resolved stamps resolved_at and
// forces the finished stage; reaching closed stamps closed_at.
func (s *TicketService) UpdateProgress(ctx context.Context, actor *domain.User, ticketID, statusToken, description string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	token := strings.ToLower(strings.TrimSpace(statusToken))
	newStatus, ok := statusTokens[token]
	if !ok {
		return nil, apperrors.NewValidationError("unrecognized status token", map[string]any{"status_change": statusToken})
	}

	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	now := time.Now()
	ticket.Status = newStatus
	switch newStatus {
	case domain.TicketStatusResolved:
		ticket.ResolvedAt = &now
		ticket.Stage = domain.StageFinished
	case domain.TicketStatusClosed:
		ticket.ClosedAt = &now
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	oldValue := string(oldStatus)
	newValue := string(newStatus)
	s.logActivity(ctx, ticket.ID, &actor.ID, "progress",
		fmt.Sprintf("Progress update: %s. %s", statusToken, description), &oldValue, &newValue)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketStatusChangedPayload{
			TicketNumber: ticket.TicketNumber,
			OldStatus:    oldStatus,
			NewStatus:    newStatus,
			ReporterID:   ticket.ReporterID,
			Comment:      description,
		},
	})
	return ticket, nil
}

// Merge force-closes the source tickets with a back-reference to the
// target. Merged tickets keep their SLA fields untouched.
func (s *TicketService) Merge(ctx context.Context, actor *domain.User, targetID string, sourceIDs []string, reason string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("actor required")
	}
	if len(sourceIDs) == 0 {
		return apperrors.NewValidationError("source_ticket_ids required", nil)
	}
	target, err := s.getTicket(ctx, targetID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, sourceID := range sourceIDs {
		source, err := s.getTicket(ctx, sourceID)
		if err != nil {
			return err
		}
		source.Status = domain.TicketStatusClosed
		source.ClosedAt = &now
		source.MergedInto = &target.ID
		if err := s.tickets.Update(ctx, source); err != nil {
			return apperrors.MapError(err)
		}
		s.logActivity(ctx, source.ID, &actor.ID, "merge",
			fmt.Sprintf("Merged to ticket %s: %s", target.TicketNumber, reason), nil, nil)
	}

	s.logActivity(ctx, target.ID, &actor.ID, "merge",
		fmt.Sprintf("Received %d merged tickets", len(sourceIDs)), nil, nil)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMerged,
		TicketID: target.ID,
		ActorID:  &actor.ID,
		Payload: events.TicketMergedPayload{
			TargetTicketID: target.ID,
			SourceTicketID: sourceIDs,
			Reason:         reason,
		},
	})
	return nil
}

// GetTicket fetches a ticket with its activity log.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, []domain.ActivityLog, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	logEntries, err := s.activity.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, logEntries, nil
}

// ListTickets lists tickets scoped to what the caller may see: reporters
// see their own, technicians their assignments, unit admins their unit.
func (s *TicketService) ListTickets(ctx context.Context, caller *domain.User, input TicketListInput) ([]domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	filter := repository.TicketFilter{
		Type:       input.Type,
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		Limit:      input.Limit,
		Offset:     input.Offset,
	}
	switch caller.Role {
	case "pengguna":
		filter.ReporterID = &caller.ID
	case "teknisi":
		filter.AssignedTo = &caller.ID
	default:
		if caller.UnitID != nil && !s.permissions.HasPermission(caller.Role, "*") {
			filter.UnitID = caller.UnitID
		}
	}
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func applyDeadline(ticket *domain.Ticket, deadline *domain.Deadline) {
	if deadline == nil {
		ticket.SLADue = nil
		ticket.SLATargetDate = nil
		ticket.SLATargetTime = nil
		return
	}
	due := deadline.Due
	targetDate := deadline.TargetDate
	targetTime := deadline.TargetTime
	ticket.SLADue = &due
	ticket.SLATargetDate = &targetDate
	ticket.SLATargetTime = &targetTime
}

func generateTicketNumber(ticketType domain.TicketType) string {
	prefix := "INC"
	if ticketType == domain.TicketTypeRequest {
		prefix = "REQ"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Year(), suffix)
}

// logActivity appends to the audit trail; failures are logged, never
// propagated.
func (s *TicketService) logActivity(ctx context.Context, ticketID string, userID *string, action, description string, oldValue, newValue *string) {
	entry := &domain.ActivityLog{
		TicketID:    ticketID,
		UserID:      userID,
		Action:      action,
		Description: description,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append activity log",
			zap.String("ticket_id", ticketID), zap.String("action", action), zap.Error(err))
	}
}

func (s *TicketService) publishCreated(ctx context.Context, ticket *domain.Ticket, actorID *string) {
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Type:         ticket.Type,
			Source:       ticket.Source,
			UnitID:       ticket.UnitID,
			Priority:     ticket.Priority,
			Title:        ticket.Title,
		},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
