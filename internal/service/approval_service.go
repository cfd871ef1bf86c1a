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
	apperrors "github.com/siladan/servicedesk/pkg/util"
)

// ApprovalService advances service-request approval workflows. A request
// unlocks only after every step is approved; a single rejection is
// terminal.
type ApprovalService struct {
	tickets    repository.TicketRepository
	approvals  repository.ApprovalRepository
	activity   repository.ActivityLogRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ApprovalDependencies bundles collaborators for the approval service.
type ApprovalDependencies struct {
	TicketRepo   repository.TicketRepository
	ApprovalRepo repository.ApprovalRepository
	ActivityRepo repository.ActivityLogRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(deps ApprovalDependencies) *ApprovalService {
	return &ApprovalService{
		tickets:    deps.TicketRepo,
		approvals:  deps.ApprovalRepo,
		activity:   deps.ActivityRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Approve records the actor's approval on their pending step. When the
// last step is approved the ticket unlocks into open/triase; step order
// does not matter.
func (s *ApprovalService) Approve(ctx context.Context, actor *domain.User, ticketID, notes string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	ticket, err := s.loadPendingTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	step, err := s.pendingStep(ctx, ticketID, actor.Role)
	if err != nil {
		return nil, err
	}
	if err := s.approvals.Respond(ctx, step.ID, actor.ID, domain.ApprovalApproved, notes); err != nil {
		return nil, apperrors.MapError(err)
	}

	steps, err := s.approvals.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	allApproved := len(steps) > 0
	for _, st := range steps {
		if st.Status != domain.ApprovalApproved {
			allApproved = false
			break
		}
	}

	if allApproved {
		ticket.Status = domain.TicketStatusOpen
		ticket.Stage = domain.StageTriase
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	s.logActivity(ctx, ticketID, &actor.ID, "approve",
		fmt.Sprintf("Approval level %d granted by role %s", step.Level, actor.Role))
	s.publishResponse(ctx, ticket, &actor.ID, actor.Role, domain.ApprovalApproved, allApproved)
	return ticket, nil
}

// Reject records a rejection. The request is terminally rejected and
// closed; remaining steps are never consulted.
func (s *ApprovalService) Reject(ctx context.Context, actor *domain.User, ticketID, notes string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	if strings.TrimSpace(notes) == "" {
		return nil, apperrors.NewValidationError("rejection notes are required", nil)
	}
	ticket, err := s.loadPendingTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	step, err := s.pendingStep(ctx, ticketID, actor.Role)
	if err != nil {
		return nil, err
	}
	if err := s.approvals.Respond(ctx, step.ID, actor.ID, domain.ApprovalRejected, notes); err != nil {
		return nil, apperrors.MapError(err)
	}

	now := time.Now()
	ticket.Status = domain.TicketStatusRejected
	ticket.ClosedAt = &now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logActivity(ctx, ticketID, &actor.ID, "reject",
		fmt.Sprintf("Rejected at level %d by role %s: %s", step.Level, actor.Role, notes))
	s.publishResponse(ctx, ticket, &actor.ID, actor.Role, domain.ApprovalRejected, false)
	return ticket, nil
}

// Steps lists the workflow for a ticket.
func (s *ApprovalService) Steps(ctx context.Context, ticketID string) ([]domain.ApprovalStep, error) {
	steps, err := s.approvals.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return steps, nil
}

func (s *ApprovalService) loadPendingTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.Status != domain.TicketStatusPendingApproval {
		return nil, apperrors.NewConflict("ticket is not awaiting approval",
			map[string]any{"status": ticket.Status})
	}
	return ticket, nil
}

func (s *ApprovalService) pendingStep(ctx context.Context, ticketID, role string) (*domain.ApprovalStep, error) {
	step, err := s.approvals.GetPendingByRole(ctx, ticketID, role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewForbidden("no pending approval step for your role")
		}
		return nil, apperrors.MapError(err)
	}
	return step, nil
}

func (s *ApprovalService) logActivity(ctx context.Context, ticketID string, userID *string, action, description string) {
	entry := &domain.ActivityLog{
		TicketID:    ticketID,
		UserID:      userID,
		Action:      action,
		Description: description,
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append activity log",
			zap.String("ticket_id", ticketID), zap.String("action", action), zap.Error(err))
	}
}

func (s *ApprovalService) publishResponse(ctx context.Context, ticket *domain.Ticket, actorID *string, role string, status domain.ApprovalStatus, allApproved bool) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventApprovalResponded,
		TicketID:  ticket.ID,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Payload: events.ApprovalRespondedPayload{
			ApproverRole: role,
			Status:       status,
			AllApproved:  allApproved,
		},
	})
}
