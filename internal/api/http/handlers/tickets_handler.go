package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/siladan/servicedesk/internal/api/dto"
	"github.com/siladan/servicedesk/internal/auth"
	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/service"
	apperrors "github.com/siladan/servicedesk/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets   *service.TicketService
	approvals *service.ApprovalService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, approvals *service.ApprovalService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, approvals: approvals}
}

// CreateIncident POST /tickets/incidents.
func (h *TicketsHandler) CreateIncident(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UnitID == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("unit_id and title required", nil)
	}

	ticket, err := h.tickets.CreateIncident(c.Context(), principal.User, service.IncidentCreateInput{
		UnitID:      req.UnitID,
		Title:       req.Title,
		Description: req.Description,
		Urgency:     req.Urgency,
		Impact:      req.Impact,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CreatePublicTicket POST /public/tickets. No authentication.
func (h *TicketsHandler) CreatePublicTicket(c *fiber.Ctx) error {
	var req dto.CreatePublicTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UnitID == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("unit_id and title required", nil)
	}

	ticket, err := h.tickets.CreatePublicTicket(c.Context(), service.PublicTicketInput{
		UnitID:      req.UnitID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CreateServiceRequest POST /tickets/requests.
func (h *TicketsHandler) CreateServiceRequest(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateServiceRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UnitID == "" || req.CatalogItemID == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("unit_id, catalog_item_id and title required", nil)
	}

	ticket, err := h.tickets.CreateServiceRequest(c.Context(), principal.User, service.RequestCreateInput{
		UnitID:        req.UnitID,
		CatalogItemID: req.CatalogItemID,
		Title:         req.Title,
		Description:   req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.Context(), principal.User, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	if _, err := requirePrincipal(c); err != nil {
		return err
	}
	ticket, logs, err := h.tickets.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, logs)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssignedTo == "" {
		return apperrors.NewValidationError("assigned_to required", nil)
	}

	ticket, err := h.tickets.Assign(c.Context(), principal.User, c.Params("id"), req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Classify POST /tickets/:id/classify.
func (h *TicketsHandler) Classify(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.tickets.Classify(c.Context(), principal.User, c.Params("id"), req.Urgency, req.Impact)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateProgress POST /tickets/:id/progress.
func (h *TicketsHandler) UpdateProgress(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.StatusChange == "" {
		return apperrors.NewValidationError("status_change required", nil)
	}

	ticket, err := h.tickets.UpdateProgress(c.Context(), principal.User, c.Params("id"), req.StatusChange, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Merge POST /tickets/:id/merge.
func (h *TicketsHandler) Merge(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.MergeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.tickets.Merge(c.Context(), principal.User, c.Params("id"), req.SourceTicketIDs, req.Reason); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"merged": len(req.SourceTicketIDs)}})
}

// Approve POST /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ApprovalDecisionRequest
	_ = c.BodyParser(&req)

	ticket, err := h.approvals.Approve(c.Context(), principal.User, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ApprovalDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.approvals.Reject(c.Context(), principal.User, c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListApprovals GET /tickets/:id/approvals.
func (h *TicketsHandler) ListApprovals(c *fiber.Ctx) error {
	if _, err := requirePrincipal(c); err != nil {
		return err
	}
	steps, err := h.approvals.Steps(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ApprovalStepResponse, 0, len(steps))
	for _, step := range steps {
		items = append(items, dto.ApprovalStepResponse{
			ID:           step.ID,
			Level:        step.Level,
			ApproverRole: step.ApproverRole,
			ApproverID:   step.ApproverID,
			Status:       step.Status,
			Notes:        step.Notes,
			RespondedAt:  step.RespondedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal, nil
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListInput {
	input := service.TicketListInput{}
	if typeStr := c.Query("type"); typeStr != "" {
		ticketType := domain.TicketType(typeStr)
		input.Type = &ticketType
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			input.Statuses = append(input.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			input.Priorities = append(input.Priorities, domain.PriorityCategory(strings.TrimSpace(part)))
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	input.Offset = (page - 1) * pageSize
	input.Limit = pageSize
	return input
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:            ticket.ID,
		TicketNumber:  ticket.TicketNumber,
		Type:          ticket.Type,
		Source:        ticket.Source,
		Title:         ticket.Title,
		Status:        ticket.Status,
		Stage:         ticket.Stage,
		Priority:      ticket.Priority,
		PriorityScore: ticket.PriorityScore,
		UnitID:        ticket.UnitID,
		AssignedTo:    ticket.AssignedTo,
		SLADue:        ticket.SLADue,
		SLATargetDate: ticket.SLATargetDate,
		SLATargetTime: ticket.SLATargetTime,
		SLABreached:   ticket.SLABreached,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, logs []domain.ActivityLog) dto.TicketDetailResponse {
	entries := make([]dto.ActivityLogResponse, 0, len(logs))
	for _, entry := range logs {
		entries = append(entries, dto.ActivityLogResponse{
			ID:          entry.ID,
			UserID:      entry.UserID,
			Action:      entry.Action,
			Description: entry.Description,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return dto.TicketDetailResponse{
		TicketResponse: ticketResponse(ticket),
		Description:    ticket.Description,
		Urgency:        ticket.Urgency,
		Impact:         ticket.Impact,
		ReporterID:     ticket.ReporterID,
		MergedInto:     ticket.MergedInto,
		ResolvedAt:     ticket.ResolvedAt,
		ClosedAt:       ticket.ClosedAt,
		Logs:           entries,
	}
}
