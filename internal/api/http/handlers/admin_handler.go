package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/siladan/servicedesk/internal/api/dto"
	"github.com/siladan/servicedesk/internal/auth"
	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/repository"
	"github.com/siladan/servicedesk/internal/sla"
	apperrors "github.com/siladan/servicedesk/pkg/util"
)

var validPriorities = map[domain.PriorityCategory]bool{
	domain.PriorityLow:    true,
	domain.PriorityMedium: true,
	domain.PriorityHigh:   true,
	domain.PriorityMajor:  true,
}

// AdminHandler exposes unit configuration: calendars, SLA policies, the
// service catalog and the RBAC cache.
type AdminHandler struct {
	calendars repository.CalendarRepository
	policies  repository.SLAPolicyRepository
	catalog   repository.CatalogRepository
	resolver  *sla.CachedResolver
	rbac      *auth.PermissionCache
}

// NewAdminHandler constructs handler.
func NewAdminHandler(calendars repository.CalendarRepository, policies repository.SLAPolicyRepository, catalog repository.CatalogRepository, resolver *sla.CachedResolver, rbac *auth.PermissionCache) *AdminHandler {
	return &AdminHandler{calendars: calendars, policies: policies, catalog: catalog, resolver: resolver, rbac: rbac}
}

// GetCalendar GET /admin/units/:unitId/calendar.
func (h *AdminHandler) GetCalendar(c *fiber.Ctx) error {
	calendar, err := h.calendars.GetCalendar(c.Context(), c.Params("unitId"))
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.CalendarResponse{
		UnitID:   calendar.UnitID,
		Days:     calendar.Days,
		Holidays: calendar.Holidays,
	}})
}

// UpsertWorkingDay PUT /admin/units/:unitId/calendar/days. Invalidate the
// cached calendar so the next SLA computation sees the change.
func (h *AdminHandler) UpsertWorkingDay(c *fiber.Ctx) error {
	var req dto.WorkingDayRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		return apperrors.NewValidationError("day_of_week must be 0-6", nil)
	}
	if req.IsWorkingDay && (req.StartHour < 0 || req.EndHour > 23 || req.StartHour >= req.EndHour) {
		return apperrors.NewValidationError("start_hour must be before end_hour within 0-23", nil)
	}

	unitID := c.Params("unitId")
	if err := h.calendars.UpsertWorkingDay(c.Context(), unitID, domain.DaySchedule{
		DayOfWeek:    req.DayOfWeek,
		IsWorkingDay: req.IsWorkingDay,
		StartHour:    req.StartHour,
		EndHour:      req.EndHour,
	}); err != nil {
		return apperrors.MapError(err)
	}
	h.resolver.Invalidate(c.Context(), unitID)
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": true}})
}

// AddHoliday POST /admin/units/:unitId/calendar/holidays.
func (h *AdminHandler) AddHoliday(c *fiber.Ctx) error {
	var req dto.HolidayRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return apperrors.NewValidationError("date must be YYYY-MM-DD", nil)
	}

	unitID := c.Params("unitId")
	if err := h.calendars.AddHoliday(c.Context(), unitID, req.Date, req.Name); err != nil {
		return apperrors.MapError(err)
	}
	h.resolver.Invalidate(c.Context(), unitID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"added": req.Date}})
}

// UpsertSLAPolicy PUT /admin/units/:unitId/sla-policies.
func (h *AdminHandler) UpsertSLAPolicy(c *fiber.Ctx) error {
	var req dto.SLAPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if !validPriorities[req.Priority] {
		return apperrors.NewValidationError("unknown priority", map[string]any{"priority": req.Priority})
	}
	if req.ResolutionHours < 0 {
		return apperrors.NewValidationError("resolution_hours must not be negative", nil)
	}

	policy := &domain.SLAPolicy{
		UnitID:          c.Params("unitId"),
		Priority:        req.Priority,
		ResolutionHours: req.ResolutionHours,
		Description:     req.Description,
	}
	if err := h.policies.Upsert(c.Context(), policy); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": slaPolicyResponse(policy)})
}

// ListSLAPolicies GET /admin/units/:unitId/sla-policies.
func (h *AdminHandler) ListSLAPolicies(c *fiber.Ctx) error {
	policies, err := h.policies.ListByUnit(c.Context(), c.Params("unitId"))
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.SLAPolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, slaPolicyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListCatalog GET /catalog.
func (h *AdminHandler) ListCatalog(c *fiber.Ctx) error {
	items, err := h.catalog.List(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}
	out := make([]dto.CatalogItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, dto.CatalogItemResponse{
			ID:               item.ID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Description:      item.Description,
			ApprovalRequired: item.ApprovalRequired,
			ApprovalLevels:   item.ApprovalLevels,
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

// ReloadRBAC POST /admin/rbac/reload re-reads role grants after an edit.
func (h *AdminHandler) ReloadRBAC(c *fiber.Ctx) error {
	if err := h.rbac.Reload(c.Context()); err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"reloaded": true}})
}

func slaPolicyResponse(policy *domain.SLAPolicy) dto.SLAPolicyResponse {
	return dto.SLAPolicyResponse{
		ID:              policy.ID,
		UnitID:          policy.UnitID,
		Priority:        policy.Priority,
		ResolutionHours: policy.ResolutionHours,
		Description:     policy.Description,
		UpdatedAt:       policy.UpdatedAt,
	}
}
