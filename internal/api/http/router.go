package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/siladan/servicedesk/internal/api/http/handlers"
	"github.com/siladan/servicedesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Admin          *handlers.AdminHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Permissions    *auth.PermissionCache
}

// RegisterRoutes wires HTTP routes. Per-route permission keys mirror the
// grants stored in roles_config.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/sweeper", cfg.Health.SweepStats)

	app.Post("/auth/login", cfg.Auth.Login)

	// Public portal submission carries no token.
	app.Post("/public/tickets", cfg.Tickets.CreatePublicTicket)

	require := func(permission string) fiber.Handler {
		return auth.RequirePermission(cfg.Permissions, permission)
	}

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/incidents", require("incidents.create"), cfg.Tickets.CreateIncident)
	tickets.Post("/requests", require("requests.create"), cfg.Tickets.CreateServiceRequest)
	tickets.Get("/", require("tickets.read"), cfg.Tickets.ListTickets)
	tickets.Get("/:id", require("tickets.read"), cfg.Tickets.GetTicket)
	// Assign vs. reassign is decided inside the service from the ticket's
	// current assignee; the route only requires authentication.
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/classify", require("tickets.write"), cfg.Tickets.Classify)
	tickets.Post("/:id/progress", require("tickets.update_progress"), cfg.Tickets.UpdateProgress)
	tickets.Post("/:id/merge", require("tickets.write"), cfg.Tickets.Merge)
	tickets.Post("/:id/approve", require("approvals.respond"), cfg.Tickets.Approve)
	tickets.Post("/:id/reject", require("approvals.respond"), cfg.Tickets.Reject)
	tickets.Get("/:id/approvals", require("tickets.read"), cfg.Tickets.ListApprovals)

	app.Get("/catalog", cfg.AuthMiddleware.Handle, require("tickets.read"), cfg.Admin.ListCatalog)
	app.Get("/notifications", cfg.AuthMiddleware.Handle, cfg.Notifications.List)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Get("/units/:unitId/calendar", require("opd.read"), cfg.Admin.GetCalendar)
	admin.Put("/units/:unitId/calendar/days", require("opd.write"), cfg.Admin.UpsertWorkingDay)
	admin.Post("/units/:unitId/calendar/holidays", require("opd.write"), cfg.Admin.AddHoliday)
	admin.Get("/units/:unitId/sla-policies", require("opd.read"), cfg.Admin.ListSLAPolicies)
	admin.Put("/units/:unitId/sla-policies", require("opd.write"), cfg.Admin.UpsertSLAPolicy)
	admin.Post("/rbac/reload", require("rbac.manage"), cfg.Admin.ReloadRBAC)
}
