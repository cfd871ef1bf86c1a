package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/siladan/servicedesk/internal/api/dto"
	"github.com/siladan/servicedesk/internal/service"
)

// NotificationsHandler lists the caller's in-app notifications.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	notifications, err := h.service.ListForUser(c.Context(), principal.User.ID, parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, dto.NotificationResponse{
			ID:              n.ID,
			Title:           n.Title,
			Message:         n.Message,
			Severity:        n.Severity,
			RelatedTicketID: n.RelatedTicketID,
			ReadAt:          n.ReadAt,
			CreatedAt:       n.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
