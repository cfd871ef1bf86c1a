package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/events"
	"github.com/siladan/servicedesk/internal/repository"
	apperrors "github.com/siladan/servicedesk/pkg/util"
)

const unitAdminRole = "admin_opd"

// NotificationService turns domain events into in-app notifications.
// Delivery failures are logged and never surface to the emitting flow.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	logger        *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(notifications repository.NotificationRepository, users repository.UserRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		logger:        logger,
	}
}

// RegisterHandlers subscribes to the events that produce notifications.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, s.onTicketCreated)
	dispatcher.Subscribe(events.EventTicketAssigned, s.onTicketAssigned)
	dispatcher.Subscribe(events.EventTicketStatusChanged, s.onTicketStatusChanged)
	dispatcher.Subscribe(events.EventTicketEscalated, s.onTicketEscalated)
}

// ListForUser returns the newest notifications for a user.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	notifications, err := s.notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return notifications, nil
}

// onTicketCreated tells unit admins about new public submissions; internal
// reporters see their own tickets already.
func (s *NotificationService) onTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || payload.Source != domain.TicketSourcePublic {
		return nil
	}
	admins, err := s.users.ListByUnitAndRole(ctx, payload.UnitID, unitAdminRole)
	if err != nil {
		s.logger.Warn("failed to resolve unit admins for new public ticket",
			zap.String("unit_id", payload.UnitID), zap.Error(err))
		return nil
	}
	for _, admin := range admins {
		s.deliver(ctx, &domain.Notification{
			UserID:          admin.ID,
			Title:           "Tiket Publik Baru",
			Message:         fmt.Sprintf("Tiket %s masuk dari portal publik: %s", payload.TicketNumber, payload.Title),
			Severity:        domain.SeverityInfo,
			RelatedTicketID: &event.TicketID,
		})
	}
	return nil
}

func (s *NotificationService) onTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	title := "Tiket Baru Ditugaskan"
	if payload.Reassigned {
		title = "Tiket Dialihkan Kepada Anda"
	}
	s.deliver(ctx, &domain.Notification{
		UserID:          payload.AssignedTo,
		Title:           title,
		Message:         fmt.Sprintf("Anda ditugaskan pada tiket %s", payload.TicketNumber),
		Severity:        domain.SeverityInfo,
		RelatedTicketID: &event.TicketID,
	})
	return nil
}

// onTicketStatusChanged tells the reporter when their ticket reaches a
// terminal status.
func (s *NotificationService) onTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || payload.ReporterID == nil || !payload.NewStatus.Terminal() {
		return nil
	}
	s.deliver(ctx, &domain.Notification{
		UserID:          *payload.ReporterID,
		Title:           "Status Tiket Diperbarui",
		Message:         fmt.Sprintf("Tiket %s kini berstatus %s", payload.TicketNumber, payload.NewStatus),
		Severity:        domain.SeverityInfo,
		RelatedTicketID: &event.TicketID,
	})
	return nil
}

// onTicketEscalated alerts the assigned technician and every unit admin
// when the breach sweeper flags a ticket.
func (s *NotificationService) onTicketEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		return nil
	}

	if payload.AssignedTo != nil {
		s.deliver(ctx, &domain.Notification{
			UserID:          *payload.AssignedTo,
			Title:           "SLA BREACH ALERT",
			Message:         fmt.Sprintf("Tiket %s telah melewati batas waktu SLA", payload.TicketNumber),
			Severity:        domain.SeverityError,
			RelatedTicketID: &event.TicketID,
		})
	}

	admins, err := s.users.ListByUnitAndRole(ctx, payload.UnitID, unitAdminRole)
	if err != nil {
		s.logger.Warn("failed to resolve unit admins for escalation",
			zap.String("unit_id", payload.UnitID), zap.Error(err))
		return nil
	}
	for _, admin := range admins {
		s.deliver(ctx, &domain.Notification{
			UserID:          admin.ID,
			Title:           "ESKALASI TIKET",
			Message:         fmt.Sprintf("Tiket %s di unit Anda melanggar SLA dan dieskalasi", payload.TicketNumber),
			Severity:        domain.SeverityWarning,
			RelatedTicketID: &event.TicketID,
		})
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, notification *domain.Notification) {
	if err := s.notifications.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.String("user_id", notification.UserID),
			zap.String("title", notification.Title),
			zap.Error(err))
	}
}
