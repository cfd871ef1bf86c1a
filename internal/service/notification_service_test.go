package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/events"
)

type memNotificationRepo struct {
	created   []domain.Notification
	createErr error
}

func (r *memNotificationRepo) Create(ctx context.Context, notification *domain.Notification) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, *notification)
	return nil
}

func (r *memNotificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range r.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

type memUserRepo struct {
	byUnitRole map[string][]domain.User
	listErr    error
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (r *memUserRepo) ListByUnitAndRole(ctx context.Context, unitID, role string) ([]domain.User, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.byUnitRole[unitID+"|"+role], nil
}

func TestEscalationFansOutToTechnicianAndAdmins(t *testing.T) {
	repo := &memNotificationRepo{}
	users := &memUserRepo{byUnitRole: map[string][]domain.User{
		"unit-1|admin_opd": {{ID: "u-admin-1"}, {ID: "u-admin-2"}},
	}}
	svc := NewNotificationService(repo, users, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	tech := "u-tech"
	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: "t-1",
		Payload: events.TicketEscalatedPayload{
			TicketNumber: "INC-2024-ABC123",
			UnitID:       "unit-1",
			AssignedTo:   &tech,
		},
	})

	if len(repo.created) != 3 {
		t.Fatalf("notifications = %d, expected 3 (technician + 2 admins)", len(repo.created))
	}
	bySeverity := map[domain.NotificationSeverity]int{}
	for _, n := range repo.created {
		bySeverity[n.Severity]++
	}
	if bySeverity[domain.SeverityError] != 1 {
		t.Errorf("technician alerts = %d, expected 1", bySeverity[domain.SeverityError])
	}
	if bySeverity[domain.SeverityWarning] != 2 {
		t.Errorf("admin alerts = %d, expected 2", bySeverity[domain.SeverityWarning])
	}
}

func TestEscalationWithoutAssigneeStillAlertsAdmins(t *testing.T) {
	repo := &memNotificationRepo{}
	users := &memUserRepo{byUnitRole: map[string][]domain.User{
		"unit-1|admin_opd": {{ID: "u-admin-1"}},
	}}
	svc := NewNotificationService(repo, users, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: "t-1",
		Payload: events.TicketEscalatedPayload{
			TicketNumber: "INC-2024-ABC123",
			UnitID:       "unit-1",
		},
	})

	if len(repo.created) != 1 {
		t.Fatalf("notifications = %d, expected 1", len(repo.created))
	}
	if repo.created[0].UserID != "u-admin-1" {
		t.Errorf("recipient = %s, expected the unit admin", repo.created[0].UserID)
	}
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	repo := &memNotificationRepo{createErr: errors.New("insert failed")}
	users := &memUserRepo{byUnitRole: map[string][]domain.User{}}
	svc := NewNotificationService(repo, users, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: "t-1",
		Payload: events.TicketAssignedPayload{
			TicketNumber: "INC-2024-ABC123",
			AssignedTo:   "u-tech",
		},
	})
	if err != nil {
		t.Fatalf("delivery failure must not surface: %v", err)
	}
}

func TestTerminalStatusChangeNotifiesReporter(t *testing.T) {
	repo := &memNotificationRepo{}
	svc := NewNotificationService(repo, &memUserRepo{}, zap.NewNop())
	dispatcher := events.NewInMemoryDispatcher()
	svc.RegisterHandlers(dispatcher)

	reporter := "u-reporter"
	publish := func(status domain.TicketStatus) {
		_ = dispatcher.Publish(context.Background(), events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: "t-1",
			Payload: events.TicketStatusChangedPayload{
				TicketNumber: "INC-2024-ABC123",
				OldStatus:    domain.TicketStatusInProgress,
				NewStatus:    status,
				ReporterID:   &reporter,
			},
		})
	}

	publish(domain.TicketStatusInProgress)
	if len(repo.created) != 0 {
		t.Fatal("non-terminal transitions must not notify the reporter")
	}
	publish(domain.TicketStatusResolved)
	if len(repo.created) != 1 {
		t.Fatalf("notifications = %d, expected 1 after resolution", len(repo.created))
	}
	if repo.created[0].UserID != reporter {
		t.Errorf("recipient = %s, expected the reporter", repo.created[0].UserID)
	}
}
