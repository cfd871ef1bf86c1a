package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/events"
)

func newApprovalEnv(t *testing.T) (*ApprovalService, *memTicketRepo, *memApprovalRepo) {
	t.Helper()
	tickets := newMemTicketRepo()
	approvals := &memApprovalRepo{}
	svc := NewApprovalService(ApprovalDependencies{
		TicketRepo:   tickets,
		ApprovalRepo: approvals,
		ActivityRepo: &memActivityRepo{},
		Dispatcher:   events.NewInMemoryDispatcher(),
		Logger:       zap.NewNop(),
	})
	return svc, tickets, approvals
}

func seedPendingRequest(tickets *memTicketRepo, approvals *memApprovalRepo, roles ...string) string {
	id := tickets.seed(domain.Ticket{
		Type:   domain.TicketTypeRequest,
		Status: domain.TicketStatusPendingApproval,
		Stage:  domain.StageApproval,
		UnitID: "unit-1",
	})
	steps := make([]domain.ApprovalStep, 0, len(roles))
	for i, role := range roles {
		steps = append(steps, domain.ApprovalStep{TicketID: id, Level: i + 1, ApproverRole: role})
	}
	_ = approvals.CreateSteps(context.Background(), steps)
	return id
}

func TestApproveUnlocksAfterLastStep(t *testing.T) {
	// Approval order must not matter; run both orders.
	orders := [][]string{
		{"kepala_seksi", "kepala_bidang"},
		{"kepala_bidang", "kepala_seksi"},
	}
	for _, order := range orders {
		svc, tickets, approvals := newApprovalEnv(t)
		id := seedPendingRequest(tickets, approvals, "kepala_seksi", "kepala_bidang")

		first := &domain.User{ID: "u-1", Role: order[0]}
		ticket, err := svc.Approve(context.Background(), first, id, "ok")
		if err != nil {
			t.Fatalf("first approval: %v", err)
		}
		if ticket.Status != domain.TicketStatusPendingApproval {
			t.Errorf("after first approval status = %s, expected pending_approval", ticket.Status)
		}

		second := &domain.User{ID: "u-2", Role: order[1]}
		ticket, err = svc.Approve(context.Background(), second, id, "ok")
		if err != nil {
			t.Fatalf("second approval: %v", err)
		}
		if ticket.Status != domain.TicketStatusOpen {
			t.Errorf("after last approval status = %s, expected open", ticket.Status)
		}
		if ticket.Stage != domain.StageTriase {
			t.Errorf("after last approval stage = %s, expected triase", ticket.Stage)
		}
	}
}

func TestApproveWithoutPendingStepForbidden(t *testing.T) {
	svc, tickets, approvals := newApprovalEnv(t)
	id := seedPendingRequest(tickets, approvals, "kepala_seksi")

	intruder := &domain.User{ID: "u-9", Role: "teknisi"}
	_, err := svc.Approve(context.Background(), intruder, id, "ok")
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if status := domainStatus(t, err); status != 403 {
		t.Errorf("status = %d, expected 403", status)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	svc, tickets, approvals := newApprovalEnv(t)
	id := seedPendingRequest(tickets, approvals, "kepala_seksi", "kepala_bidang")

	approver := &domain.User{ID: "u-1", Role: "kepala_seksi"}
	ticket, err := svc.Reject(context.Background(), approver, id, "anggaran tidak tersedia")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if ticket.Status != domain.TicketStatusRejected {
		t.Errorf("status = %s, expected rejected", ticket.Status)
	}
	if ticket.ClosedAt == nil {
		t.Error("rejection must stamp closed_at")
	}

	// A later approval attempt hits the conflict guard.
	other := &domain.User{ID: "u-2", Role: "kepala_bidang"}
	if _, err := svc.Approve(context.Background(), other, id, "ok"); err == nil {
		t.Error("approvals after rejection must fail")
	}
}

func TestRejectRequiresNotes(t *testing.T) {
	svc, tickets, approvals := newApprovalEnv(t)
	id := seedPendingRequest(tickets, approvals, "kepala_seksi")

	approver := &domain.User{ID: "u-1", Role: "kepala_seksi"}
	_, err := svc.Reject(context.Background(), approver, id, "   ")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if status := domainStatus(t, err); status != 400 {
		t.Errorf("status = %d, expected 400", status)
	}
}
