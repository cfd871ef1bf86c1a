package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/events"
	"github.com/siladan/servicedesk/internal/repository"
	"github.com/siladan/servicedesk/internal/sla"
	apperrors "github.com/siladan/servicedesk/pkg/util"
)

type memTicketRepo struct {
	tickets map[string]domain.Ticket
	nextID  int
	updates int
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: map[string]domain.Ticket{}}
}

func (r *memTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.nextID++
	ticket.ID = fmt.Sprintf("t-%d", r.nextID)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.updates++
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := ticket
	return &copied, nil
}

func (r *memTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.ReporterID != nil && (ticket.ReporterID == nil || *ticket.ReporterID != *filter.ReporterID) {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.UnitID != nil && ticket.UnitID != *filter.UnitID {
			continue
		}
		result = append(result, ticket)
	}
	return result, nil
}

func (r *memTicketRepo) ListBreachCandidates(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	return nil, nil
}

func (r *memTicketRepo) MarkBreached(ctx context.Context, ids []string) ([]string, error) {
	return nil, nil
}

func (r *memTicketRepo) seed(ticket domain.Ticket) string {
	r.nextID++
	ticket.ID = fmt.Sprintf("t-%d", r.nextID)
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().Add(-time.Hour)
	}
	r.tickets[ticket.ID] = ticket
	return ticket.ID
}

type memCatalogRepo struct {
	items map[string]domain.CatalogItem
}

func (r *memCatalogRepo) GetByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &item, nil
}

func (r *memCatalogRepo) List(ctx context.Context) ([]domain.CatalogItem, error) {
	var items []domain.CatalogItem
	for _, item := range r.items {
		items = append(items, item)
	}
	return items, nil
}

type memApprovalRepo struct {
	steps     []domain.ApprovalStep
	createErr error
}

func (r *memApprovalRepo) CreateSteps(ctx context.Context, steps []domain.ApprovalStep) error {
	if r.createErr != nil {
		return r.createErr
	}
	for i := range steps {
		steps[i].ID = fmt.Sprintf("s-%d", len(r.steps)+1)
		steps[i].Status = domain.ApprovalPending
		r.steps = append(r.steps, steps[i])
	}
	return nil
}

func (r *memApprovalRepo) GetPendingByRole(ctx context.Context, ticketID, approverRole string) (*domain.ApprovalStep, error) {
	for _, step := range r.steps {
		if step.TicketID == ticketID && step.ApproverRole == approverRole && step.Status == domain.ApprovalPending {
			copied := step
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memApprovalRepo) Respond(ctx context.Context, stepID, approverID string, status domain.ApprovalStatus, notes string) error {
	for i := range r.steps {
		if r.steps[i].ID == stepID && r.steps[i].Status == domain.ApprovalPending {
			now := time.Now()
			r.steps[i].Status = status
			r.steps[i].ApproverID = &approverID
			r.steps[i].Notes = &notes
			r.steps[i].RespondedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memApprovalRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalStep, error) {
	var steps []domain.ApprovalStep
	for _, step := range r.steps {
		if step.TicketID == ticketID {
			steps = append(steps, step)
		}
	}
	return steps, nil
}

type memActivityRepo struct {
	entries []domain.ActivityLog
}

func (r *memActivityRepo) Append(ctx context.Context, entry *domain.ActivityLog) error {
	entry.ID = fmt.Sprintf("log-%d", len(r.entries)+1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memActivityRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.ActivityLog, error) {
	var entries []domain.ActivityLog
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (r *memActivityRepo) actions() []string {
	var actions []string
	for _, entry := range r.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type stubPerms struct {
	grants map[string]bool
}

func (p *stubPerms) HasPermission(role, permission string) bool {
	return p.grants[role+"|"+permission]
}

type stubPolicy struct {
	hours int
	found bool
	err   error
}

func (p *stubPolicy) GetResolutionHours(ctx context.Context, unitID string, priority domain.PriorityCategory) (int, bool, error) {
	return p.hours, p.found, p.err
}

type stubCalendar struct {
	calendar *domain.WorkingCalendar
}

func (c *stubCalendar) Resolve(ctx context.Context, unitID string) (*domain.WorkingCalendar, error) {
	return c.calendar, nil
}

func businessWeekCalendar() *domain.WorkingCalendar {
	days := make([]domain.DaySchedule, 0, 5)
	for dow := 1; dow <= 5; dow++ {
		days = append(days, domain.DaySchedule{DayOfWeek: dow, IsWorkingDay: true, StartHour: 8, EndHour: 17})
	}
	return &domain.WorkingCalendar{UnitID: "unit-1", Days: days}
}

type testEnv struct {
	service  *TicketService
	tickets  *memTicketRepo
	catalog  *memCatalogRepo
	approval *memApprovalRepo
	activity *memActivityRepo
	perms    *stubPerms
	policy   *stubPolicy
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tickets := newMemTicketRepo()
	catalog := &memCatalogRepo{items: map[string]domain.CatalogItem{}}
	approval := &memApprovalRepo{}
	activity := &memActivityRepo{}
	perms := &stubPerms{grants: map[string]bool{}}
	policy := &stubPolicy{hours: 4, found: true}
	calculator := sla.NewCalculator(policy, &stubCalendar{calendar: businessWeekCalendar()}, zap.NewNop())

	svc := NewTicketService(TicketDependencies{
		TicketRepo:   tickets,
		CatalogRepo:  catalog,
		ApprovalRepo: approval,
		ActivityRepo: activity,
		Calculator:   calculator,
		Permissions:  perms,
		Dispatcher:   events.NewInMemoryDispatcher(),
		Logger:       zap.NewNop(),
	})
	return &testEnv{service: svc, tickets: tickets, catalog: catalog, approval: approval, activity: activity, perms: perms, policy: policy}
}

func domainStatus(t *testing.T, err error) int {
	t.Helper()
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	return de.HTTPStatus
}

func TestCreateIncidentDefaults(t *testing.T) {
	env := newTestEnv(t)
	reporter := &domain.User{ID: "u-1", Role: "pengguna"}

	ticket, err := env.service.CreateIncident(context.Background(), reporter, IncidentCreateInput{
		UnitID: "unit-1",
		Title:  "Printer mati",
	})
	if err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}

	if ticket.Urgency != 3 || ticket.Impact != 3 {
		t.Errorf("defaults = (%d, %d), expected (3, 3)", ticket.Urgency, ticket.Impact)
	}
	if ticket.Priority != domain.PriorityMedium || ticket.PriorityScore != 9 {
		t.Errorf("priority = %s/%d, expected medium/9", ticket.Priority, ticket.PriorityScore)
	}
	if ticket.Status != domain.TicketStatusOpen || ticket.Stage != domain.StageTriase {
		t.Errorf("state = %s/%s, expected open/triase", ticket.Status, ticket.Stage)
	}
	if ticket.Source != domain.TicketSourceInternal {
		t.Errorf("source = %s, expected internal", ticket.Source)
	}
	if ticket.SLAStartBasis != nil || ticket.SLADue != nil {
		t.Error("internal incident must not start the SLA clock at creation")
	}
}

func TestCreatePublicTicketStartsClock(t *testing.T) {
	env := newTestEnv(t)

	ticket, err := env.service.CreatePublicTicket(context.Background(), PublicTicketInput{
		UnitID: "unit-1",
		Title:  "Website down",
	})
	if err != nil {
		t.Fatalf("CreatePublicTicket: %v", err)
	}

	if ticket.Source != domain.TicketSourcePublic {
		t.Errorf("source = %s, expected public", ticket.Source)
	}
	if ticket.SLAStartBasis == nil {
		t.Fatal("public ticket must anchor its SLA clock at creation")
	}
	if ticket.SLADue == nil {
		t.Fatal("expected a computed SLA deadline")
	}
}

func TestCreatePublicTicketSurvivesCalculatorFailure(t *testing.T) {
	env := newTestEnv(t)
	env.policy.err = errors.New("storage down")

	ticket, err := env.service.CreatePublicTicket(context.Background(), PublicTicketInput{
		UnitID: "unit-1",
		Title:  "Website down",
	})
	if err != nil {
		t.Fatalf("creation must not fail on sla computation error: %v", err)
	}
	if ticket.SLADue != nil || ticket.SLATargetDate != nil || ticket.SLATargetTime != nil {
		t.Error("sla fields must stay null when the deadline cannot be computed")
	}
}

func TestCreateServiceRequestApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.items["c-1"] = domain.CatalogItem{
		ID:               "c-1",
		ItemCode:         "SRV-EMAIL",
		ApprovalRequired: true,
		ApprovalLevels:   []string{"kepala_seksi", "kepala_bidang"},
	}
	reporter := &domain.User{ID: "u-1", Role: "pengguna"}

	ticket, err := env.service.CreateServiceRequest(context.Background(), reporter, RequestCreateInput{
		UnitID:        "unit-1",
		CatalogItemID: "c-1",
		Title:         "Akun email baru",
	})
	if err != nil {
		t.Fatalf("CreateServiceRequest: %v", err)
	}

	if ticket.Status != domain.TicketStatusPendingApproval {
		t.Errorf("status = %s, expected pending_approval", ticket.Status)
	}
	if ticket.Stage != domain.StageApproval {
		t.Errorf("stage = %s, expected %s", ticket.Stage, domain.StageApproval)
	}
	if len(env.approval.steps) != 2 {
		t.Fatalf("steps created = %d, expected 2", len(env.approval.steps))
	}
	if env.approval.steps[0].Level != 1 || env.approval.steps[1].Level != 2 {
		t.Error("approval steps must be numbered in catalog order")
	}
}

func TestCreateServiceRequestCompensatesOnWorkflowFailure(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.items["c-1"] = domain.CatalogItem{
		ID:               "c-1",
		ItemCode:         "SRV-VPN",
		ApprovalRequired: true,
		ApprovalLevels:   []string{"kepala_seksi"},
	}
	env.approval.createErr = errors.New("insert failed")
	reporter := &domain.User{ID: "u-1", Role: "pengguna"}

	_, err := env.service.CreateServiceRequest(context.Background(), reporter, RequestCreateInput{
		UnitID:        "unit-1",
		CatalogItemID: "c-1",
		Title:         "Akses VPN",
	})
	if err == nil {
		t.Fatal("expected error when workflow creation fails")
	}

	var stranded bool
	for _, ticket := range env.tickets.tickets {
		if ticket.Status != domain.TicketStatusClosed {
			stranded = true
		}
	}
	if stranded {
		t.Error("half-created request was not force-closed")
	}
}

func TestAssignStartsSLAClock(t *testing.T) {
	env := newTestEnv(t)
	env.perms.grants["admin_opd|tickets.assign"] = true
	actor := &domain.User{ID: "u-admin", Role: "admin_opd"}
	id := env.tickets.seed(domain.Ticket{
		Status:   domain.TicketStatusOpen,
		Priority: domain.PriorityMedium,
		UnitID:   "unit-1",
	})

	before := time.Now()
	ticket, err := env.service.Assign(context.Background(), actor, id, "u-tech")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if ticket.Status != domain.TicketStatusAssigned {
		t.Errorf("status = %s, expected assigned", ticket.Status)
	}
	if ticket.AssignedTo == nil || *ticket.AssignedTo != "u-tech" {
		t.Error("technician not recorded")
	}
	if ticket.SLAStartBasis == nil || ticket.SLAStartBasis.Before(before) {
		t.Error("SLA clock must start at the assignment instant")
	}
	if ticket.SLADue == nil {
		t.Error("expected a computed SLA deadline")
	}
	if got := env.activity.actions(); len(got) != 1 || got[0] != "assign" {
		t.Errorf("activity actions = %v, expected [assign]", got)
	}
}

func TestReassignRequiresDistinctPermission(t *testing.T) {
	env := newTestEnv(t)
	env.perms.grants["admin_opd|tickets.assign"] = true
	actor := &domain.User{ID: "u-admin", Role: "admin_opd"}
	firstTech := "u-tech-1"
	id := env.tickets.seed(domain.Ticket{
		Status:     domain.TicketStatusAssigned,
		Priority:   domain.PriorityMedium,
		UnitID:     "unit-1",
		AssignedTo: &firstTech,
	})

	_, err := env.service.Assign(context.Background(), actor, id, "u-tech-2")
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if status := domainStatus(t, err); status != 403 {
		t.Errorf("status = %d, expected 403", status)
	}

	stored, _ := env.tickets.GetByID(context.Background(), id)
	if *stored.AssignedTo != firstTech {
		t.Error("denied reassignment must not change the assignee")
	}
	if env.tickets.updates != 0 {
		t.Error("denied reassignment must not write the ticket")
	}
	if len(env.activity.entries) != 0 {
		t.Error("denied reassignment must not be logged")
	}
}

func TestReassignRestartsClock(t *testing.T) {
	env := newTestEnv(t)
	env.perms.grants["admin_opd|tickets.reassign"] = true
	actor := &domain.User{ID: "u-admin", Role: "admin_opd"}
	firstTech := "u-tech-1"
	oldBasis := time.Now().Add(-48 * time.Hour)
	id := env.tickets.seed(domain.Ticket{
		Status:        domain.TicketStatusAssigned,
		Priority:      domain.PriorityMedium,
		UnitID:        "unit-1",
		AssignedTo:    &firstTech,
		SLAStartBasis: &oldBasis,
	})

	ticket, err := env.service.Assign(context.Background(), actor, id, "u-tech-2")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if *ticket.AssignedTo != "u-tech-2" {
		t.Error("assignee not changed")
	}
	if !ticket.SLAStartBasis.After(oldBasis) {
		t.Error("reassignment must restart the SLA clock")
	}
	if got := env.activity.actions(); len(got) != 1 || got[0] != "reassign" {
		t.Errorf("activity actions = %v, expected [reassign]", got)
	}
}

func TestAssignWithoutPolicyLeavesNullSLA(t *testing.T) {
	env := newTestEnv(t)
	env.perms.grants["admin_opd|tickets.assign"] = true
	env.policy.found = false
	actor := &domain.User{ID: "u-admin", Role: "admin_opd"}
	id := env.tickets.seed(domain.Ticket{
		Status:   domain.TicketStatusOpen,
		Priority: domain.PriorityMedium,
		UnitID:   "unit-1",
	})

	ticket, err := env.service.Assign(context.Background(), actor, id, "u-tech")
	if err != nil {
		t.Fatalf("assignment must succeed without a policy: %v", err)
	}
	if ticket.Status != domain.TicketStatusAssigned {
		t.Errorf("status = %s, expected assigned", ticket.Status)
	}
	if ticket.SLADue != nil || ticket.SLATargetDate != nil || ticket.SLATargetTime != nil {
		t.Error("sla fields must stay null when no policy exists")
	}
}

func TestClassifyRecomputesFromOriginalBasis(t *testing.T) {
	env := newTestEnv(t)
	actor := &domain.User{ID: "u-admin", Role: "admin_opd"}
	// Monday 09:00 inside the 8-17 window; 4 budget hours land at 13:00.
	basis := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	id := env.tickets.seed(domain.Ticket{
		Status:        domain.TicketStatusAssigned,
		Priority:      domain.PriorityLow,
		UnitID:        "unit-1",
		SLAStartBasis: &basis,
	})

	ticket, err := env.service.Classify(context.Background(), actor, id, 4, 3)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if ticket.Priority != domain.PriorityHigh || ticket.PriorityScore != 12 {
		t.Errorf("priority = %s/%d, expected high/12", ticket.Priority, ticket.PriorityScore)
	}
	expected := time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC)
	if ticket.SLADue == nil || !ticket.SLADue.Equal(expected) {
		t.Errorf("sla due = %v, expected %v (computed from the original basis)", ticket.SLADue, expected)
	}
}

func TestClassifyFallsBackToCreatedAt(t *testing.T) {
	env := newTestEnv(t)
	actor := &domain.User{ID: "u-admin", Role: "admin_opd"}
	createdAt := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	id := env.tickets.seed(domain.Ticket{
		Status:    domain.TicketStatusOpen,
		Priority:  domain.PriorityMedium,
		UnitID:    "unit-1",
		CreatedAt: createdAt,
	})

	ticket, err := env.service.Classify(context.Background(), actor, id, 2, 2)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	expected := time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC)
	if ticket.SLADue == nil || !ticket.SLADue.Equal(expected) {
		t.Errorf("sla due = %v, expected %v (computed from created_at)", ticket.SLADue, expected)
	}
}

func TestUpdateProgressTokenMapping(t *testing.T) {
	tests := []struct {
		token          string
		expectedStatus domain.TicketStatus
		stampsResolved bool
		stampsClosed   bool
	}{
		{"resolved", domain.TicketStatusResolved, true, false},
		{"selesai", domain.TicketStatusResolved, true, false},
		{"ditutup", domain.TicketStatusResolved, true, false},
		{"in_progress", domain.TicketStatusInProgress, false, false},
		{"proses", domain.TicketStatusInProgress, false, false},
		{"dikerjakan", domain.TicketStatusInProgress, false, false},
		{"menunggu", domain.TicketStatusPendingApproval, false, false},
		{"PROSES", domain.TicketStatusInProgress, false, false},
		{"closed", domain.TicketStatusClosed, false, true},
	}

	actor := &domain.User{ID: "u-tech", Role: "teknisi"}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			env := newTestEnv(t)
			id := env.tickets.seed(domain.Ticket{
				Status: domain.TicketStatusInProgress,
				UnitID: "unit-1",
			})

			ticket, err := env.service.UpdateProgress(context.Background(), actor, id, tt.token, "pengerjaan")
			if err != nil {
				t.Fatalf("UpdateProgress(%q): %v", tt.token, err)
			}
			if ticket.Status != tt.expectedStatus {
				t.Errorf("status = %s, expected %s", ticket.Status, tt.expectedStatus)
			}
			if tt.stampsResolved {
				if ticket.ResolvedAt == nil {
					t.Error("resolved_at not stamped")
				}
				if ticket.Stage != domain.StageFinished {
					t.Errorf("stage = %s, expected finished", ticket.Stage)
				}
			}
			if tt.stampsClosed && ticket.ClosedAt == nil {
				t.Error("closed_at not stamped")
			}
		})
	}
}

func TestUpdateProgressRejectsUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	actor := &domain.User{ID: "u-tech", Role: "teknisi"}
	id := env.tickets.seed(domain.Ticket{
		Status: domain.TicketStatusInProgress,
		UnitID: "unit-1",
	})

	_, err := env.service.UpdateProgress(context.Background(), actor, id, "done-ish", "")
	if err == nil {
		t.Fatal("unknown token must be rejected")
	}
	if status := domainStatus(t, err); status != 400 {
		t.Errorf("status = %d, expected 400", status)
	}
	stored, _ := env.tickets.GetByID(context.Background(), id)
	if stored.Status != domain.TicketStatusInProgress {
		t.Error("ticket must not change on a rejected token")
	}
}

func TestMergeForceClosesSources(t *testing.T) {
	env := newTestEnv(t)
	actor := &domain.User{ID: "u-admin", Role: "admin_opd"}
	due := time.Now().Add(2 * time.Hour)
	targetID := env.tickets.seed(domain.Ticket{
		TicketNumber: "INC-2024-AAAAAA",
		Status:       domain.TicketStatusInProgress,
		UnitID:       "unit-1",
	})
	sourceID := env.tickets.seed(domain.Ticket{
		Status: domain.TicketStatusOpen,
		UnitID: "unit-1",
		SLADue: &due,
	})

	if err := env.service.Merge(context.Background(), actor, targetID, []string{sourceID}, "duplikat"); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	source, _ := env.tickets.GetByID(context.Background(), sourceID)
	if source.Status != domain.TicketStatusClosed || source.ClosedAt == nil {
		t.Error("source must be force-closed")
	}
	if source.MergedInto == nil || *source.MergedInto != targetID {
		t.Error("source must reference the merge target")
	}
	if source.SLADue == nil || !source.SLADue.Equal(due) {
		t.Error("merge must not touch the source's SLA fields")
	}
}
