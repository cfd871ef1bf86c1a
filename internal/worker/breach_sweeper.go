package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/siladan/servicedesk/internal/domain"
	"github.com/siladan/servicedesk/internal/events"
	"github.com/siladan/servicedesk/internal/observability"
)

// BreachStore is the slice of ticket persistence the sweeper needs.
// MarkBreached re-checks the breach filter at write time and returns only
// the IDs it actually flagged, so a ticket resolved between scan and
// write is silently skipped.
type BreachStore interface {
	ListBreachCandidates(ctx context.Context, now time.Time) ([]domain.Ticket, error)
	MarkBreached(ctx context.Context, ids []string) ([]string, error)
}

// ActivityAppender records escalation entries on the audit trail.
type ActivityAppender interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
}

// BreachSweeper periodically flags tickets whose SLA deadline passed and
// escalates them. Runs are idempotent: already-flagged tickets never
// match the candidate query again.
type BreachSweeper struct {
	store      BreachStore
	activity   ActivityAppender
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cron       *cron.Cron
}

// NewBreachSweeper constructs the sweeper.
func NewBreachSweeper(store BreachStore, activity ActivityAppender, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *BreachSweeper {
	return &BreachSweeper{
		store:      store,
		activity:   activity,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start schedules sweeps on the given cron spec and returns after the
// schedule is installed. Stop cancels it.
func (s *BreachSweeper) Start(ctx context.Context, spec string) error {
	runner := cron.New()
	_, err := runner.AddFunc(spec, func() {
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("breach sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep cron spec %q: %w", spec, err)
	}
	runner.Start()
	s.cron = runner
	s.logger.Info("breach sweeper scheduled", zap.String("spec", spec))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *BreachSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep executes one pass: scan candidates, flag them in a single guarded
// update, then escalate each flagged ticket. Escalation failures are
// isolated per ticket; one bad ticket never blocks the rest.
func (s *BreachSweeper) Sweep(ctx context.Context) error {
	now := time.Now()
	candidates, err := s.store.ListBreachCandidates(ctx, now)
	if err != nil {
		return fmt.Errorf("list breach candidates: %w", err)
	}
	if len(candidates) == 0 {
		s.metrics.RecordSweep(0)
		return nil
	}

	ids := make([]string, 0, len(candidates))
	byID := make(map[string]domain.Ticket, len(candidates))
	for _, ticket := range candidates {
		ids = append(ids, ticket.ID)
		byID[ticket.ID] = ticket
	}

	flagged, err := s.store.MarkBreached(ctx, ids)
	if err != nil {
		return fmt.Errorf("mark breached: %w", err)
	}
	s.metrics.RecordSweep(len(flagged))
	if len(flagged) == 0 {
		return nil
	}

	s.logger.Warn("sla breaches detected",
		zap.Int("candidates", len(candidates)),
		zap.Int("flagged", len(flagged)))

	for _, id := range flagged {
		ticket := byID[id]
		s.escalate(ctx, ticket)
	}
	return nil
}

func (s *BreachSweeper) escalate(ctx context.Context, ticket domain.Ticket) {
	entry := &domain.ActivityLog{
		TicketID:    ticket.ID,
		Action:      "escalate",
		Description: fmt.Sprintf("SLA deadline missed for ticket %s; escalated", ticket.TicketNumber),
	}
	if err := s.activity.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to log escalation",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketEscalated,
		TicketID:  ticket.ID,
		Timestamp: time.Now(),
		Payload: events.TicketEscalatedPayload{
			TicketNumber: ticket.TicketNumber,
			UnitID:       ticket.UnitID,
			AssignedTo:   ticket.AssignedTo,
		},
	})
}
