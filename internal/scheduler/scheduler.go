// Package scheduler runs the periodic assignment sweep over pending
// communications.
package scheduler

import (
	"context"
	"errors"

	"casedesk/internal/config"
	"casedesk/internal/logger"
	"casedesk/internal/matching"
	"casedesk/internal/repository"
	"casedesk/internal/service"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type sweepStore interface {
	ListPendingWithHints(ctx context.Context, limit int32) ([]repository.Communication, error)
}

type autoAssigner interface {
	DecideAndAssign(ctx context.Context, communicationID uuid.UUID, caseNumberQuery, debtorNameQuery, actor string) (*repository.Communication, []matching.MatchCandidate, error)
}

type Scheduler struct {
	cron        *cron.Cron
	comms       sweepStore
	assignments autoAssigner
	cronSpec    string
	batchSize   int32
}

func NewScheduler(comms sweepStore, assignments autoAssigner, cfg config.SchedulerConfig) *Scheduler {
	// Second precision so test specs can fire quickly
	c := cron.New(cron.WithSeconds())

	return &Scheduler{
		cron:        c,
		comms:       comms,
		assignments: assignments,
		cronSpec:    cfg.SweepCronSpec,
		batchSize:   cfg.SweepBatchSize,
	}
}

func (s *Scheduler) Start() error {
	logger.Info().Str("cron_spec", s.cronSpec).Msg("Starting assignment sweep scheduler")

	_, err := s.cron.AddFunc(s.cronSpec, func() {
		if err := s.RunSweepNow(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Assignment sweep failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	logger.Info().Msg("Stopping assignment sweep scheduler")
	s.cron.Stop()
}

// RunSweepNow runs one sweep immediately. It retries nothing: a
// communication that cannot be decided this round stays unassigned and is
// picked up again on the next tick.
func (s *Scheduler) RunSweepNow(ctx context.Context) error {
	pending, err := s.comms.ListPendingWithHints(ctx, s.batchSize)
	if err != nil {
		return err
	}

	assigned := 0
	for _, comm := range pending {
		caseNumber, debtorName := "", ""
		if comm.CaseNumberHint != nil {
			caseNumber = *comm.CaseNumberHint
		}
		if comm.DebtorNameHint != nil {
			debtorName = *comm.DebtorNameHint
		}

		updated, _, err := s.assignments.DecideAndAssign(ctx, comm.ID, caseNumber, debtorName, service.SystemActor)
		if err != nil {
			// A concurrent operator action or an empty hint set is
			// expected here, anything else is worth logging.
			if errors.Is(err, service.ErrInvalidQuery) || errors.Is(err, service.ErrInvalidTransition) {
				continue
			}
			logger.Error().Err(err).Str("communication_id", comm.ID.String()).Msg("Sweep could not process communication")
			continue
		}
		if updated.AssignmentStatus == repository.StatusAssigned {
			assigned++
		}
	}

	logger.Info().Int("pending", len(pending)).Int("assigned", assigned).Msg("Assignment sweep finished")
	return nil
}

// Entries returns the scheduled jobs, useful for diagnostics.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
