package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// Award is one credit to a user's ecoScore and credits.
type Award struct {
	UserID      string
	Points      int
	Type        models.ActivityType
	Description string
	// Mission, when set, is written in the same transaction, conditional on its stored status
	// being one of MissionFrom.
	Mission     *models.Mission
	MissionFrom []models.MissionStatus
}

// ILedgerService is the only path through which ecoScore and credits change.
type ILedgerService interface {
	// AwardPoints applies the award atomically, then schedules badge evaluation.
	AwardPoints(ctx context.Context, a Award) (*models.ActivityLogEntry, error)
	// Credit applies the award's writes. Callers run it inside their own transaction and are
	// responsible for scheduling badge evaluation after commit.
	Credit(ctx context.Context, a Award) (*models.ActivityLogEntry, error)
	// EvaluateBadgesLater schedules badge evaluation. Failures are logged, never returned.
	EvaluateBadgesLater(ctx context.Context, userID string)
}

type ledgerService struct {
	store  store.Store
	queue  TaskQueue
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewLedgerService(st store.Store, queue TaskQueue, clock clockwork.Clock, logger *zap.Logger) ILedgerService {
	return &ledgerService{store: st, queue: queue, clock: clock, logger: logger}
}

func (s *ledgerService) AwardPoints(ctx context.Context, a Award) (*models.ActivityLogEntry, error) {
	var entry *models.ActivityLogEntry
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.Credit(ctx, a)
		return err
	})
	if err != nil {
		return nil, ledgerError(err)
	}
	s.logger.Info("Points awarded",
		zap.String("userID", a.UserID),
		zap.Int("points", a.Points),
		zap.String("type", string(a.Type)),
		zap.String("missionID", entry.MissionID))
	s.EvaluateBadgesLater(ctx, a.UserID)
	return entry, nil
}

func (s *ledgerService) Credit(ctx context.Context, a Award) (*models.ActivityLogEntry, error) {
	if a.Points < 0 {
		return nil, apperr.Validation("points must not be negative")
	}
	if a.UserID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if err := s.store.Users().AddPoints(ctx, a.UserID, a.Points); err != nil {
		return nil, err
	}
	entry := &models.ActivityLogEntry{
		Base:          models.NewBase(),
		UserID:        a.UserID,
		Type:          a.Type,
		Description:   a.Description,
		PointsAwarded: a.Points,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if a.Mission != nil {
		a.Mission.PointsAwarded = true
		if err := s.store.Missions().Update(ctx, a.Mission, a.MissionFrom...); err != nil {
			return nil, err
		}
		entry.MissionID = a.Mission.ID
	}
	if err := s.store.Activities().Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ledgerService) EvaluateBadgesLater(ctx context.Context, userID string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueBadgeEvaluation(ctx, userID); err != nil {
		s.logger.Warn("Failed to schedule badge evaluation", zap.String("userID", userID), zap.Error(err))
	}
}

// ledgerError keeps engine error kinds and reports anything else as a failed transaction.
func ledgerError(err error) error {
	for _, kind := range []error{apperr.ErrNotFound, apperr.ErrInvalidState, apperr.ErrValidation, apperr.ErrForbidden} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return apperr.External("points ledger transaction", fmt.Errorf("award aborted: %w", err))
}
