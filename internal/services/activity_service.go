package services

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

// ActivityKind is an engagement event recorded outside the mission flow.
type ActivityKind string

const (
	KindCommunityPost  ActivityKind = "community-post"
	KindCommunityReply ActivityKind = "community-reply"
	KindLearningModule ActivityKind = "learning-module"
	KindQuiz           ActivityKind = "quiz"
)

var activityKinds = map[ActivityKind]struct {
	stat        store.StatField
	logType     models.ActivityType
	description string
}{
	KindCommunityPost:  {store.StatCommunityPosts, models.ActivityCommunityPost, "Posted in the community"},
	KindCommunityReply: {store.StatCommunityReplies, models.ActivityCommunityReply, "Replied in the community"},
	KindLearningModule: {store.StatLearningModules, models.ActivityLearningModule, "Completed a learning module"},
	KindQuiz:           {store.StatBestQuizScore, models.ActivityQuiz, "Completed a quiz"},
}

type IActivityService interface {
	// Record counts one event. value is the quiz score for KindQuiz and ignored otherwise.
	Record(ctx context.Context, userID string, kind ActivityKind, value int) error
	Recent(ctx context.Context, userID string, limit int) ([]models.ActivityLogEntry, error)
}

type activityService struct {
	store  store.Store
	ledger ILedgerService
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewActivityService(st store.Store, ledger ILedgerService, clock clockwork.Clock, logger *zap.Logger) IActivityService {
	return &activityService{store: st, ledger: ledger, clock: clock, logger: logger}
}

func (s *activityService) Record(ctx context.Context, userID string, kind ActivityKind, value int) error {
	k, ok := activityKinds[kind]
	if !ok {
		return apperr.Validation("unknown activity %q", kind)
	}
	description := k.description
	if kind == KindQuiz {
		if value < 0 || value > 100 {
			return apperr.Validation("quiz score must be between 0 and 100")
		}
		description = fmt.Sprintf("Scored %d%% in a quiz", value)
	}

	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if kind == KindQuiz {
			err = s.store.Users().RaiseStat(ctx, userID, k.stat, value)
		} else {
			err = s.store.Users().IncrementStat(ctx, userID, k.stat, 1)
		}
		if err != nil {
			return err
		}
		return s.store.Activities().Append(ctx, &models.ActivityLogEntry{
			Base:        models.NewBase(),
			UserID:      userID,
			Type:        k.logType,
			Description: description,
			CreatedAt:   s.clock.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}
	s.ledger.EvaluateBadgesLater(ctx, userID)
	return nil
}

func (s *activityService) Recent(ctx context.Context, userID string, limit int) ([]models.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.Activities().ListByUser(ctx, userID, limit)
}
