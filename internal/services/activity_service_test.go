package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/apperr"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/services"
)

func TestActivity_Record(t *testing.T) {
	e := newTestEnv(t)
	e.addFarmer(t, "f1")
	svc := services.NewActivityService(e.store, e.ledger, e.clock, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, "f1", services.KindCommunityPost, 0))
	require.NoError(t, svc.Record(ctx, "f1", services.KindCommunityReply, 0))
	require.NoError(t, svc.Record(ctx, "f1", services.KindLearningModule, 0))
	require.NoError(t, svc.Record(ctx, "f1", services.KindQuiz, 85))
	require.NoError(t, svc.Record(ctx, "f1", services.KindQuiz, 60))

	u := e.user(t, "f1")
	assert.Equal(t, models.ActivityStats{
		CommunityPosts:           1,
		CommunityReplies:         1,
		LearningModulesCompleted: 1,
		BestQuizScore:            85,
	}, u.Stats)
	assert.ElementsMatch(t, []string{"first-post", "curious-learner", "quiz-ace"}, u.Badges)
	assert.Equal(t, 0, u.EcoScore)
	assert.Len(t, e.queue.Evaluations(), 5)

	recent, err := svc.Recent(ctx, "f1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, models.ActivityQuiz, recent[0].Type)
	assert.Equal(t, "Scored 60% in a quiz", recent[0].Description)

	recent, err = svc.Recent(ctx, "f1", 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestActivity_RecordRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)
	e.addFarmer(t, "f1")
	svc := services.NewActivityService(e.store, e.ledger, e.clock, zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, svc.Record(ctx, "f1", "gossip", 0), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Record(ctx, "f1", services.KindQuiz, 101), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Record(ctx, "f1", services.KindQuiz, -1), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Record(ctx, "ghost", services.KindCommunityPost, 0), apperr.ErrNotFound)

	recent, err := svc.Recent(ctx, "f1", 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
	assert.Empty(t, e.queue.Evaluations())
}
