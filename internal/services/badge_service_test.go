package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/models"
	"github.com/shubham-gupta-2717/EcoFarming-sub000/internal/store"
)

func completeMission(t *testing.T, e *testEnv, userID, category string) {
	t.Helper()
	m := &models.Mission{Base: models.NewBase(), UserID: userID, Title: category, Category: category, Status: models.StatusCompleted, PointsAwarded: true}
	require.NoError(t, e.store.Missions().Create(context.Background(), m))
}

func badgeIDs(badges []models.Badge) []string {
	ids := make([]string, len(badges))
	for i, b := range badges {
		ids[i] = b.ID
	}
	return ids
}

func TestBadges_MissionCounts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addFarmer(t, "f1")

	granted, err := e.badges.Evaluate(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, granted)

	completeMission(t, e, "f1", "Water Conservation")
	completeMission(t, e, "f1", "water")
	completeMission(t, e, "f1", "WATER")
	completeMission(t, e, "f1", "soil")

	granted, err = e.badges.Evaluate(ctx, "f1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first-mission", "water-saver", "soil-starter"}, badgeIDs(granted))

	// A second pass grants nothing and logs nothing new.
	granted, err = e.badges.Evaluate(ctx, "f1")
	require.NoError(t, err)
	assert.Empty(t, granted)

	entries, err := e.store.Activities().ListByUser(ctx, "f1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for _, en := range entries {
		assert.Equal(t, models.ActivityBadgeEarned, en.Type)
		assert.Zero(t, en.PointsAwarded)
	}
}

func TestBadges_StatsLevelAndLegend(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addFarmer(t, "f1")
	users := e.store.Users()

	require.NoError(t, users.IncrementStat(ctx, "f1", store.StatCommunityPosts, 10))
	require.NoError(t, users.IncrementStat(ctx, "f1", store.StatLearningModules, 1))
	require.NoError(t, users.RaiseStat(ctx, "f1", store.StatBestQuizScore, 85))
	require.NoError(t, users.AddPoints(ctx, "f1", 1000))
	require.NoError(t, users.SetStreak(ctx, "f1", 100, 100, testStart))

	granted, err := e.badges.Evaluate(ctx, "f1")
	require.NoError(t, err)
	ids := badgeIDs(granted)
	for _, want := range []string{"first-post", "storyteller", "curious-learner", "quiz-ace", "century-streak", "level-10", "score-1000", "eco-legend"} {
		assert.Contains(t, ids, want)
	}
	assert.NotContains(t, ids, "community-voice")
	assert.NotContains(t, ids, "quiz-perfect")
}

func TestBadges_LegendNeedsBoth(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addFarmer(t, "f1")
	require.NoError(t, e.store.Users().AddPoints(ctx, "f1", 5000))
	require.NoError(t, e.store.Users().SetStreak(ctx, "f1", 99, 99, testStart))

	granted, err := e.badges.Evaluate(ctx, "f1")
	require.NoError(t, err)
	assert.NotContains(t, badgeIDs(granted), "eco-legend")
}

func TestBadges_EarnedBadgesAreKept(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addFarmer(t, "f1")
	require.NoError(t, e.store.Users().SetStreak(ctx, "f1", 7, 7, testStart))

	granted, err := e.badges.Evaluate(ctx, "f1")
	require.NoError(t, err)
	assert.Contains(t, badgeIDs(granted), "week-warrior")

	// Streak breaks; the badge stays.
	require.NoError(t, e.store.Users().SetStreak(ctx, "f1", 1, 7, testStart.Add(72*time.Hour)))
	_, err = e.badges.Evaluate(ctx, "f1")
	require.NoError(t, err)

	summary, err := e.badges.GetBadges(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, len(e.catalog.Badges()), summary.Total)
	assert.Equal(t, summary.Total, len(summary.Earned)+len(summary.Locked))
	var found bool
	for _, b := range summary.Earned {
		if b.ID == "week-warrior" {
			found = true
			assert.Equal(t, 1, b.Progress)
		}
	}
	assert.True(t, found)
	assert.Contains(t, e.user(t, "f1").Badges, "week-warrior")
}

func TestBadges_ConcurrentEvaluationGrantsOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addFarmer(t, "f1")
	completeMission(t, e, "f1", "soil")

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := e.badges.Evaluate(ctx, "f1")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	entries, err := e.store.Activities().ListByUser(ctx, "f1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Len(t, e.user(t, "f1").Badges, 2)
}
